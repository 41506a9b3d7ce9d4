package cort

import (
	"errors"
	"syscall"
)

const (
	// EvIn is readable event
	EvIn uint32 = syscall.EPOLLIN | syscall.EPOLLRDHUP

	// EvOut is writeable event
	EvOut uint32 = syscall.EPOLLOUT | syscall.EPOLLRDHUP

	// EvErr covers the error/hangup events epoll reports unrequested
	EvErr uint32 = syscall.EPOLLHUP | syscall.EPOLLERR
)

// pollWaiter is what the scheduler keeps in its fd table.
type pollWaiter interface {
	Waiter

	Fd() int
	RemovePollRequest() error

	resumeOnPoll(now int64, events uint32)
}

// FdWaiter is a TimeoutWaiter that also watches one descriptor through the
// scheduler's epoll instance. It resumes for one of three reasons: the
// deadline elapsed, the descriptor became ready, or the scheduler was
// destroyed. Like its base it must stay a leaf coroutine; when the fd is
// ready you have to react before the next poll.
type FdWaiter struct {
	TimeoutWaiter

	fd          int
	pollRequest uint32
	pollResult  uint32
}

// Init binds the waiter to its scheduler and resets the descriptor state.
func (fw *FdWaiter) Init(s *Scheduler, self Waiter) {
	fw.TimeoutWaiter.Init(s, self)
	fw.fd = -1
	fw.pollRequest, fw.pollResult = 0, 0
}

// SetFd adopts the descriptor to watch. It is not registered until
// SetPollRequest.
func (fw *FdWaiter) SetFd(fd int) {
	fw.fd = fd
}

// Fd returns the watched descriptor, -1 when unset.
func (fw *FdWaiter) Fd() int {
	return fw.fd
}

// SetPollRequest registers or updates the descriptor's interest set. The
// first registration adds the fd to the thread's watched count.
func (fw *FdWaiter) SetPollRequest(events uint32) error {
	if fw.s == nil {
		panic("cort: FdWaiter used before Init")
	}
	if fw.fd < 0 {
		return errors.New("SetPollRequest: invalid fd")
	}
	if fw.pollRequest == 0 {
		pw, ok := fw.self.(pollWaiter)
		if !ok {
			return errors.New("SetPollRequest: self is not an fd waiter")
		}
		if err := fw.s.addPoll(fw.fd, events, pw); err != nil {
			return err
		}
	} else if fw.pollRequest != events {
		if err := fw.s.modPoll(fw.fd, events); err != nil {
			return err
		}
	}
	fw.pollRequest = events
	return nil
}

// RemovePollRequest unregisters interest without touching the descriptor.
func (fw *FdWaiter) RemovePollRequest() error {
	if fw.pollRequest == 0 {
		return nil
	}
	fw.pollRequest = 0
	return fw.s.delPoll(fw.fd)
}

// PollRequest returns the registered interest set.
func (fw *FdWaiter) PollRequest() uint32 {
	return fw.pollRequest
}

// PollResult returns the event set observed at the last poll resumption.
func (fw *FdWaiter) PollResult() uint32 {
	return fw.pollResult
}

// SetPollResult overwrites the observed event set.
func (fw *FdWaiter) SetPollResult(events uint32) {
	fw.pollResult = events
}

// ClearPollResult resets the observed event set.
func (fw *FdWaiter) ClearPollResult() {
	fw.pollResult = 0
}

// CloseFd removes any poll request and closes the descriptor.
func (fw *FdWaiter) CloseFd() {
	if fw.fd < 0 {
		return
	}
	fw.RemovePollRequest()
	syscall.Close(fw.fd)
	fw.fd = -1
}

// ReleaseFd removes the poll request and forgets the descriptor without
// closing it; ownership passes to the caller.
func (fw *FdWaiter) ReleaseFd() {
	if fw.fd < 0 {
		return
	}
	fw.RemovePollRequest()
	fw.fd = -1
}

// resumeOnPoll records the readiness events and drives the coroutine. A
// pending timeout is disarmed first; readiness and timeout never both fire
// for one suspension.
func (fw *FdWaiter) resumeOnPoll(now int64, events uint32) {
	fw.ClearTimeout()
	fw.outcome = OutcomeNone
	fw.pollResult = events
	fw.costMs = elapsed(now, fw.startTimeMs)
	resumeChain(fw.self)
}

// resumeOnStop also drops the poll registration, so a teardown sweep over
// fd waiters always makes progress.
func (fw *FdWaiter) resumeOnStop(now int64) {
	fw.RemovePollRequest()
	fw.TimeoutWaiter.resumeOnStop(now)
}

func (fw *FdWaiter) dispose() {
	fw.CloseFd()
	fw.TimeoutWaiter.dispose()
}
