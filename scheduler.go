package cort

import (
	"errors"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler owns one thread's timer heap, epoll instance and watched-fd
// table, and drives every waiter registered on it. Nothing in a Scheduler
// may be touched from another thread; each thread builds its own.
//
// Lifecycle: NewScheduler -> arm waiters -> Loop -> Destroy.
type Scheduler struct {
	noCopy

	efd int // epoll fd, -1 after Destroy

	timers *timerHeap
	fds    *fdMap

	cachedNowMs int64

	evReadyNum   int
	lockOSThread bool

	log zerolog.Logger
}

// NewScheduler creates the per-thread epoll instance and empty timer heap.
// Fails only if the kernel refuses the epoll fd.
func NewScheduler(opts ...Option) (*Scheduler, error) {
	o := setOptions(opts...)
	efd, err := syscall.EpollCreate1(syscall.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.New("syscall epoll_create1: " + err.Error())
	}
	s := &Scheduler{
		efd:          efd,
		timers:       newTimerHeap(o.timerHeapInitSize),
		fds:          newFdMap(o.fdMapArrSize),
		evReadyNum:   o.evReadyNum,
		lockOSThread: o.lockOSThread,
		log:          o.logger,
	}
	s.RefreshClock()
	return s, nil
}

// NowMs returns the cached millisecond clock. The cache refreshes once per
// loop wake; call RefreshClock for an immediate reading.
func (s *Scheduler) NowMs() int64 {
	return s.cachedNowMs
}

// RefreshClock re-reads the time source and returns the new reading.
func (s *Scheduler) RefreshClock() int64 {
	s.cachedNowMs = time.Now().UnixMilli()
	return s.cachedNowMs
}

// PollFd exposes the raw epoll descriptor for embedding the scheduler into
// a larger event loop. Pair it with Notify to wake the loop from outside.
func (s *Scheduler) PollFd() int {
	return s.efd
}

// WatchedFdCount reports how many descriptors hold a live poll request.
func (s *Scheduler) WatchedFdCount() int {
	return s.fds.size()
}

// PendingTimerCount reports how many timeout registrations are armed.
func (s *Scheduler) PendingTimerCount() int {
	return s.timers.size()
}

func (s *Scheduler) schedule(w Waiter, expiredAt int64) *timerItem {
	return s.timers.schedule(w, expiredAt)
}

func (s *Scheduler) cancel(ti *timerItem) {
	s.timers.cancel(ti)
}

func (s *Scheduler) addPoll(fd int, events uint32, pw pollWaiter) error {
	ev := syscall.EpollEvent{Events: events, Fd: int32(fd)}
	if err := syscall.EpollCtl(s.efd, syscall.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return errors.New("epoll_ctl add: " + err.Error())
	}
	s.fds.store(fd, pw)
	return nil
}

func (s *Scheduler) modPoll(fd int, events uint32) error {
	ev := syscall.EpollEvent{Events: events, Fd: int32(fd)}
	if err := syscall.EpollCtl(s.efd, syscall.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return errors.New("epoll_ctl mod: " + err.Error())
	}
	return nil
}

func (s *Scheduler) delPoll(fd int) error {
	// The event argument is ignored and can be NULL (but see `man 2 epoll_ctl` BUGS)
	// kernel versions > 2.6.9
	s.fds.delete(fd)
	if err := syscall.EpollCtl(s.efd, syscall.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errors.New("epoll_ctl del: " + err.Error())
	}
	return nil
}

// Loop blocks in epoll until the nearest deadline or a descriptor event,
// resumes whatever became runnable, and repeats until no timeout
// registration and no watched descriptor remain.
func (s *Scheduler) Loop() error {
	if s.efd == -1 {
		return errors.New("scheduler already destroyed")
	}
	if s.lockOSThread {
		// Refer to go doc runtime.LockOSThread
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	s.log.Debug().Int("poll_fd", s.efd).Msg("cort loop start")

	events := make([]syscall.EpollEvent, s.evReadyNum)
	for s.timers.size() > 0 || s.fds.size() > 0 {
		msec := -1
		if deadline, ok := s.timers.nearest(); ok {
			msec = int(deadline - s.cachedNowMs)
			if msec < 0 {
				msec = 0
			}
		}
		nfds, err := syscall.EpollWait(s.efd, events, msec)
		if err != nil {
			if err != syscall.EINTR {
				return errors.New("syscall epoll_wait: " + err.Error())
			}
			nfds = 0
		}
		now := s.RefreshClock()
		s.dispatchTimers(now)
		for i := 0; i < nfds; i++ {
			ev := &events[i]
			pw := s.fds.load(int(ev.Fd))
			if pw == nil {
				continue // removed by an earlier resumption in this batch
			}
			pw.resumeOnPoll(now, ev.Events)
		}
	}
	s.log.Debug().Msg("cort loop exit")
	return nil
}

// dispatchTimers resumes, in deadline order then bucket insertion order,
// every waiter due at now. Waiters armed during dispatch for a deadline
// <= now are resumed in the same wake cycle.
func (s *Scheduler) dispatchTimers(now int64) {
	for {
		b := s.timers.popExpired(now)
		if b == nil {
			return
		}
		for _, ti := range b.items {
			w := ti.w
			if w == nil {
				continue // cancelled
			}
			s.timers.cancel(ti)
			w.setTimerItem(nil)
			w.resumeOnTimeout(now)
		}
	}
}

// Destroy force-resumes every still-registered waiter via resumeOnStop,
// each exactly once, then closes the epoll fd. Resuming a waiter may
// register or deregister others; the sweep keeps going until the heap and
// the fd table are both empty. A waiter that was already stopped and shows
// up registered again is just deregistered, never resumed twice.
func (s *Scheduler) Destroy() {
	if s.efd == -1 {
		return
	}
	now := s.RefreshClock()
	stopped := 0
	for s.timers.size() > 0 || s.fds.size() > 0 {
		for {
			b := s.timers.popMin()
			if b == nil {
				break
			}
			for _, ti := range b.items {
				w := ti.w
				if w == nil {
					continue
				}
				s.timers.cancel(ti)
				w.setTimerItem(nil)
				if w.IsStopped() {
					continue
				}
				stopped++
				w.resumeOnStop(now)
			}
		}
		for _, pw := range s.fds.collect() {
			if s.fds.load(pw.Fd()) != pw {
				continue // deregistered by an earlier stop in this sweep
			}
			if pw.IsStopped() {
				pw.RemovePollRequest()
				continue
			}
			stopped++
			pw.resumeOnStop(now)
		}
	}
	s.log.Debug().Int("stopped", stopped).Msg("cort scheduler destroyed")
	syscall.Close(s.efd)
	s.efd = -1
}
