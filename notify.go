package cort

import (
	"encoding/binary"
	"errors"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	notifyV      uint64 = 1
	notifyCloseV uint64 = 31415927
)

// Notify wakes a scheduler loop from outside: embed the loop via PollFd
// into a bigger reactor, or poke it from another thread, and the handler
// runs on the loop thread at the next wake.
//
// Notify.Notify is the only call in this package that is safe from another
// thread. The eventfd counts as a watched descriptor, so Close it when the
// loop should be allowed to return.
type Notify struct {
	FdWaiter

	handler func()

	notifyOnce atomic.Int32 // avoid duplicate eventfd writes
	closeOnce  atomic.Int32
}

// NewNotify registers an eventfd on s. handler runs on the loop thread for
// every wakeup; it may be nil.
func NewNotify(s *Scheduler, handler func()) (*Notify, error) {
	// since Linux 2.6.27
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, errors.New("eventfd: " + err.Error())
	}
	nt := &Notify{handler: handler}
	nt.FdWaiter.Init(s, nt)
	nt.SetFd(fd)
	if err = nt.SetPollRequest(EvIn); err != nil {
		syscall.Close(fd)
		return nil, err
	}
	return nt, nil
}

// Notify wakes the loop. Thread-safe; duplicate wakeups collapse until the
// loop drains the eventfd.
func (nt *Notify) Notify() {
	if !nt.notifyOnce.CompareAndSwap(0, 1) {
		return
	}
	nt.write(notifyV)
}

// Close asks the loop thread to release the eventfd; after the loop
// processes it the descriptor no longer counts as watched.
func (nt *Notify) Close() {
	if !nt.closeOnce.CompareAndSwap(0, 1) {
		return
	}
	nt.write(notifyCloseV)
}

func (nt *Notify) write(v uint64) {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], v)
	for {
		n, err := syscall.Write(nt.Fd(), buf[:]) // man 2 eventfd
		if n == 8 || err == syscall.EAGAIN {
			return
		}
		if err == syscall.EINTR {
			continue
		}
		return
	}
}

// Resume runs on the loop thread after a poll or stop resumption.
func (nt *Notify) Resume() Coroutine {
	if nt.IsStopped() {
		nt.CloseFd()
		return nt.OnFinish()
	}
	var buf [8]byte
	for {
		n, err := syscall.Read(nt.Fd(), buf[:])
		if err == syscall.EINTR {
			continue
		}
		if err != nil || n != 8 {
			nt.notifyOnce.Store(0)
			return nil
		}
		// the eventfd counter accumulates, a close request may carry
		// earlier notify values with it
		if binary.NativeEndian.Uint64(buf[:]) >= notifyCloseV {
			nt.CloseFd()
			return nt.OnFinish()
		}
		nt.notifyOnce.Store(0)
		if nt.handler != nil {
			nt.handler()
		}
	}
}
