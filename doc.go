// Package cort is the timing and I/O-readiness substrate for a cooperative
// coroutine runtime.
//
// A coroutine that wants to sleep, or to wait for a file descriptor with a
// bounded wait, arms a TimeoutWaiter (or FdWaiter) and yields. The thread's
// Scheduler sleeps in epoll until the nearest deadline or a descriptor
// event, then resumes the owning coroutines synchronously.
//
// Usual program stages, per thread:
//
//	s, err := cort.NewScheduler()     // 1. prepare the timer heap and epoll fd
//	...                               //    start your waiters
//	err = s.Loop()                    // 2. runs until no waiters and no watched fds remain
//	s.Destroy()                       // 3. force-resume and recycle whatever is left
//
// Timer precision is milliseconds. epoll itself is not reliable below ~4ms,
// so do not depend on sub-4ms accuracy.
//
// Everything here is single-threaded by design: one Scheduler per thread,
// nothing shared. The only operation that may be called from another thread
// is Notify.Notify.
package cort
