package cort

// Detecting illegal struct copies using `go vet`
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Outcome records why a waiter was resumed. At most one cause per
// resumption; the zero value means the wait completed some other way
// (e.g. descriptor readiness).
type Outcome uint8

const (
	// OutcomeNone means no timeout and no stop occurred.
	OutcomeNone Outcome = iota

	// OutcomeTimeout means the armed deadline elapsed.
	OutcomeTimeout

	// OutcomeStopped means the scheduler was destroyed, or the waiter was
	// stopped by hand.
	OutcomeStopped
)

// Waiter is the interface the Scheduler drives. Embed TimeoutWaiter (or
// FdWaiter) to implement it; concrete types only supply the Coroutine part.
type Waiter interface {
	Coroutine

	setTimerItem(ti *timerItem)
	getTimerItem() *timerItem

	resumeOnTimeout(now int64)
	resumeOnStop(now int64)

	// IsStopped lets the teardown sweep skip waiters it already visited.
	IsStopped() bool

	dispose()
}

// TimeoutWaiter is the base type of every time-bounded leaf coroutine.
// SetTimeout(5) then yield, and the scheduler resumes it 5ms later.
//
// A TimeoutWaiter must be a leaf of the await graph: it may suspend only on
// itself, never on another coroutine. If it awaited some coroutine X and the
// timeout elapsed first, either X keeps running (the timeout means nothing)
// or X must support cancellation (a protocol this runtime does not have).
// Leaf-only sidesteps both. A plain coroutine that wants to sleep awaits a
// Sleeper instead.
type TimeoutWaiter struct {
	noCopy

	s    *Scheduler
	self Waiter // outermost value, for dynamic dispatch on resume
	ti   *timerItem

	startTimeMs int64
	deadlineMs  int64

	costMs  uint32
	outcome Outcome

	refCount uint32
}

// Init binds the waiter to its thread's scheduler. self must be the
// outermost value embedding this TimeoutWaiter; it is what the scheduler
// resumes. Must be called before SetTimeout.
func (w *TimeoutWaiter) Init(s *Scheduler, self Waiter) {
	if s == nil || self == nil {
		panic("cort: TimeoutWaiter.Init with nil scheduler or self")
	}
	w.s, w.self = s, self
	w.ti = nil
	w.outcome, w.costMs = OutcomeNone, 0
}

// Scheduler returns the scheduler this waiter was bound to, or nil.
func (w *TimeoutWaiter) Scheduler() *Scheduler {
	return w.s
}

// SetTimeout arms the waiter to be resumed ms milliseconds from now.
// Re-arming an armed waiter replaces the previous deadline.
func (w *TimeoutWaiter) SetTimeout(ms int64) {
	if w.s == nil {
		panic("cort: TimeoutWaiter used before Init")
	}
	w.ClearTimeout()
	w.startTimeMs = w.s.NowMs()
	w.deadlineMs = w.startTimeMs + ms
	w.ti = w.s.schedule(w.self, w.deadlineMs)
}

// ClearTimeout disarms the waiter. Idempotent. OnFinish calls it, so
// coroutine bodies rarely need to.
func (w *TimeoutWaiter) ClearTimeout() {
	if w.ti == nil {
		return
	}
	w.s.cancel(w.ti)
	w.ti = nil
}

// IsArmed reports whether a timeout registration is pending.
func (w *TimeoutWaiter) IsArmed() bool {
	return w.ti != nil
}

// TimeoutAt returns the absolute millisecond deadline of the last arming.
func (w *TimeoutWaiter) TimeoutAt() int64 {
	return w.deadlineMs
}

// TimePast returns how many milliseconds elapsed since the last arming.
func (w *TimeoutWaiter) TimePast() int64 {
	if w.s == nil {
		return 0
	}
	return w.s.NowMs() - w.startTimeMs
}

// TimeCost returns the elapsed milliseconds recorded at resumption.
// Only valid after the waiter has been resumed.
func (w *TimeoutWaiter) TimeCost() uint32 {
	return w.costMs
}

// IsTimeout reports whether the last resumption was caused by the deadline.
func (w *TimeoutWaiter) IsTimeout() bool {
	return w.outcome == OutcomeTimeout
}

// IsStopped reports whether the last resumption was a forced stop.
func (w *TimeoutWaiter) IsStopped() bool {
	return w.outcome == OutcomeStopped
}

// IsTimeoutOrStopped reports whether the wait ended abnormally.
func (w *TimeoutWaiter) IsTimeoutOrStopped() bool {
	return w.outcome != OutcomeNone
}

// Outcome returns the recorded resumption cause.
func (w *TimeoutWaiter) Outcome() Outcome {
	return w.outcome
}

func (w *TimeoutWaiter) setTimerItem(ti *timerItem) { w.ti = ti }
func (w *TimeoutWaiter) getTimerItem() *timerItem   { return w.ti }

// resumeOnTimeout records the cause and drives the coroutine forward.
// The scheduler has already dropped the registration.
func (w *TimeoutWaiter) resumeOnTimeout(now int64) {
	w.outcome = OutcomeTimeout
	w.costMs = elapsed(now, w.startTimeMs)
	resumeChain(w.self)
}

// resumeOnStop is the teardown path: Scheduler.Destroy visits every
// outstanding waiter through here, exactly once each.
func (w *TimeoutWaiter) resumeOnStop(now int64) {
	w.outcome = OutcomeStopped
	w.costMs = elapsed(now, w.startTimeMs)
	resumeChain(w.self)
}

func elapsed(now, since int64) uint32 {
	if now <= since {
		return 0
	}
	return uint32(now - since)
}

// OnFinish is the terminal hook the coroutine machinery must invoke exactly
// once. It clears any pending registration so the scheduler can never resume
// a dead object, and returns the coroutine to continue (none, here).
func (w *TimeoutWaiter) OnFinish() Coroutine {
	w.ClearTimeout()
	return nil
}

// AddRef adds a strong reference.
func (w *TimeoutWaiter) AddRef() {
	w.refCount++
}

// RemoveRef drops a reference without releasing the object.
func (w *TimeoutWaiter) RemoveRef() uint32 {
	w.refCount--
	return w.refCount
}

// Release drops a strong reference and disposes the waiter when the last
// one goes. A count of zero means the object is not reference-managed and
// the implicit reference is treated as strong, so releasing from 0 or 1
// both dispose.
func (w *TimeoutWaiter) Release() uint32 {
	switch w.refCount {
	case 0, 1:
		w.refCount = 0
		if w.self != nil {
			w.self.dispose()
		} else {
			w.dispose()
		}
		return 0
	default:
		w.refCount--
		return w.refCount
	}
}

// RefCount returns the current strong-reference count.
func (w *TimeoutWaiter) RefCount() uint32 {
	return w.refCount
}

// dispose runs when the last strong reference is released. FdWaiter extends
// it to close the descriptor.
func (w *TimeoutWaiter) dispose() {
	w.ClearTimeout()
}

// Start please make sure you want to reimplement it.
func (w *TimeoutWaiter) Start() Coroutine {
	panic("cort.TimeoutWaiter Start")
}

// Resume please make sure you want to reimplement it.
func (w *TimeoutWaiter) Resume() Coroutine {
	panic("cort.TimeoutWaiter Resume")
}
