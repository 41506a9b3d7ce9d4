package cort

// Sleeper is how an ordinary coroutine sleeps: it cannot set a timeout on
// itself (that would make it a non-leaf), so it awaits a Sleeper armed for
// the wanted duration and is handed back to the trampoline when the
// deadline fires.
type Sleeper struct {
	TimeoutWaiter

	ms     int64
	parent Coroutine
}

// NewSleeper builds a sleeper that resumes parent ms milliseconds after
// Start. parent may be nil.
func NewSleeper(s *Scheduler, ms int64, parent Coroutine) *Sleeper {
	sl := &Sleeper{ms: ms, parent: parent}
	sl.TimeoutWaiter.Init(s, sl)
	return sl
}

func (sl *Sleeper) Start() Coroutine {
	sl.SetTimeout(sl.ms)
	return nil
}

func (sl *Sleeper) Resume() Coroutine {
	sl.OnFinish()
	return sl.parent
}

// Timeout is the bare one-yield waiter: armed at construction, it resumes
// its parent when the deadline (or a stop) arrives. Pass ms 0 to construct
// unarmed and call SetTimeout later.
type Timeout struct {
	TimeoutWaiter

	parent Coroutine
}

func NewTimeout(s *Scheduler, ms int64, parent Coroutine) *Timeout {
	t := &Timeout{parent: parent}
	t.TimeoutWaiter.Init(s, t)
	if ms != 0 {
		t.SetTimeout(ms)
	}
	return t
}

func (t *Timeout) Start() Coroutine {
	return nil
}

func (t *Timeout) Resume() Coroutine {
	t.OnFinish()
	return t.parent
}
