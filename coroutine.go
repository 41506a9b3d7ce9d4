package cort

// Coroutine is the contract this package consumes from the coroutine
// machinery it drives. The state machine itself lives elsewhere; the
// scheduler only ever pushes one forward.
//
// Start runs the coroutine until its first suspension. Resume continues it
// after the awaited condition (timeout, readiness, stop) holds. Both return
// the next coroutine to continue - typically the parent handed back by the
// implementation's on-finish hook - or nil when the chain suspended or ended.
//
// An implementation's on-finish hook runs exactly once at the terminal
// point and must clear any pending timeout registration before returning
// (TimeoutWaiter.OnFinish does exactly that).
type Coroutine interface {
	Start() Coroutine
	Resume() Coroutine
}

// resumeChain drives a resumed coroutine and whatever it hands back.
func resumeChain(co Coroutine) {
	for co != nil {
		co = co.Resume()
	}
}

// startChain runs a fresh coroutine until it suspends or finishes.
func startChain(co Coroutine) {
	if next := co.Start(); next != nil {
		resumeChain(next)
	}
}
