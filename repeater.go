package cort

import (
	"errors"
)

type repeatRegime uint16

const (
	// regimeSubTick fires a fixed 10ms tick and spawns several per wake.
	// Selected for rates above 100/s.
	regimeSubTick repeatRegime = iota

	// regimePerFire wakes once per spawn. Rates in (1, 100].
	regimePerFire

	// regimeSparse is per-fire with arithmetic scaled by 1000 to keep
	// precision for periods of many seconds. Rates in (1e-3, 1].
	regimeSparse

	// regimeStopped makes the next wake end the coroutine.
	regimeStopped
)

// Repeater re-arms its own timeout to spawn fresh coroutines at a target
// rate. Suited to periodic jobs and load generation. The rate must exceed
// 1e-3 per second.
//
// It never waits on anything but its own timer, so slow synchronous work in
// a spawned coroutine delays the whole loop; the drift correction at each
// one-second cycle boundary spawns enough extras to restore the average.
type Repeater struct {
	TimeoutWaiter

	spawn func() Coroutine
	rate  float64

	regime repeatRegime

	interval      uint32 // wake period, ms
	firstInterval uint32 // wakes per cycle that get a 1ms longer period

	intervalCount      uint32 // spawns per wake (sub-tick) / wakes per cycle
	firstIntervalCount uint32 // wakes per cycle that spawn one extra

	index   uint32
	spawned uint32

	cycleStartMs int64 // 0 until the first full cycle begins
	lastWakeMs   int64
}

// NewRepeater binds a repeater to s. spawn builds one fresh coroutine per
// requested instance; a nil return is fatal, there is no degraded-rate
// fallback.
func NewRepeater(s *Scheduler, spawn func() Coroutine) *Repeater {
	if spawn == nil {
		panic("cort: NewRepeater with nil spawn")
	}
	rp := &Repeater{spawn: spawn, regime: regimeStopped}
	rp.TimeoutWaiter.Init(s, rp)
	return rp
}

// SetRepeatPerSecond selects the scheduling regime for rate and resets the
// cycle state. Callable again at any time to change the rate.
func (rp *Repeater) SetRepeatPerSecond(rate float64) error {
	switch {
	case rate > 100:
		n := uint32(rate)
		rp.intervalCount = n / 100
		rp.firstIntervalCount = n % 100
		rp.interval, rp.firstInterval = 0, 0
		rp.regime = regimeSubTick
	case rate > 1.0:
		n := uint32(rate)
		rp.interval = 1000 / n
		rp.firstInterval = 1000 % n
		rp.intervalCount = n
		rp.firstIntervalCount = 0
		rp.regime = regimePerFire
	case rate > 1e-3:
		n := uint32(rate * 1000)
		rp.interval = 1000 * 1000 / n
		rp.firstInterval = 1000 * 1000 % n
		rp.intervalCount = n
		rp.firstIntervalCount = 0
		rp.regime = regimeSparse
	default:
		return errors.New("SetRepeatPerSecond: rate must be > 1e-3")
	}
	rp.rate = rate
	rp.index = 0
	rp.spawned = 0
	return nil
}

// Stop disarms the repeater and resets every scheduling field; the
// coroutine terminates at its next wake, spawning nothing.
func (rp *Repeater) Stop() {
	rp.ClearTimeout()
	rp.spawned = 0
	rp.intervalCount, rp.firstIntervalCount = 0, 0
	rp.interval, rp.firstInterval = 0, 0
	rp.index = 0
	rp.regime = regimeStopped
}

// Start spawns the first batch immediately and suspends until the next wake.
func (rp *Repeater) Start() Coroutine {
	rp.lastWakeMs = rp.s.NowMs()
	rp.cycleStartMs = 0
	return rp.step()
}

func (rp *Repeater) Resume() Coroutine {
	return rp.step()
}

func (rp *Repeater) step() Coroutine {
	if rp.IsStopped() || rp.regime == regimeStopped {
		return rp.OnFinish()
	}

	switch rp.regime {
	case regimeSubTick:
		rp.SetTimeout(10)
	case regimePerFire, regimeSparse:
		real := int64(rp.interval)
		if rp.index < rp.firstInterval {
			real++ // distribute the integer remainder across the cycle
		}
		rp.SetTimeout(real)
	}

	now := rp.s.NowMs()
	if rp.index == 0 && (rp.regime == regimeSubTick || rp.regime == regimePerFire) {
		if rp.cycleStartMs != 0 { // we may be delayed and we need to fix
			now = rp.s.RefreshClock()
			fix := int64(float64(now-rp.cycleStartMs)/1000.0*rp.rate) - int64(rp.spawned)
			if fix > 0 {
				rp.s.log.Debug().Int64("fix", fix).Float64("rate", rp.rate).
					Msg("cort repeater drift correction")
			}
			for ; fix > 0; fix-- {
				rp.spawnOne()
			}
		}
		rp.cycleStartMs = rp.s.RefreshClock()
		rp.spawned = 0
	}

	switch rp.regime {
	case regimeSubTick:
		if now-rp.lastWakeMs > 200 {
			// a blocking operation delayed us, skip one round
			rp.lastWakeMs = now
			rp.index = 0
			break
		}
		rp.lastWakeMs = now
		n := rp.intervalCount
		if rp.index < rp.firstIntervalCount {
			n++
		}
		rp.index = (rp.index + 1) % 100
		for i := uint32(0); i < n; i++ {
			rp.spawnOne()
		}
	case regimePerFire:
		rp.index = (rp.index + 1) % rp.intervalCount
		rp.lastWakeMs = now
		rp.spawnOne()
	case regimeSparse:
		rp.spawnOne()
		rp.index = (rp.index + 1) % rp.intervalCount
	}
	return nil
}

func (rp *Repeater) spawnOne() {
	co := rp.spawn()
	if co == nil {
		panic("cort: Repeater spawn returned nil")
	}
	startChain(co)
	rp.spawned++
}
