package cort

import (
	"github.com/rs/zerolog"
)

// Options holds scheduler construction parameters.
type Options struct {
	timerHeapInitSize int
	fdMapArrSize      int
	evReadyNum        int
	lockOSThread      bool

	logger zerolog.Logger
}

// Option mutates Options.
type Option func(*Options)

func setOptions(optL ...Option) *Options {
	//= default options
	o := &Options{
		timerHeapInitSize: 1024,
		fdMapArrSize:      8192,
		evReadyNum:        128,
		lockOSThread:      true,
		logger:            zerolog.Nop(),
	}
	for _, opt := range optL {
		opt(o)
	}
	return o
}

// TimerHeapInitSize presizes the deadline-bucket heap.
func TimerHeapInitSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.timerHeapInitSize = n
		}
	}
}

// FdMapArrSize sets the direct-index range of the fd table. Descriptors
// beyond it fall back to a map; size it to your expected fd range.
func FdMapArrSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.fdMapArrSize = n
		}
	}
}

// EvReadyNum sets how many ready events one epoll_wait may return.
func EvReadyNum(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.evReadyNum = n
		}
	}
}

// LockOSThread controls whether Loop pins its goroutine to an OS thread.
// On by default; the scheduler is a per-thread object.
func LockOSThread(v bool) Option {
	return func(o *Options) {
		o.lockOSThread = v
	}
}

// WithLogger installs a zerolog logger for scheduler diagnostics.
// Silent by default.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.logger = l
	}
}
