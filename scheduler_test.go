package cort

import (
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopReturnsWhenIdle(t *testing.T) {
	s, err := NewScheduler()
	require.NoError(t, err)
	defer s.Destroy()

	done := make(chan error, 1)
	go func() { done <- s.Loop() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Loop did not return with nothing registered")
	}
}

func TestSchedulerClockCache(t *testing.T) {
	s, err := NewScheduler(LockOSThread(false))
	require.NoError(t, err)
	defer s.Destroy()

	cached := s.NowMs()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, cached, s.NowMs(), "NowMs must not re-read the clock")
	fresh := s.RefreshClock()
	assert.GreaterOrEqual(t, fresh, cached+25)
	assert.Equal(t, fresh, s.NowMs())
}

func TestDestroyStopsEveryWaiterOnce(t *testing.T) {
	s, err := NewScheduler(LockOSThread(false))
	require.NoError(t, err)

	w1 := newTestWaiter(s)
	w2 := newTestWaiter(s)
	w3 := newTestWaiter(s)
	var w4 *testWaiter

	// w2's stop resumption registers a brand-new waiter mid-sweep
	w2.onResume = func(tw *testWaiter) Coroutine {
		w4 = newTestWaiter(s)
		w4.SetTimeout(100000)
		return tw.OnFinish()
	}
	// w3 tries to re-arm itself from its own stop resumption
	w3.onResume = func(tw *testWaiter) Coroutine {
		tw.SetTimeout(100000)
		return nil
	}

	w1.SetTimeout(100000)
	w2.SetTimeout(100000)
	w3.SetTimeout(100000)
	s.Destroy()

	require.NotNil(t, w4, "w2 stop resumption did not run")
	for _, w := range []*testWaiter{w1, w2, w3, w4} {
		assert.Equal(t, 1, w.wakes, "visited exactly once")
		assert.True(t, w.IsStopped())
	}
	assert.Equal(t, 0, s.PendingTimerCount())
	assert.Equal(t, 0, s.WatchedFdCount())

	s.Destroy() // second call is a no-op
	assert.Equal(t, 1, w1.wakes)
}

func TestDestroySweepsFdWaiters(t *testing.T) {
	s, err := NewScheduler(LockOSThread(false))
	require.NoError(t, err)

	var p [2]int
	require.NoError(t, syscall.Pipe(p[:]))
	defer syscall.Close(p[0])
	defer syscall.Close(p[1])

	fw := newTestFdWaiter(s, p[0])
	require.NoError(t, fw.SetPollRequest(EvIn))
	fw.SetTimeout(100000)
	assert.Equal(t, 1, s.WatchedFdCount())

	s.Destroy()
	assert.Equal(t, 1, fw.stopped)
	assert.Equal(t, 0, fw.polled)
	assert.Equal(t, 0, s.WatchedFdCount())
	assert.Equal(t, 0, s.PendingTimerCount())
}

func TestSchedulerOptions(t *testing.T) {
	s, err := NewScheduler(
		TimerHeapInitSize(16),
		FdMapArrSize(64),
		EvReadyNum(8),
		LockOSThread(false),
		WithLogger(zerolog.New(io.Discard)),
	)
	require.NoError(t, err)
	defer s.Destroy()

	assert.GreaterOrEqual(t, s.PollFd(), 0)

	w := newTestWaiter(s)
	w.SetTimeout(10)
	require.NoError(t, s.Loop())
	assert.Equal(t, 1, w.wakes)
}

func TestLoopRunsMultipleSchedulers(t *testing.T) {
	// per-thread singletons in C++; explicit handles here, so two instances
	// can live in one test goroutine
	s1, err := NewScheduler(LockOSThread(false))
	require.NoError(t, err)
	defer s1.Destroy()
	s2, err := NewScheduler(LockOSThread(false))
	require.NoError(t, err)
	defer s2.Destroy()

	a := newTestWaiter(s1)
	a.SetTimeout(10)
	b := newTestWaiter(s2)
	b.SetTimeout(10)

	require.NoError(t, s1.Loop())
	require.NoError(t, s2.Loop())
	assert.Equal(t, 1, a.wakes)
	assert.Equal(t, 1, b.wakes)
}
