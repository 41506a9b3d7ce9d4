package cort

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyWakesLoop(t *testing.T) {
	s, err := NewScheduler(LockOSThread(false))
	require.NoError(t, err)
	defer s.Destroy()

	fired := 0
	nt, err := NewNotify(s, func() { fired++ })
	require.NoError(t, err)
	assert.Equal(t, 1, s.WatchedFdCount(), "the eventfd counts as watched")

	go func() {
		time.Sleep(20 * time.Millisecond)
		nt.Notify()
		nt.Notify() // duplicates collapse until the loop drains
		time.Sleep(50 * time.Millisecond)
		nt.Close()
	}()

	start := time.Now()
	require.NoError(t, s.Loop())
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, s.WatchedFdCount(), "Close released the eventfd")
	assert.Less(t, time.Since(start), time.Second)
}

func TestNotifySurvivesDestroy(t *testing.T) {
	s, err := NewScheduler(LockOSThread(false))
	require.NoError(t, err)

	nt, err := NewNotify(s, nil)
	require.NoError(t, err)
	require.Equal(t, 1, s.WatchedFdCount())

	s.Destroy()
	assert.Equal(t, 0, s.WatchedFdCount())
	assert.Equal(t, -1, nt.Fd())
	assert.True(t, nt.IsStopped())
}
