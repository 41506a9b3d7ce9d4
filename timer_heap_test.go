package cort

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerHeapAlgo(t *testing.T) {
	th := newTimerHeap(64)

	for i := 0; i < 500; i++ {
		th.schedule(&testWaiter{}, rand.Int63()%200+2)
	}
	assert.Equal(t, 500, th.size())
	assert.LessOrEqual(t, len(th.fheap), 202, "same-deadline waiters share buckets")

	prev := int64(-1)
	popped := 0
	for {
		b := th.popMin()
		if b == nil {
			break
		}
		require.GreaterOrEqual(t, b.expiredAt, prev, "heap order")
		prev = b.expiredAt
		popped += len(b.items)
	}
	assert.Equal(t, 500, popped)
}

func TestTimerHeapAggregation(t *testing.T) {
	th := newTimerHeap(8)

	w1, w2, w3 := &testWaiter{}, &testWaiter{}, &testWaiter{}
	th.schedule(w1, 100)
	th.schedule(w2, 100)
	th.schedule(w3, 200)
	assert.Equal(t, 3, th.size())
	assert.Equal(t, 2, len(th.fheap), "one node per distinct deadline")

	nearest, ok := th.nearest()
	require.True(t, ok)
	assert.Equal(t, int64(100), nearest)

	assert.Nil(t, th.popExpired(99))
	b := th.popExpired(100)
	require.NotNil(t, b)
	require.Len(t, b.items, 2)
	assert.Same(t, w1, b.items[0].w, "insertion order inside the bucket")
	assert.Same(t, w2, b.items[1].w)
}

func TestTimerHeapCancel(t *testing.T) {
	th := newTimerHeap(8)

	ti := th.schedule(&testWaiter{}, 50)
	th.schedule(&testWaiter{}, 50)
	th.cancel(ti)
	th.cancel(ti) // idempotent
	assert.Equal(t, 1, th.size())

	b := th.popExpired(50)
	require.NotNil(t, b)
	assert.Nil(t, b.items[0].w, "cancelled slot is a tombstone")
	assert.NotNil(t, b.items[1].w)

	_, ok := th.nearest()
	assert.False(t, ok)
}

func BenchmarkTimerHeapSchedule(b *testing.B) {
	th := newTimerHeap(1024)
	w := &testWaiter{}
	for i := 0; i < b.N; i++ {
		th.schedule(w, int64(i%4096))
	}
}
