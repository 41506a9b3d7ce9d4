package cort

// timerItem links one armed waiter into its deadline bucket. The scheduler
// hands it back to the waiter as an opaque registration token.
type timerItem struct {
	noCopy

	w Waiter // nil after cancellation; the slot is reclaimed lazily
}

// timerBucket aggregates every waiter armed for the same absolute
// millisecond deadline into one heap node. Many unrelated waiters round to
// the same millisecond, and one node per deadline beats one node per waiter.
// Insertion order inside the bucket is the resumption order.
type timerBucket struct {
	expiredAt int64
	items     []*timerItem
}

// timerHeap is a 4-ary min-heap of deadline buckets.
type timerHeap struct {
	fheap      []*timerBucket
	byDeadline map[int64]*timerBucket

	liveItems int // registrations not yet expired or cancelled
}

func newTimerHeap(initCap int) *timerHeap {
	if initCap < 1 {
		panic("timerHeap initCap invalid!")
	}
	return &timerHeap{
		fheap:      make([]*timerBucket, 0, initCap),
		byDeadline: make(map[int64]*timerBucket, initCap),
	}
}

func (th *timerHeap) schedule(w Waiter, expiredAt int64) *timerItem {
	ti := &timerItem{w: w}
	b := th.byDeadline[expiredAt]
	if b == nil {
		b = &timerBucket{expiredAt: expiredAt, items: make([]*timerItem, 0, 2)}
		th.byDeadline[expiredAt] = b
		th.fheap = append(th.fheap, b)
		th.shiftUp(len(th.fheap) - 1)
	}
	b.items = append(b.items, ti)
	th.liveItems++
	return ti
}

// cancel tombstones the registration. The bucket keeps its heap position;
// the dead slot is dropped when the bucket is popped.
func (th *timerHeap) cancel(ti *timerItem) {
	if ti.w == nil {
		return
	}
	ti.w = nil
	th.liveItems--
}

func (th *timerHeap) size() int {
	return th.liveItems
}

// nearest returns the smallest deadline in the heap and true, or false when
// the heap holds no buckets at all (fully tombstoned buckets still count
// here; they only cost one early wake).
func (th *timerHeap) nearest() (int64, bool) {
	if len(th.fheap) == 0 {
		return 0, false
	}
	return th.fheap[0].expiredAt, true
}

// popExpired removes and returns the nearest bucket if it is due at now.
// The bucket leaves the aggregation index first, so a waiter re-arming for
// the same millisecond during dispatch lands in a fresh bucket.
func (th *timerHeap) popExpired(now int64) *timerBucket {
	if len(th.fheap) == 0 || th.fheap[0].expiredAt > now {
		return nil
	}
	return th.popMin()
}

func (th *timerHeap) popMin() *timerBucket {
	if len(th.fheap) == 0 {
		return nil
	}
	min := th.fheap[0]
	last := len(th.fheap) - 1
	th.fheap[0] = th.fheap[last]
	th.fheap = th.fheap[:last]
	th.shiftDown(0)
	delete(th.byDeadline, min.expiredAt)
	return min
}

func (th *timerHeap) shiftUp(index int) {
	parent := (index - 1) / 4

	for index > 0 && th.fheap[index].expiredAt < th.fheap[parent].expiredAt {
		th.fheap[index], th.fheap[parent] = th.fheap[parent], th.fheap[index]
		index = parent
		parent = (index - 1) / 4
	}
}

func (th *timerHeap) shiftDown(index int) {
	size := len(th.fheap)

	for {
		smallest := index
		childStart := 4*index + 1
		childEnd := childStart + 4

		if childStart >= size {
			break
		}
		for i := childStart; i < childEnd && i < size; i++ {
			if th.fheap[i].expiredAt < th.fheap[smallest].expiredAt {
				smallest = i
			}
		}
		if smallest == index {
			break
		}
		th.fheap[index], th.fheap[smallest] = th.fheap[smallest], th.fheap[index]
		index = smallest
	}
}
