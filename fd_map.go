package cort

// fdMap maps descriptors to their watching waiters. Descriptors within the
// array range use direct indexing, larger ones fall back to a map.
// Owned by a single scheduler thread, so no synchronization.
type fdMap struct {
	arrSize int
	arr     []pollWaiter

	sMap map[int]pollWaiter

	count int
}

func newFdMap(arrSize int) *fdMap {
	if arrSize < 1 {
		panic("newFdMap arrSize < 1")
	}
	return &fdMap{
		arrSize: arrSize,
		arr:     make([]pollWaiter, arrSize),
		sMap:    make(map[int]pollWaiter),
	}
}

func (fm *fdMap) load(fd int) pollWaiter {
	if fd < 0 {
		return nil
	}
	if fd < fm.arrSize {
		return fm.arr[fd]
	}
	return fm.sMap[fd]
}

func (fm *fdMap) store(fd int, pw pollWaiter) {
	if fm.load(fd) == nil {
		fm.count++
	}
	if fd < fm.arrSize {
		fm.arr[fd] = pw
		return
	}
	fm.sMap[fd] = pw
}

func (fm *fdMap) delete(fd int) {
	if fm.load(fd) == nil {
		return
	}
	fm.count--
	if fd < fm.arrSize {
		fm.arr[fd] = nil
		return
	}
	delete(fm.sMap, fd)
}

func (fm *fdMap) size() int {
	return fm.count
}

// collect snapshots the registered waiters; Destroy iterates the snapshot
// so resumptions may freely mutate the table underneath.
func (fm *fdMap) collect() []pollWaiter {
	out := make([]pollWaiter, 0, fm.count)
	for _, pw := range fm.arr {
		if pw != nil {
			out = append(out, pw)
		}
	}
	for _, pw := range fm.sMap {
		out = append(out, pw)
	}
	return out
}
