package cort

// RefCounted is the method set Handle manages. TimeoutWaiter provides it,
// so any waiter type qualifies.
type RefCounted interface {
	comparable
	AddRef()
	RemoveRef() uint32
	Release() uint32
}

// Handle is a COM-style strong reference to a reference-counted waiter.
// Every reference is strong; the object is disposed exactly once, when the
// last one goes. There is no finalizer magic: call Clear (or overwrite via
// Set) when done.
type Handle[T RefCounted] struct {
	cort T
}

// NewHandle adopts p as a strong reference.
func NewHandle[T RefCounted](p T) Handle[T] {
	var h Handle[T]
	h.Set(p)
	return h
}

// Ok reports whether the handle targets anything.
func (h *Handle[T]) Ok() bool {
	var zero T
	return h.cort != zero
}

// Get returns the target without touching the count.
func (h *Handle[T]) Get() T {
	return h.cort
}

// Set releases the current target and adopts p. Assigning the target it
// already holds is a no-op.
func (h *Handle[T]) Set(p T) {
	var zero T
	if h.cort == p {
		return
	}
	if h.cort != zero {
		h.cort.Release()
	}
	h.cort = p
	if p != zero {
		p.AddRef()
	}
}

// Assign adopts rhs's target, sharing ownership.
func (h *Handle[T]) Assign(rhs *Handle[T]) {
	h.Set(rhs.cort)
}

// Clear releases the target and empties the handle, returning the count
// that remains.
func (h *Handle[T]) Clear() uint32 {
	var zero T
	if h.cort == zero {
		return 0
	}
	result := h.cort.Release()
	h.cort = zero
	return result
}

// New discards any current target and adopts a freshly allocated one under
// single ownership.
func (h *Handle[T]) New(alloc func() T) {
	var zero T
	if h.cort != zero {
		h.cort.Release()
	}
	h.cort = alloc()
	h.cort.AddRef()
}

// CastHandle converts a handle of a related waiter type, sharing ownership
// without double counting. ok is false and the result empty when the
// dynamic type does not match D. An empty source yields an empty handle.
func CastHandle[D RefCounted, S RefCounted](src *Handle[S]) (Handle[D], bool) {
	var out Handle[D]
	if !src.Ok() {
		return out, true
	}
	d, ok := any(src.Get()).(D)
	if !ok {
		return out, false
	}
	out.Set(d)
	return out, true
}
