package pipeline

type lazyState uint8

const (
	lazyUnset lazyState = iota
	lazyNone
	lazySome
)

// Lazy memoizes a value that is computed at most once and may turn out to be
// absent. It is not safe for concurrent use; a Context belongs to one request.
type Lazy[T any] struct {
	state lazyState
	value T
}

// Get computes the value on first use and returns the memoized answer after.
func (l *Lazy[T]) Get(compute func() (T, bool)) (T, bool) {
	if l.state == lazyUnset {
		v, ok := compute()
		l.Set(v, ok)
	}
	return l.value, l.state == lazySome
}

// Peek returns the memoized answer without computing anything.
func (l *Lazy[T]) Peek() (T, bool) {
	return l.value, l.state == lazySome
}

// Set records an answer without computing it.
func (l *Lazy[T]) Set(v T, ok bool) {
	if ok {
		l.value, l.state = v, lazySome
		return
	}
	var zero T
	l.value, l.state = zero, lazyNone
}

// Resolved reports whether an answer, present or absent, is known.
func (l *Lazy[T]) Resolved() bool {
	return l.state != lazyUnset
}
