package service

// conflated is a single-slot signal: a new value replaces an unconsumed one,
// so at most one item is ever pending.
type conflated[T any] struct {
	ch chan T
}

func newConflated[T any]() conflated[T] {
	return conflated[T]{ch: make(chan T, 1)}
}

func (c conflated[T]) send(v T) { sendLatest(c.ch, v) }

// take consumes the pending value, if any.
func (c conflated[T]) take() (T, bool) {
	select {
	case v := <-c.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}
