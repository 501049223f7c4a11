// Package future runs work on its own goroutine and hands back a value to wait on.
package future

import (
	"context"
)

// Future is the pending result of a function running on its own goroutine.
type Future[T any] struct {
	done  chan struct{}
	value T
}

// Go starts fn on a new goroutine.
func Go[T any](fn func() T) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value = fn()
	}()
	return f
}

// Done is closed once the value is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the value is available or ctx is done.
// Abandoning a future does not stop its goroutine.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks until the value is available.
func (f *Future[T]) Wait() T {
	<-f.done
	return f.value
}
