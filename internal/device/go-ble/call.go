package goble

import (
	"context"
	"fmt"

	"github.com/srg/blebridge/internal/device"
)

// callWithContext runs a blocking go-ble call and gives up once ctx is done.
// go-ble calls have no cancellation of their own, so an abandoned call keeps
// running until the library returns; its result is discarded.
func callWithContext[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	resultCh := make(chan result, 1)

	go func() {
		val, err := fn()
		resultCh <- result{val: val, err: err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			var zero T
			return zero, fmt.Errorf("%s: %w", op, NormalizeError(r.err))
		}
		return r.val, nil
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%s: %w: %w", op, device.ErrTimeout, ctx.Err())
	}
}
