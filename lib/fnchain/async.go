package fnchain

import (
	"context"
	"sync"
)

// AsyncFunc is a chain entry that signals completion through done instead of
// returning. done must be called exactly once; later calls are ignored.
type AsyncFunc func(ctx context.Context, self any, done func(error), args ...any)

// Await adapts a completion-signalling entry into a Func that blocks until
// done is called or ctx is cancelled. Used for the load waterfall, where an
// entry may hand its work to another goroutine:
//
//	load := fnchain.Await(func(ctx context.Context, self any, done func(error), args ...any) {
//	    go func() { done(fetchTheme(ctx)) }()
//	})
func Await(fn AsyncFunc) Func {
	return func(ctx context.Context, self any, args ...any) (any, error) {
		ch := make(chan error, 1)
		var once sync.Once
		done := func(err error) {
			once.Do(func() { ch <- err })
		}

		fn(ctx, self, done, args...)

		select {
		case err := <-ch:
			return nil, err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
