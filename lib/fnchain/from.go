package fnchain

import (
	"context"
	"fmt"
	"reflect"
)

// From normalizes the callable shapes accepted in definition fragments into
// a Func. Supported shapes:
//   - Func, *Chain, AsyncFunc
//   - func(context.Context, any, ...any) (any, error)
//   - func(any, ...any) any
//   - func() string, func() error, func()
//
// Any other value fails with ErrNotCallable, and so does a nil func or
// *Chain of a supported shape.
func From(v any) (Func, error) {
	if isNilCallable(v) {
		return nil, fmt.Errorf("%w: nil %T", ErrNotCallable, v)
	}
	switch fn := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrNotCallable)
	case Func:
		return fn, nil
	case *Chain:
		return fn.Func(), nil
	case AsyncFunc:
		return Await(fn), nil
	case func(context.Context, any, ...any) (any, error):
		return fn, nil
	case func(context.Context, any, func(error), ...any):
		return Await(fn), nil
	case func(any, ...any) any:
		return func(_ context.Context, self any, args ...any) (any, error) {
			return fn(self, args...), nil
		}, nil
	case func() string:
		return func(context.Context, any, ...any) (any, error) {
			return fn(), nil
		}, nil
	case func() error:
		return func(context.Context, any, ...any) (any, error) {
			return nil, fn()
		}, nil
	case func():
		return func(context.Context, any, ...any) (any, error) {
			fn()
			return nil, nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotCallable, v)
	}
}

func isNilCallable(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Pointer:
		return rv.IsNil()
	}
	return false
}

// MustFrom is like From but panics on values that are not callable.
func MustFrom(v any) Func {
	fn, err := From(v)
	if err != nil {
		panic(err)
	}
	return fn
}
