package zest

import (
	"context"
	"fmt"

	"github.com/pthm/zest/lib/extend"
	"github.com/pthm/zest/lib/fnchain"
)

// concatCSS folds css layers in order.
func concatCSS(acc, v any) any {
	a, _ := acc.(string)
	b, _ := v.(string)
	return a + b
}

// mergeCSS joins two css layers. Two plain strings stay a plain string;
// anything dynamic turns the field into a new concatenating chain evaluated
// per call, so option-dependent layers see the options of that call. A chain
// already in the field is wrapped, not appended to.
func mergeCSS(old, v any) (any, error) {
	if a, ok := old.(string); ok {
		if b, ok := v.(string); ok {
			return a + b, nil
		}
	}

	next, err := cssFunc(v)
	if err != nil {
		return nil, err
	}
	prev, err := cssFunc(old)
	if err != nil {
		return nil, err
	}
	return fnchain.New(fnchain.Reduce("", concatCSS), prev, next), nil
}

// cssFunc normalizes a css layer. Layers receive the class as self and the
// call's Options as their only argument.
func cssFunc(v any) (fnchain.Func, error) {
	switch css := v.(type) {
	case string:
		return func(context.Context, any, ...any) (any, error) {
			return css, nil
		}, nil
	case func(Options) string:
		return func(_ context.Context, _ any, args ...any) (any, error) {
			return css(optionsArg(args)), nil
		}, nil
	case func(context.Context, Options) (string, error):
		return func(ctx context.Context, _ any, args ...any) (any, error) {
			return css(ctx, optionsArg(args))
		}, nil
	}
	fn, err := fnchain.From(v)
	if err != nil {
		return nil, fmt.Errorf("%w: css layer: %w", extend.ErrIncompatible, err)
	}
	return fn, nil
}

func optionsArg(args []any) Options {
	if len(args) == 0 {
		return Options{}
	}
	o, _ := asOptions(args[0])
	return o
}
