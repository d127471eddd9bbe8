package zest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pthm/zest/lib/dom"
	"github.com/pthm/zest/lib/fnchain"
)

// AttachDocument processes every attach directive in the live document, in
// document order. Directives are independent: a failing one is logged and
// skipped, and all failures are joined into the returned error.
func (rt *Runtime) AttachDocument(ctx context.Context) error {
	var errs []error
	for _, d := range rt.Directives() {
		if _, err := rt.AttachDirective(ctx, d); err != nil {
			rt.logger.Warn("attach failed",
				zap.String("zid", d.TargetID),
				zap.String("controller", d.Controller),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AttachDirective reconnects behavior to the markup a directive points at
// and returns what was registered for it. The directive node is removed from
// the document whether or not attaching succeeds.
func (rt *Runtime) AttachDirective(ctx context.Context, d Directive) (any, error) {
	defer dom.Remove(d.Node)

	doc := rt.Document()
	if !doc.Live() {
		return nil, fmt.Errorf("%w: %q", ErrServerConstruct, d.TargetID)
	}
	el := doc.GetElementByID(d.TargetID)
	if el == nil {
		return nil, fmt.Errorf("%w: %q", ErrTargetNotFound, d.TargetID)
	}

	o, err := rt.DirectiveOptions(d)
	if err != nil {
		return nil, fmt.Errorf("zest: directive %q: %w", d.TargetID, err)
	}
	o[OptGlobal] = rt.global

	controller, err := rt.resolveController(ctx, d.Controller)
	if err != nil {
		return nil, fmt.Errorf("zest: directive %q: %w", d.TargetID, err)
	}

	if err := rt.evict(ctx, d.TargetID); err != nil {
		return nil, err
	}

	var result any
	if fn := attachFuncOf(controller); fn != nil {
		result, err = fn(ctx, el, o)
		if err != nil {
			return nil, fmt.Errorf("zest: attach %q: %w", d.TargetID, err)
		}
	}

	rt.observeID(d.TargetID)

	if isNil(result) {
		rt.Register(d.TargetID, el)
		return el, nil
	}
	rt.Register(d.TargetID, result)
	rt.foldDispose(d.TargetID, el, result)

	rt.logger.Debug("component attached",
		zap.String("zid", d.TargetID),
		zap.String("controller", d.Controller),
	)
	return result, nil
}

// resolveController turns a controller reference into a value. An empty
// reference resolves to nil.
func (rt *Runtime) resolveController(ctx context.Context, ref string) (any, error) {
	if ref == "" {
		return nil, nil
	}
	if rt.loader != nil {
		values, err := rt.loader.Load(ctx, ref)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, ref)
		}
		return values[0], nil
	}
	c, ok := rt.Class(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, ref)
	}
	return c, nil
}

// attachFuncOf picks the attach entry point of a controller: a dedicated
// AttachEntry when present, otherwise the controller itself when callable.
func attachFuncOf(controller any) AttachFunc {
	switch c := controller.(type) {
	case nil:
		return nil
	case Attacher:
		return c.AttachEntry()
	case AttachFunc:
		return c
	case func(context.Context, *html.Node, Options) (any, error):
		return c
	case func(*html.Node, Options) any:
		return func(_ context.Context, el *html.Node, o Options) (any, error) {
			return c(el, o), nil
		}
	}
	return nil
}

// foldDispose ties a controller's dispose logic into the two-phase protocol:
// a removal request removes the target element, which disposes the
// controller structurally.
func (rt *Runtime) foldDispose(id string, el *html.Node, controller any) {
	removal := func(ctx context.Context, _ any, args ...any) (any, error) {
		if len(args) > 0 && args[0] == true {
			return nil, nil
		}
		return true, rt.disposer.DisposeElements(ctx, el)
	}

	switch c := controller.(type) {
	case ChainDisposer:
		ch := c.DisposeChain()
		if ch == nil {
			return
		}
		ch.SetPolicy(rt.stopPolicy)
		ch.Prepend(removal)
	case Disposable:
		hook := func(ctx context.Context, _ any, args ...any) (any, error) {
			if len(args) == 0 || args[0] != true {
				return removal(ctx, nil, args...)
			}
			return nil, c.Dispose(ctx, true)
		}
		rt.setHook(id, fnchain.New(rt.stopPolicy, hook))
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch p := v.(type) {
	case *Instance:
		return p == nil
	case *html.Node:
		return p == nil
	}
	return false
}
