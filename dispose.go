package zest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pthm/zest/lib/dom"
)

// DisposeElements is the default element-removal collaborator. Every
// registered component rooted in nodes, descendants included, is unregistered
// and structurally disposed; then the nodes are detached from their parents.
func (rt *Runtime) DisposeElements(ctx context.Context, nodes ...*html.Node) error {
	var ids []string
	for _, root := range nodes {
		dom.Walk(root, func(n *html.Node) bool {
			if n.Type != html.ElementNode {
				return true
			}
			if id := dom.ID(n); id != "" {
				if _, ok := rt.Component(id); ok {
					ids = append(ids, id)
				}
			}
			return true
		})
	}

	var errs []error
	for _, id := range ids {
		if err := rt.disposeRegistered(ctx, id, true); err != nil && !errors.Is(err, ErrDisposed) {
			errs = append(errs, err)
		}
	}
	for _, n := range nodes {
		dom.Remove(n)
	}
	return errors.Join(errs...)
}

// Dispose disposes the component registered under id. With system=false the
// component's markup is removed, which in turn disposes it structurally.
func (rt *Runtime) Dispose(ctx context.Context, id string, system bool) error {
	if _, ok := rt.Component(id); !ok {
		return fmt.Errorf("%w: %q", ErrNotRegistered, id)
	}
	return rt.disposeRegistered(ctx, id, system)
}

func (rt *Runtime) disposeRegistered(ctx context.Context, id string, system bool) error {
	c, ok := rt.Component(id)
	if !ok {
		return nil
	}
	hook := rt.hook(id)
	if system {
		rt.Unregister(id)
	}

	switch {
	case hook != nil:
		_, err := hook.Invoke(ctx, c, system)
		return err
	default:
		if d, ok := c.(Disposable); ok {
			return d.Dispose(ctx, system)
		}
	}

	// A static component is its element.
	if n, ok := c.(*html.Node); ok && !system {
		rt.logger.Debug("removing static component", zap.String("zid", id))
		return rt.disposer.DisposeElements(ctx, n)
	}
	return nil
}

// evict structurally disposes whatever is registered under id so that a new
// component can take the id over. A live entry is never overwritten silently.
func (rt *Runtime) evict(ctx context.Context, id string) error {
	if _, ok := rt.Component(id); !ok {
		return nil
	}
	rt.logger.Debug("replacing registered component", zap.String("zid", id))
	if err := rt.disposeRegistered(ctx, id, true); err != nil && !errors.Is(err, ErrDisposed) {
		return fmt.Errorf("zest: replace %q: %w", id, err)
	}
	return nil
}
