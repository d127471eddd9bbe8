package zest

import (
	"context"

	"golang.org/x/net/html"

	"github.com/pthm/zest/lib/fnchain"
)

// Renderer produces markup for a class into target, a detached container.
//
// The result is opaque to the runtime: TemplRenderer returns the attached
// *Instance when a live document exists, the registered element for static
// classes, and the filled target otherwise.
type Renderer interface {
	Render(ctx context.Context, c *Class, o Options, target *html.Node) (any, error)
}

// Loader resolves controller references to values. values[i] belongs to
// names[i]. *loader.Registry implements Loader.
type Loader interface {
	Load(ctx context.Context, names ...string) ([]any, error)
}

// ResolveFunc adapts a continuation-style resolver into a Loader:
//
//	zest.ResolveFunc(func(names []string, cont func(values ...any)) {
//	    go func() { cont(fetch(names)...) }()
//	})
//
// cont is expected once per call; Load waits for it or for ctx.
type ResolveFunc func(names []string, cont func(values ...any))

// Load implements Loader.
func (f ResolveFunc) Load(ctx context.Context, names ...string) ([]any, error) {
	ch := make(chan []any, 1)
	f(names, func(values ...any) {
		select {
		case ch <- values:
		default:
		}
	})

	select {
	case values := <-ch:
		return values, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Disposer is the element-removal collaborator. DisposeElements must call
// Dispose(ctx, true) on every component instance associated with the removed
// nodes. *Runtime implements Disposer.
type Disposer interface {
	DisposeElements(ctx context.Context, nodes ...*html.Node) error
}

// AttachFunc binds behavior to an existing element.
type AttachFunc func(ctx context.Context, el *html.Node, o Options) (any, error)

// Attacher is implemented by controllers with a dedicated attach entry point.
// A nil entry point means the controller has nothing to attach (a static
// class).
type Attacher interface {
	AttachEntry() AttachFunc
}

// ChainDisposer is implemented by controllers whose dispose logic is an
// appendable chain. The attachment resolver folds markup removal into it.
type ChainDisposer interface {
	DisposeChain() *fnchain.Chain
}

// Disposable is implemented by controllers taking part in the two-phase
// dispose protocol. system=false asks for markup removal; system=true is the
// structural callback that performs internal cleanup.
type Disposable interface {
	Dispose(ctx context.Context, system bool) error
}
