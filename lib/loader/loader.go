// Package loader resolves named dependencies to values.
//
// A Registry maps names to either fixed values or factories. A factory runs
// until it first succeeds; a batch of names resolves in parallel and the
// results come back in request order:
//
//	reg := loader.New()
//	reg.Register("app/slideshow", slideshowClass)
//	reg.RegisterFunc("app/feed", func(ctx context.Context) (any, error) {
//	    return buildFeed(ctx)
//	})
//	values, err := reg.Load(ctx, "app/slideshow", "app/feed")
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrUnknownModule is returned for names that were never registered.
var ErrUnknownModule = errors.New("loader: unknown module")

// Factory produces the value for a name on first use.
type Factory func(ctx context.Context) (any, error)

type entry struct {
	mu       sync.Mutex
	factory  Factory
	value    any
	resolved bool
}

// resolve runs the factory once it succeeds; failures are not cached.
func (e *entry) resolve(ctx context.Context) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resolved {
		return e.value, nil
	}
	v, err := e.factory(ctx)
	if err != nil {
		return nil, err
	}
	e.value, e.resolved = v, true
	return v, nil
}

// Registry is a concurrency-safe name -> value resolver.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register binds name to a fixed value.
func (r *Registry) Register(name string, value any) {
	r.RegisterFunc(name, func(context.Context) (any, error) { return value, nil })
}

// RegisterFunc binds name to a factory. Re-registering a name replaces it and
// forgets any cached value.
func (r *Registry) RegisterFunc(name string, f Factory) {
	r.mu.Lock()
	r.entries[name] = &entry{factory: f}
	r.mu.Unlock()
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Load resolves names concurrently. values[i] belongs to names[i]. The first
// failure cancels the remaining factories and is returned.
func (r *Registry) Load(ctx context.Context, names ...string) ([]any, error) {
	entries := make([]*entry, len(names))
	r.mu.RLock()
	for i, name := range names {
		e, ok := r.entries[name]
		if !ok {
			r.mu.RUnlock()
			return nil, fmt.Errorf("%w: %q", ErrUnknownModule, name)
		}
		entries[i] = e
	}
	r.mu.RUnlock()

	values := make([]any, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		name := names[i]
		g.Go(func() error {
			v, err := e.resolve(gctx)
			if err != nil {
				return fmt.Errorf("loader: %q: %w", name, err)
			}
			values[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

// Resolve is the continuation form of Load: cont receives the values of one
// batch, in request order, once they are all available.
func (r *Registry) Resolve(ctx context.Context, names []string, cont func(values ...any)) error {
	values, err := r.Load(ctx, names...)
	if err != nil {
		return err
	}
	cont(values...)
	return nil
}
