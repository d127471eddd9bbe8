package zest

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pthm/zest/lib/dom"
	"github.com/pthm/zest/lib/fnchain"
)

// State is an instance's position in the dispose lifecycle.
type State int

const (
	Live State = iota
	Disposing
	Disposed
)

func (s State) String() string {
	switch s {
	case Live:
		return "live"
	case Disposing:
		return "disposing"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Instance is a component bound to elements of a live document.
type Instance struct {
	ID    string
	Type  string
	class *Class
	rt    *Runtime

	mu       sync.Mutex
	elements []*html.Node
	o        Options
	members  map[string]any
	state    State

	// dispose wraps the class chain so that per-instance hooks never leak
	// into sibling instances.
	dispose *fnchain.Chain
}

// construct is the attach path of the factory: o["$$"] names the elements
// the instance takes over.
func (c *Class) construct(ctx context.Context, o Options) (*Instance, error) {
	rt := c.rt
	if !rt.Document().Live() {
		return nil, fmt.Errorf("%w: %q", ErrServerConstruct, c.Type())
	}
	elements, ok := o.Elements()
	if !ok {
		return nil, fmt.Errorf("%w: %q needs elements under %q", ErrInvalidOptions, c.Type(), OptElements)
	}

	opts := c.Defaults()
	maps.Copy(opts, o)
	delete(opts, OptElements)

	id := dom.ID(elements[0])
	if id == "" {
		id = opts.String(OptID)
	}
	if id == "" {
		id = rt.NextID()
		dom.SetAttr(elements[0], "id", id)
	} else {
		rt.observeID(id)
	}
	opts[OptID] = id
	opts[OptType] = c.Type()

	inst := &Instance{
		ID:       id,
		Type:     c.Type(),
		class:    c,
		rt:       rt,
		elements: elements,
		o:        opts,
		members:  c.members(),
	}
	if classChain := c.PrototypeDispose(); classChain != nil {
		inst.dispose = fnchain.New(classChain.Policy(), classChain.Func())
	} else {
		inst.dispose = fnchain.New(rt.stopPolicy, baseDispose)
	}

	if err := rt.evict(ctx, id); err != nil {
		return nil, err
	}

	if ch, ok := c.def["construct"].(*fnchain.Chain); ok {
		if _, err := ch.Invoke(ctx, inst, opts); err != nil {
			return nil, fmt.Errorf("zest: construct %q: %w", c.Type(), err)
		}
	}

	rt.Register(id, inst)
	rt.logger.Debug("component constructed",
		zap.String("zid", id),
		zap.String("type", c.Type()),
		zap.Int("elements", len(elements)),
	)
	return inst, nil
}

// Class returns the class the instance was built from.
func (i *Instance) Class() *Class {
	return i.class
}

// Elements returns the owned elements. It is empty once the instance has been
// structurally disposed.
func (i *Instance) Elements() []*html.Node {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.elements
}

// Options returns the options the instance was constructed with.
func (i *Instance) Options() Options {
	return i.o
}

// Member returns a prototype member.
func (i *Instance) Member(name string) (any, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, ok := i.members[name]
	return v, ok
}

// SetMember sets a member on this instance only.
func (i *Instance) SetMember(name string, v any) {
	i.mu.Lock()
	i.members[name] = v
	i.mu.Unlock()
}

// Call invokes a callable prototype member with the instance as self.
func (i *Instance) Call(ctx context.Context, name string, args ...any) (any, error) {
	v, ok := i.Member(name)
	if !ok {
		return nil, fmt.Errorf("zest: %q has no member %q", i.Type, name)
	}
	fn, err := fnchain.From(v)
	if err != nil {
		return nil, fmt.Errorf("zest: member %q: %w", name, err)
	}
	return fn(ctx, i, args...)
}

// State returns the lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// DisposeChain returns the instance's dispose chain.
func (i *Instance) DisposeChain() *fnchain.Chain {
	return i.dispose
}

// Dispose runs the two-phase dispose protocol.
//
// Dispose(ctx, false) asks the runtime's Disposer to remove the owned
// elements; the Disposer is expected to call Dispose(ctx, true) in turn.
// Dispose(ctx, true) releases event bindings and the element list, then runs
// the dispose handlers contributed by later class layers.
func (i *Instance) Dispose(ctx context.Context, system bool) error {
	i.mu.Lock()
	if i.state == Disposed {
		i.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDisposed, i.ID)
	}
	if system {
		i.state = Disposed
	} else {
		i.state = Disposing
	}
	i.mu.Unlock()

	_, err := i.dispose.Invoke(ctx, i, system)

	if system {
		if c, ok := i.rt.Component(i.ID); ok && c == any(i) {
			i.rt.Unregister(i.ID)
		}
		i.rt.logger.Debug("component disposed", zap.String("zid", i.ID), zap.String("type", i.Type))
	}
	return err
}

// baseDispose is the first entry of every class dispose chain. The removal
// request reports a value so that later handlers wait for the structural
// call.
func baseDispose(ctx context.Context, self any, args ...any) (any, error) {
	inst, ok := self.(*Instance)
	if !ok {
		return nil, nil
	}
	system := len(args) > 0 && args[0] == true

	if !system {
		return true, inst.rt.disposer.DisposeElements(ctx, inst.Elements()...)
	}

	inst.mu.Lock()
	elements := inst.elements
	unbind := inst.members["unbind"] == true
	inst.elements = nil
	inst.mu.Unlock()

	if doc := inst.rt.Document(); unbind && doc != nil {
		if n := doc.Unbind(elements...); n > 0 {
			inst.rt.logger.Debug("unbound events", zap.String("zid", inst.ID), zap.Int("bindings", n))
		}
	}
	return nil, nil
}
