// Package fnchain builds one callable out of an ordered list of callables.
//
// A Chain is a shared, appendable composition point: class layers append to
// the same chain over a class's lifetime, and every holder of the handle sees
// the additions. How the entries combine is decided by the chain's Policy:
//
//	c := fnchain.New(fnchain.Async, loadTheme)
//	c.Append(loadData)                       // runs after loadTheme completes
//	_, err := c.Invoke(ctx, component, opts)
//
// Entries run in registration order under every policy.
package fnchain

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Func is a single chain entry. self is the receiver the chain is invoked on.
// Returning a nil value means the entry produced no value.
type Func func(ctx context.Context, self any, args ...any) (any, error)

// UndefinedLiteral is the only output StopFirstDefinedLiteral treats as
// "no value produced".
const UndefinedLiteral = "undefined"

// ErrNotCallable is returned by From for values that cannot become a Func.
var ErrNotCallable = errors.New("fnchain: value is not callable")

// Kind selects how a chain combines its entries.
type Kind int

const (
	// KindLastDefined runs every entry and returns the last non-nil output.
	KindLastDefined Kind = iota
	// KindAsync runs entries as a waterfall; each waits for the previous one.
	KindAsync
	// KindStopFirstDefined runs entry 0 and stops if it produced a value.
	KindStopFirstDefined
	// KindReduce folds entry outputs from a seed.
	KindReduce
)

func (k Kind) String() string {
	switch k {
	case KindLastDefined:
		return "LAST_DEFINED"
	case KindAsync:
		return "ASYNC"
	case KindStopFirstDefined:
		return "STOP_FIRST_DEFINED"
	case KindReduce:
		return "REDUCE"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Policy is a combination policy: a Kind plus its parameters.
type Policy struct {
	Kind Kind

	// Literal switches StopFirstDefined to the legacy test where only the
	// string "undefined" counts as no value. nil, 0 and false all count as
	// produced values under that test.
	Literal bool

	// Seed and Combine parameterize KindReduce.
	Seed    any
	Combine func(acc, v any) any
}

// Predefined policies.
var (
	LastDefined             = Policy{Kind: KindLastDefined}
	Async                   = Policy{Kind: KindAsync}
	StopFirstDefined        = Policy{Kind: KindStopFirstDefined}
	StopFirstDefinedLiteral = Policy{Kind: KindStopFirstDefined, Literal: true}
)

// Reduce returns a policy folding entry outputs left to right from seed.
//
//	css := fnchain.New(fnchain.Reduce("", func(acc, v any) any {
//	    return acc.(string) + v.(string)
//	}))
func Reduce(seed any, combine func(acc, v any) any) Policy {
	return Policy{Kind: KindReduce, Seed: seed, Combine: combine}
}

// Defined reports whether v counts as a produced value under p.
func (p Policy) Defined(v any) bool {
	if p.Literal {
		s, ok := v.(string)
		return !ok || s != UndefinedLiteral
	}
	return v != nil
}

// Chain is an ordered, appendable list of entries invoked under one policy.
// The zero value is not usable; create chains with New.
type Chain struct {
	mu     sync.Mutex
	policy Policy
	fns    []Func
}

// New creates a chain with the given policy and initial entries.
func New(p Policy, fns ...Func) *Chain {
	c := &Chain{policy: p}
	for _, fn := range fns {
		if fn != nil {
			c.fns = append(c.fns, fn)
		}
	}
	return c
}

// Append adds fn to the end of the chain in place and returns the chain.
func (c *Chain) Append(fn Func) *Chain {
	if fn == nil {
		return c
	}
	c.mu.Lock()
	c.fns = append(c.fns, fn)
	c.mu.Unlock()
	return c
}

// Prepend adds fn to the front of the chain in place and returns the chain.
func (c *Chain) Prepend(fn Func) *Chain {
	if fn == nil {
		return c
	}
	c.mu.Lock()
	c.fns = append([]Func{fn}, c.fns...)
	c.mu.Unlock()
	return c
}

// Policy returns the chain's current combination policy.
func (c *Chain) Policy() Policy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// SetPolicy replaces the combination policy. Existing entries are kept.
func (c *Chain) SetPolicy(p Policy) {
	c.mu.Lock()
	c.policy = p
	c.mu.Unlock()
}

// Len returns the number of entries.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fns)
}

// Func exposes the chain as a single entry. Entries appended to c later are
// still seen through the returned Func.
func (c *Chain) Func() Func {
	return c.Invoke
}

// Invoke runs the chain on self with args under the chain's policy.
//
// The entry list is snapshotted first, so an entry may append to the chain
// it is running in; the addition takes effect on the next invocation.
func (c *Chain) Invoke(ctx context.Context, self any, args ...any) (any, error) {
	c.mu.Lock()
	p := c.policy
	fns := make([]Func, len(c.fns))
	copy(fns, c.fns)
	c.mu.Unlock()

	switch p.Kind {
	case KindLastDefined:
		return runLastDefined(ctx, fns, self, args)
	case KindAsync:
		return runAsync(ctx, fns, self, args)
	case KindStopFirstDefined:
		return runStopFirstDefined(ctx, p, fns, self, args)
	case KindReduce:
		return runReduce(ctx, p, fns, self, args)
	default:
		return nil, fmt.Errorf("fnchain: unknown policy %s", p.Kind)
	}
}

func runLastDefined(ctx context.Context, fns []Func, self any, args []any) (any, error) {
	var last any
	for _, fn := range fns {
		out, err := fn(ctx, self, args...)
		if err != nil {
			return nil, err
		}
		if out != nil {
			last = out
		}
	}
	return last, nil
}

func runAsync(ctx context.Context, fns []Func, self any, args []any) (any, error) {
	var last any
	for i, fn := range fns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := fn(ctx, self, args...)
		if err != nil {
			return nil, fmt.Errorf("fnchain: async entry %d: %w", i, err)
		}
		if out != nil {
			last = out
		}
	}
	return last, nil
}

func runStopFirstDefined(ctx context.Context, p Policy, fns []Func, self any, args []any) (any, error) {
	if len(fns) == 0 {
		return nil, nil
	}
	out, err := fns[0](ctx, self, args...)
	if err != nil {
		return nil, err
	}
	if p.Defined(out) {
		return out, nil
	}
	for _, fn := range fns[1:] {
		if _, err := fn(ctx, self, args...); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func runReduce(ctx context.Context, p Policy, fns []Func, self any, args []any) (any, error) {
	acc := p.Seed
	for _, fn := range fns {
		out, err := fn(ctx, self, args...)
		if err != nil {
			return nil, err
		}
		if p.Combine != nil {
			acc = p.Combine(acc, out)
		}
	}
	return acc, nil
}
