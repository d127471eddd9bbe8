package zest

import (
	"context"
	"fmt"
	"maps"

	"golang.org/x/net/html"

	"github.com/pthm/zest/lib/dom"
	"github.com/pthm/zest/lib/extend"
	"github.com/pthm/zest/lib/fnchain"
)

// componentTable is the fixed per-field merge table every class is built
// with. stop is the policy of the prototype.dispose chain.
func componentTable(stop fnchain.Policy) extend.Table {
	return extend.Table{
		"type":              extend.Replace,
		"pipe":              extend.Chain(fnchain.LastDefined),
		"load":              extend.Chain(fnchain.Async),
		"template":          extend.Replace,
		"options":           extend.Append,
		"css":               extend.Custom(mergeCSS),
		"attachExclusions":  extend.ArrAppend,
		"attachInclusions":  extend.ArrAppend,
		"construct":         extend.Chain(fnchain.LastDefined),
		"prototype.dispose": extend.Chain(stop),
	}
}

// baseFragment is the layer every class starts from: the structural half of
// the dispose protocol and automatic event unbinding.
func baseFragment() extend.Fragment {
	return extend.Fragment{
		"prototype": map[string]any{
			"dispose": fnchain.Func(baseDispose),
			"unbind":  true,
		},
	}
}

// detector tracks whether a class needs per-instance construction. One
// detector lives for exactly one Define call.
type detector struct {
	dynamic bool
}

func (d *detector) reset() {
	d.dynamic = false
}

func (d *detector) observe(frag extend.Fragment) {
	if d.dynamic {
		return
	}
	if frag["construct"] != nil || frag["dynamic"] == true {
		d.dynamic = true
		return
	}
	if proto, ok := asOptions(frag["prototype"]); ok && len(proto) > 0 {
		d.dynamic = true
	}
}

// Class is a fully merged component definition.
type Class struct {
	rt     *Runtime
	def    extend.Definition
	frags  []extend.Fragment
	static bool
}

// Define builds a class from fragments, merged in order on top of the base
// component layer. Field merge strategies:
//
//	type, template       replaced by later layers
//	options              maps overlaid, later keys win
//	attachExclusions     selector lists concatenated
//	attachInclusions     selector lists concatenated
//	load                 async waterfall, earlier layers first
//	pipe, construct      chained in layer order
//	css                  concatenated in layer order, evaluated at call time
//	prototype.dispose    stop-first-defined chain after the base handler
//	prototype.*          replaced member by member
//
// Any other field is replaced. A class is static when no fragment supplies
// "construct", "dynamic": true, or a prototype member.
func (rt *Runtime) Define(frags ...extend.Fragment) (*Class, error) {
	base := extend.Definition{}
	if err := extend.Integrate(rt.table, base, baseFragment()); err != nil {
		return nil, err
	}

	d := &detector{}
	def, err := extend.BuildFrom(rt.table, base, extend.Hooks{
		Make:      d.reset,
		Integrate: d.observe,
	}, frags...)
	if err != nil {
		return nil, err
	}

	return &Class{
		rt:     rt,
		def:    def,
		frags:  frags,
		static: !d.dynamic,
	}, nil
}

// MustDefine is like Define but panics on configuration errors.
func (rt *Runtime) MustDefine(frags ...extend.Fragment) *Class {
	c, err := rt.Define(frags...)
	if err != nil {
		panic(fmt.Sprintf("zest: define: %v", err))
	}
	return c
}

// Extend builds a new class from c's fragments followed by frags. Chains are
// rebuilt, so c itself is not affected.
func (c *Class) Extend(frags ...extend.Fragment) (*Class, error) {
	all := make([]extend.Fragment, 0, len(c.frags)+len(frags))
	all = append(all, c.frags...)
	all = append(all, frags...)
	return c.rt.Define(all...)
}

// Runtime returns the runtime the class was defined on.
func (c *Class) Runtime() *Runtime {
	return c.rt
}

// Type returns the class's type name.
func (c *Class) Type() string {
	s, _ := c.def["type"].(string)
	return s
}

// Static reports whether the class needs no client-side object.
func (c *Class) Static() bool {
	return c.static
}

// Definition returns the merged definition. Callers must not modify it.
func (c *Class) Definition() extend.Definition {
	return c.def
}

// Fragments returns the layers the class was built from, base layer excluded.
func (c *Class) Fragments() []extend.Fragment {
	return c.frags
}

// Template returns the merged template value.
func (c *Class) Template() any {
	return c.def["template"]
}

// Defaults returns a copy of the merged default options.
func (c *Class) Defaults() Options {
	o, _ := asOptions(c.def["options"])
	return o.Clone()
}

// AttachExclusions returns the option keys kept out of attach directives.
func (c *Class) AttachExclusions() []string {
	return stringList(c.def["attachExclusions"])
}

// AttachInclusions returns the option keys always kept in attach directives.
func (c *Class) AttachInclusions() []string {
	return stringList(c.def["attachInclusions"])
}

// Load runs the load waterfall with o. Layers run base first, each waiting
// for the previous one to complete.
func (c *Class) Load(ctx context.Context, o Options) error {
	ch, ok := c.def["load"].(*fnchain.Chain)
	if !ok {
		return nil
	}
	_, err := ch.Invoke(ctx, c, o)
	return err
}

// Pipe runs the pipe chain with o and returns the options it produced.
// Without a pipe, or when no layer returns options, o is returned.
func (c *Class) Pipe(ctx context.Context, o Options) (Options, error) {
	ch, ok := c.def["pipe"].(*fnchain.Chain)
	if !ok {
		return o, nil
	}
	out, err := ch.Invoke(ctx, c, o)
	if err != nil {
		return nil, err
	}
	if piped, ok := asOptions(out); ok {
		return piped, nil
	}
	return o, nil
}

// CSS computes the class's style text for o. Dynamic layers are evaluated
// now, not when the class was defined.
func (c *Class) CSS(ctx context.Context, o Options) (string, error) {
	switch v := c.def["css"].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case *fnchain.Chain:
		out, err := v.Invoke(ctx, c, o)
		if err != nil {
			return "", err
		}
		s, _ := out.(string)
		return s, nil
	default:
		fn, err := cssFunc(v)
		if err != nil {
			return "", err
		}
		out, err := fn(ctx, c, o)
		if err != nil {
			return "", err
		}
		s, _ := out.(string)
		return s, nil
	}
}

// PrototypeDispose returns the class-level dispose chain shared by all
// instances.
func (c *Class) PrototypeDispose() *fnchain.Chain {
	proto, _ := asOptions(c.def["prototype"])
	ch, _ := proto["dispose"].(*fnchain.Chain)
	return ch
}

// members returns the prototype members an instance exposes.
func (c *Class) members() map[string]any {
	proto, _ := asOptions(c.def["prototype"])
	out := maps.Clone(map[string]any(proto))
	delete(out, "dispose")
	return out
}

// AttachEntry returns the class's attach entry point, or nil for a static
// class.
func (c *Class) AttachEntry() AttachFunc {
	if c.static {
		return nil
	}
	return func(ctx context.Context, el *html.Node, o Options) (any, error) {
		return c.Attach(ctx, []*html.Node{el}, o)
	}
}

// Attach binds a new instance to existing elements. It is a convenience for
// New with o["$$"] set to elements; o itself is not modified.
func (c *Class) Attach(ctx context.Context, elements []*html.Node, o Options) (*Instance, error) {
	if c.static {
		return nil, fmt.Errorf("%w: %q", ErrStaticComponent, c.Type())
	}
	o = o.Clone()
	o[OptElements] = elements
	return c.construct(ctx, o)
}

// New instantiates the class. Without o["$$"] the class is rendered fresh by
// the runtime's Renderer into a new detached fragment and the renderer's
// result is returned. With o["$$"] the instance is bound to those elements;
// this needs a live document.
func (c *Class) New(ctx context.Context, o Options) (any, error) {
	if o == nil {
		o = Options{}
	}
	if _, ok := o[OptElements]; !ok {
		return c.rt.renderer.Render(ctx, c, o, dom.NewFragment())
	}
	return c.construct(ctx, o)
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, s := range l {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
