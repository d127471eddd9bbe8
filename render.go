package zest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"

	"github.com/a-h/templ"
	"go.uber.org/zap"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pthm/zest/lib/dom"
)

// AttrStyleType marks the style node a class's CSS is emitted in.
const AttrStyleType = "data-ztype"

// TemplRenderer is the default Renderer. Templates may be a templ.Component,
// a func(Options) templ.Component, a markup string or a func(Options) string.
type TemplRenderer struct{}

// Render fills target with the class markup. With a live document the
// markup is attached and the *Instance returned; static classes register
// and return their first element. Otherwise target is returned.
func (TemplRenderer) Render(ctx context.Context, c *Class, o Options, target *nethtml.Node) (any, error) {
	r, err := c.rt.render(ctx, c, o)
	if err != nil {
		return nil, err
	}
	for _, n := range r.nodes {
		target.AppendChild(n)
	}

	rt := c.rt
	if !rt.Document().Live() {
		return target, nil
	}
	if c.Static() {
		if len(r.elements) > 0 {
			if err := rt.evict(ctx, r.id); err != nil {
				return nil, err
			}
			rt.Register(r.id, r.elements[0])
			return r.elements[0], nil
		}
		return target, nil
	}
	return c.Attach(ctx, r.elements, r.opts)
}

// rendered is one render of a class, not yet attached.
type rendered struct {
	id       string
	opts     Options
	nodes    []*nethtml.Node // style node first, when the class has CSS
	elements []*nethtml.Node // component elements, style excluded
}

// render runs the shared render pipeline: defaults, pipe, load, template,
// CSS, parse, stamp the id.
func (rt *Runtime) render(ctx context.Context, c *Class, o Options) (*rendered, error) {
	opts := c.Defaults()
	maps.Copy(opts, o)
	delete(opts, OptElements)

	opts, err := c.Pipe(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("zest: pipe %q: %w", c.Type(), err)
	}
	if err := c.Load(ctx, opts); err != nil {
		return nil, fmt.Errorf("zest: load %q: %w", c.Type(), err)
	}

	id := opts.String(OptID)
	if id == "" {
		id = rt.NextID()
	}
	opts[OptID] = id
	opts[OptType] = c.Type()

	markup, err := renderTemplate(ctx, c.Template(), opts)
	if err != nil {
		return nil, fmt.Errorf("zest: template %q: %w", c.Type(), err)
	}
	nodes, err := dom.ParseFragment(markup)
	if err != nil {
		return nil, fmt.Errorf("zest: parse %q: %w", c.Type(), err)
	}
	elements := dom.Elements(nodes)
	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: %q rendered no element", ErrNoTemplate, c.Type())
	}
	dom.SetAttr(elements[0], "id", id)

	css, err := c.CSS(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("zest: css %q: %w", c.Type(), err)
	}
	if css != "" {
		nodes = append([]*nethtml.Node{styleNode(c.Type(), css)}, nodes...)
	}

	rt.logger.Debug("component rendered", zap.String("zid", id), zap.String("type", c.Type()))
	return &rendered{id: id, opts: opts, nodes: nodes, elements: elements}, nil
}

func renderTemplate(ctx context.Context, tmpl any, o Options) (string, error) {
	var comp templ.Component
	switch t := tmpl.(type) {
	case nil:
		return "", ErrNoTemplate
	case string:
		return t, nil
	case func(Options) string:
		return t(o), nil
	case templ.Component:
		comp = t
	case func(Options) templ.Component:
		comp = t(o)
	default:
		return "", fmt.Errorf("%w: unsupported template %T", ErrNoTemplate, tmpl)
	}

	var buf bytes.Buffer
	if err := comp.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func styleNode(typ, css string) *nethtml.Node {
	n := &nethtml.Node{
		Type:     nethtml.ElementNode,
		Data:     "style",
		DataAtom: atom.Style,
		Attr:     []nethtml.Attribute{{Key: AttrStyleType, Val: typ}},
	}
	n.AppendChild(&nethtml.Node{Type: nethtml.TextNode, Data: css})
	return n
}

// RenderHTML writes the server render of c: the markup followed, for
// dynamic classes, by the attach directive that reconnects it on the
// client. On a runtime with a live document nothing is attached and no
// directive is needed, so RenderHTML only ever writes markup there.
func (rt *Runtime) RenderHTML(ctx context.Context, w io.Writer, c *Class, o Options) error {
	r, err := rt.render(ctx, c, o)
	if err != nil {
		return err
	}
	if err := dom.RenderNodes(w, r.nodes...); err != nil {
		return err
	}
	if c.Static() || rt.Document().Live() {
		return nil
	}
	return rt.writeDirective(w, r.id, c, r.opts)
}

// Embed returns a templ.Component that server-renders c with o, for use
// inside other templ templates:
//
//	@zest.Embed(rt, counter, zest.Options{"start": 3})
func Embed(rt *Runtime, c *Class, o Options) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return rt.RenderHTML(ctx, w, c, o.Clone())
	})
}
