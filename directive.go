package zest

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"slices"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pthm/zest/lib/dom"
)

// Attach directive attributes.
const (
	AttrTarget         = "data-zid"
	AttrController     = "data-controllerid"
	AttrOptions        = "data-options"
	AttrOptionsSigned  = "data-options-signed"
	AttrOptionsPrivate = "data-options-private"
)

// Directive is a single-use attach marker embedded in server-rendered markup:
//
//	<script data-zid="z7" data-controllerid="counter" data-options='{"n":1}'></script>
type Directive struct {
	Node       *nethtml.Node
	TargetID   string
	Controller string
	// Options is the raw payload: JSON, or a sealed string when Sealed is set.
	Options    string
	HasOptions bool
	Sealed     bool
	Private    bool
}

// ParseDirective reads n as an attach directive. ok is false when n is not
// one.
func ParseDirective(n *nethtml.Node) (d Directive, ok bool) {
	if n == nil || n.Type != nethtml.ElementNode || n.DataAtom != atom.Script {
		return Directive{}, false
	}
	target, ok := dom.Attr(n, AttrTarget)
	if !ok {
		return Directive{}, false
	}
	d = Directive{Node: n, TargetID: target}
	d.Controller, _ = dom.Attr(n, AttrController)

	if v, ok := dom.Attr(n, AttrOptionsPrivate); ok {
		d.Options, d.HasOptions, d.Sealed, d.Private = v, true, true, true
	} else if v, ok := dom.Attr(n, AttrOptionsSigned); ok {
		d.Options, d.HasOptions, d.Sealed = v, true, true
	} else if v, ok := dom.Attr(n, AttrOptions); ok {
		d.Options, d.HasOptions = v, true
	}
	return d, true
}

// Directives returns the attach directives of the live document in document
// order.
func (rt *Runtime) Directives() []Directive {
	doc := rt.Document()
	if doc == nil {
		return nil
	}
	var out []Directive
	for _, n := range doc.Find(func(n *nethtml.Node) bool {
		_, ok := ParseDirective(n)
		return ok
	}) {
		d, _ := ParseDirective(n)
		out = append(out, d)
	}
	return out
}

// DirectiveOptions decodes a directive payload. Sealed payloads need the
// runtime's encoder.
func (rt *Runtime) DirectiveOptions(d Directive) (Options, error) {
	if !d.HasOptions {
		return Options{}, nil
	}
	if d.Sealed {
		return rt.openOptions(d)
	}

	var o Options
	if err := json.Unmarshal([]byte(d.Options), &o); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if o == nil {
		o = Options{}
	}
	return o, nil
}

// attachOptions selects the options written into an attach directive.
// Reserved keys and excluded keys are dropped unless an inclusion names
// them; values that do not serialize are dropped silently.
func attachOptions(c *Class, o Options) Options {
	excluded := c.AttachExclusions()
	included := c.AttachInclusions()

	out := Options{}
	for k, v := range o {
		if k == OptElements || k == OptGlobal {
			continue
		}
		if slices.Contains(excluded, k) && !slices.Contains(included, k) {
			continue
		}
		if _, err := json.Marshal(v); err != nil {
			continue
		}
		out[k] = v
	}
	return out
}

// writeDirective writes the attach directive for the component id.
func (rt *Runtime) writeDirective(w io.Writer, id string, c *Class, o Options) error {
	attr := AttrOptions
	var payload string

	opts := attachOptions(c, o)
	if rt.encoder != nil {
		var err error
		if payload, attr, err = rt.sealOptions(id, opts); err != nil {
			return err
		}
	} else {
		b, err := json.Marshal(opts)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
		}
		payload = string(b)
	}

	_, err := fmt.Fprintf(w, `<script %s="%s" %s="%s" %s="%s"></script>`,
		AttrTarget, html.EscapeString(id),
		AttrController, html.EscapeString(c.Type()),
		attr, html.EscapeString(payload),
	)
	return err
}
