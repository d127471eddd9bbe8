// Package dom is the document model components attach to.
//
// A Document wraps a golang.org/x/net/html tree and adds the pieces a
// component runtime needs from a live document: lookup by id, document-order
// queries, detaching nodes, and auto-managed event bindings that disposal can
// release in bulk.
//
// A Document is live until Close is called. Code running without a live
// document (a server process rendering markup) must not take attach paths.
package dom

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Event is delivered to bound handlers by Dispatch.
type Event struct {
	Type   string
	Target *html.Node
	Detail any
}

// Handler reacts to a dispatched event.
type Handler func(ev Event)

type binding struct {
	event   string
	handler Handler
}

// Document is a parsed HTML document plus its event bindings.
type Document struct {
	mu       sync.Mutex
	root     *html.Node
	live     bool
	bindings map[*html.Node][]binding
}

// New wraps an existing tree as a live document.
func New(root *html.Node) *Document {
	return &Document{
		root:     root,
		live:     true,
		bindings: make(map[*html.Node][]binding),
	}
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return New(root), nil
}

// ParseString is Parse for in-memory markup.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Live reports whether the document still accepts attachment.
func (d *Document) Live() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// Close ends the document's lifetime and drops all bindings.
func (d *Document) Close() {
	d.mu.Lock()
	d.live = false
	d.bindings = make(map[*html.Node][]binding)
	d.mu.Unlock()
}

// GetElementByID returns the first element in document order whose id
// attribute equals id, or nil.
func (d *Document) GetElementByID(id string) *html.Node {
	var found *html.Node
	Walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && ID(n) == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Find returns every node matching match, in document order.
func (d *Document) Find(match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	Walk(d.root, func(n *html.Node) bool {
		if match(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Bind registers h for event on n. Bindings are released by Unbind.
func (d *Document) Bind(n *html.Node, event string, h Handler) {
	d.mu.Lock()
	d.bindings[n] = append(d.bindings[n], binding{event: event, handler: h})
	d.mu.Unlock()
}

// Bindings returns the number of handlers bound to n.
func (d *Document) Bindings(n *html.Node) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.bindings[n])
}

// Unbind releases every binding on the given nodes and their descendants and
// returns how many were released.
func (d *Document) Unbind(nodes ...*html.Node) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	released := 0
	for _, root := range nodes {
		Walk(root, func(n *html.Node) bool {
			released += len(d.bindings[n])
			delete(d.bindings, n)
			return true
		})
	}
	return released
}

// Dispatch delivers an event to the handlers bound on n and returns how many
// ran. Handlers run outside the document lock.
func (d *Document) Dispatch(n *html.Node, event string, detail any) int {
	d.mu.Lock()
	var hs []Handler
	for _, b := range d.bindings[n] {
		if b.event == event {
			hs = append(hs, b.handler)
		}
	}
	d.mu.Unlock()

	for _, h := range hs {
		h(Event{Type: event, Target: n, Detail: detail})
	}
	return len(hs)
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}
