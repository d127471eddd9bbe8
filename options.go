package zest

import (
	"maps"

	"golang.org/x/net/html"

	"github.com/pthm/zest/lib/extend"
)

// Fragment is one layer of a component definition. See Runtime.Define for
// the fields that merge specially.
type Fragment = extend.Fragment

// Reserved option keys.
const (
	// OptElements carries the element list on the attach path.
	OptElements = "$$"
	OptID       = "id"
	OptType     = "type"
	// OptGlobal carries the runtime's shared context into attached options.
	OptGlobal = "global"
)

// Options is the options record a component is constructed with.
type Options map[string]any

// Clone returns a shallow copy of o. A nil receiver yields an empty record.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	maps.Copy(out, o)
	return out
}

// String returns o[key] when it is a string.
func (o Options) String(key string) string {
	s, _ := o[key].(string)
	return s
}

// Elements returns the attach-path element list, if any.
func (o Options) Elements() ([]*html.Node, bool) {
	els, ok := o[OptElements].([]*html.Node)
	return els, ok && len(els) > 0
}

// asOptions views any string-keyed map as Options, with the same
// normalization the merge engine applies.
func asOptions(v any) (Options, bool) {
	if m, ok := v.(Options); ok {
		return m, true
	}
	m, ok := extend.AsMap(v)
	return Options(m), ok
}
