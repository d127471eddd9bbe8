package extend

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/pthm/zest/lib/fnchain"
)

// Hooks observe a Build. Make runs before the first fragment, Integrate after
// each fragment has been merged, Built once all fragments are in.
type Hooks struct {
	Make      func()
	Integrate func(frag Fragment)
	Built     func(def Definition) error
}

// Build integrates frags, in order, into a fresh Definition.
func Build(t Table, h Hooks, frags ...Fragment) (Definition, error) {
	return BuildFrom(t, Definition{}, h, frags...)
}

// BuildFrom is like Build but starts from base, which is modified in place.
// Hooks see frags only, never what base already holds.
func BuildFrom(t Table, base Definition, h Hooks, frags ...Fragment) (Definition, error) {
	if h.Make != nil {
		h.Make()
	}
	def := base
	if def == nil {
		def = Definition{}
	}
	for _, frag := range frags {
		if err := Integrate(t, def, frag); err != nil {
			return nil, err
		}
		if h.Integrate != nil {
			h.Integrate(frag)
		}
	}
	if h.Built != nil {
		if err := h.Built(def); err != nil {
			return nil, err
		}
	}
	return def, nil
}

// Integrate merges frag into def in place. Fragments are never mutated.
func Integrate(t Table, def Definition, frag Fragment) error {
	return integrateMap(t, "", def, frag)
}

func integrateMap(t Table, prefix string, dst, src map[string]any) error {
	for _, k := range slices.Sorted(maps.Keys(src)) {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		old, present := dst[k]
		merged, err := mergeField(t, path, old, present, src[k])
		if err != nil {
			return fmt.Errorf("extend: field %q: %w", path, err)
		}
		dst[k] = merged
	}
	return nil
}

func mergeField(t Table, path string, old any, present bool, v any) (any, error) {
	s := t.Lookup(path)
	switch s.Kind {
	case KindReplace:
		return v, nil
	case KindChain:
		return mergeChain(s.Policy, old, present, v)
	case KindAppend:
		return appendValues(old, present, v, true)
	case KindArrAppend:
		return appendValues(old, present, v, false)
	case KindCustom:
		if s.Merge == nil {
			return nil, fmt.Errorf("%w: custom strategy without merge function", ErrUnknownStrategy)
		}
		if !present || old == nil {
			return v, nil
		}
		return s.Merge(old, v)
	case KindDepth:
		src, ok := AsMap(v)
		if !ok {
			return nil, fmt.Errorf("%w: depth merge of %T", ErrIncompatible, v)
		}
		dst := map[string]any{}
		if present {
			prev, ok := AsMap(old)
			if !ok {
				return nil, fmt.Errorf("%w: depth merge into %T", ErrIncompatible, old)
			}
			maps.Copy(dst, prev)
		}
		if err := integrateMap(t, path, dst, src); err != nil {
			return nil, err
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, s.Kind)
	}
}

// mergeChain keeps the field an appendable *fnchain.Chain. An existing chain
// under the same policy kind is appended to in place; anything else becomes
// the first entry of a new chain. Chains found in fragments are wrapped,
// never appended to.
func mergeChain(p fnchain.Policy, old any, present bool, v any) (any, error) {
	fn, err := fnchain.From(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIncompatible, err)
	}
	if !present || old == nil {
		return fnchain.New(p, fn), nil
	}
	if c, ok := old.(*fnchain.Chain); ok && c.Policy().Kind == p.Kind {
		return c.Append(fn), nil
	}
	prev, err := fnchain.From(old)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIncompatible, err)
	}
	return fnchain.New(p, prev, fn), nil
}

// appendValues concatenates slices in encounter order, keeping duplicates.
// With allowMaps, maps overlay new keys onto a copy of the old map.
func appendValues(old any, present bool, v any, allowMaps bool) (any, error) {
	if allowMaps {
		if nm, ok := AsMap(v); ok {
			out := map[string]any{}
			if present && old != nil {
				om, ok := AsMap(old)
				if !ok {
					return nil, fmt.Errorf("%w: append map to %T", ErrIncompatible, old)
				}
				maps.Copy(out, om)
			}
			maps.Copy(out, nm)
			return out, nil
		}
	}

	nv := reflect.ValueOf(v)
	if nv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%w: append of %T", ErrIncompatible, v)
	}
	if !present || old == nil {
		return copySlice(nv).Interface(), nil
	}
	ov := reflect.ValueOf(old)
	if ov.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%w: append to %T", ErrIncompatible, old)
	}
	if ov.Type() == nv.Type() {
		return reflect.AppendSlice(copySlice(ov), nv).Interface(), nil
	}

	out := make([]any, 0, ov.Len()+nv.Len())
	for i := 0; i < ov.Len(); i++ {
		out = append(out, ov.Index(i).Interface())
	}
	for i := 0; i < nv.Len(); i++ {
		out = append(out, nv.Index(i).Interface())
	}
	return out, nil
}

func copySlice(v reflect.Value) reflect.Value {
	out := reflect.MakeSlice(v.Type(), 0, v.Len())
	return reflect.AppendSlice(out, v)
}

var mapType = reflect.TypeOf(map[string]any{})

// AsMap views string-keyed maps of any named type as map[string]any. The
// engine merges every value AsMap accepts as a nested map.
func AsMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Fragment:
		return m, true
	case Definition:
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.IsValid() && rv.Type().ConvertibleTo(mapType) && rv.Kind() == reflect.Map {
		return rv.Convert(mapType).Interface().(map[string]any), true
	}
	return nil, false
}
