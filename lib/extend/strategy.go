// Package extend merges definition fragments into one accumulated definition.
//
// Every field of a fragment is combined with the field's current value using
// the strategy a Table declares for the field's path. The table is fixed per
// system rather than per fragment, so a class author can rely on, for example,
// "load hooks always run as an ordered waterfall".
//
//	table := extend.Table{
//	    "options":           extend.Append,
//	    "load":              extend.Chain(fnchain.Async),
//	    "prototype.dispose": extend.Chain(fnchain.StopFirstDefined),
//	}
//	def := extend.Definition{}
//	err := extend.Integrate(table, def, base)
//	err = extend.Integrate(table, def, derived)
package extend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pthm/zest/lib/fnchain"
)

// Sentinel errors. Both indicate a programming-time configuration mistake.
var (
	ErrUnknownStrategy = errors.New("extend: unknown merge strategy")
	ErrIncompatible    = errors.New("extend: incompatible operands")
)

// Fragment is one layer of a definition.
type Fragment map[string]any

// Definition is the accumulated result of integrating fragments.
type Definition map[string]any

// Kind identifies a merge strategy.
type Kind int

const (
	kindInvalid Kind = iota
	// KindReplace: the new value fully replaces the old one.
	KindReplace
	// KindChain: old and new callables combine into a fnchain.Chain.
	KindChain
	// KindAppend: sequences concatenate; maps overlay keys.
	KindAppend
	// KindArrAppend: sequences concatenate. Used for selector lists.
	KindArrAppend
	// KindCustom: an arbitrary two-argument combinator.
	KindCustom
	// KindDepth: maps merge member by member, each member by its own path.
	KindDepth
)

func (k Kind) String() string {
	switch k {
	case KindReplace:
		return "REPLACE"
	case KindChain:
		return "CHAIN"
	case KindAppend:
		return "APPEND"
	case KindArrAppend:
		return "ARR_APPEND"
	case KindCustom:
		return "CUSTOM"
	case KindDepth:
		return "DEPTH"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MergeFunc combines the existing value of a field with a new one.
// old is never nil when a MergeFunc is called.
type MergeFunc func(old, new any) (any, error)

// Strategy is a strategy tag plus its parameters.
type Strategy struct {
	Kind   Kind
	Policy fnchain.Policy // KindChain
	Merge  MergeFunc      // KindCustom
}

// Predefined strategies.
var (
	Replace   = Strategy{Kind: KindReplace}
	Append    = Strategy{Kind: KindAppend}
	ArrAppend = Strategy{Kind: KindArrAppend}
	Depth     = Strategy{Kind: KindDepth}
)

// Chain returns a strategy combining callables under policy p.
func Chain(p fnchain.Policy) Strategy {
	return Strategy{Kind: KindChain, Policy: p}
}

// Custom returns a strategy using fn to combine values.
func Custom(fn MergeFunc) Strategy {
	return Strategy{Kind: KindCustom, Merge: fn}
}

// Table maps dotted field paths to merge strategies.
// Fields without an entry are replaced.
type Table map[string]Strategy

// With returns a copy of t overlaid with other.
func (t Table) With(other Table) Table {
	out := make(Table, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Lookup returns the strategy declared for path. A path with entries nested
// under it ("prototype" for "prototype.dispose") merges in depth; anything
// else defaults to Replace.
func (t Table) Lookup(path string) Strategy {
	if s, ok := t[path]; ok {
		return s
	}
	prefix := path + "."
	for k := range t {
		if strings.HasPrefix(k, prefix) {
			return Depth
		}
	}
	return Replace
}
