package zest

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"github.com/pthm/zest/lib/dom"
)

// SwapMode defines where rendered markup goes relative to a target node.
// The names follow the insertAdjacentHTML positions. The default is SwapOuter.
type SwapMode string

const (
	// SwapOuter replaces the target itself. The target is disposed.
	SwapOuter SwapMode = "outerHTML"

	// SwapInner replaces the target's contents. Replaced children are
	// disposed.
	SwapInner SwapMode = "innerHTML"

	// SwapBeforeEnd appends to the target's contents.
	SwapBeforeEnd SwapMode = "beforeend"

	// SwapAfterEnd inserts after the target, as its next sibling.
	SwapAfterEnd SwapMode = "afterend"

	// SwapBeforeBegin inserts before the target, as its previous sibling.
	SwapBeforeBegin SwapMode = "beforebegin"

	// SwapAfterBegin prepends to the target's contents.
	SwapAfterBegin SwapMode = "afterbegin"

	// SwapDelete disposes the target. Nothing is rendered.
	SwapDelete SwapMode = "delete"

	// SwapNone renders nothing.
	SwapNone SwapMode = "none"
)

// RenderInto renders c and places the result relative to target. It returns
// what the runtime's Renderer returned, or the inserted nodes when that was
// the scratch fragment.
func (rt *Runtime) RenderInto(ctx context.Context, c *Class, o Options, target *html.Node, mode SwapMode) (any, error) {
	if mode == "" {
		mode = SwapOuter
	}
	switch mode {
	case SwapNone:
		return nil, nil
	case SwapDelete:
		return nil, rt.disposer.DisposeElements(ctx, target)
	case SwapOuter, SwapAfterEnd, SwapBeforeBegin:
		if target.Parent == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoParent, mode)
		}
	case SwapInner, SwapBeforeEnd, SwapAfterBegin:
	default:
		return nil, fmt.Errorf("zest: unknown swap mode %q", mode)
	}

	// Replaced markup is disposed before rendering, so a replacement that
	// reuses an id takes it over from a component that is already gone.
	var parent, next *html.Node
	var disposeErr error
	switch mode {
	case SwapOuter:
		parent, next = target.Parent, target.NextSibling
		disposeErr = rt.disposer.DisposeElements(ctx, target)
	case SwapInner:
		disposeErr = rt.disposer.DisposeElements(ctx, dom.Children(target)...)
	}

	frag := dom.NewFragment()
	result, err := rt.renderer.Render(ctx, c, o, frag)
	if err != nil {
		return nil, err
	}
	nodes := dom.Children(frag)
	for _, n := range nodes {
		frag.RemoveChild(n)
	}
	if result == any(frag) {
		result = nodes
	}

	switch mode {
	case SwapOuter:
		for _, n := range nodes {
			parent.InsertBefore(n, next)
		}
	case SwapInner, SwapBeforeEnd:
		for _, n := range nodes {
			target.AppendChild(n)
		}
	case SwapAfterBegin:
		first := target.FirstChild
		for _, n := range nodes {
			target.InsertBefore(n, first)
		}
	case SwapBeforeBegin:
		for _, n := range nodes {
			target.Parent.InsertBefore(n, target)
		}
	case SwapAfterEnd:
		after := target.NextSibling
		for _, n := range nodes {
			target.Parent.InsertBefore(n, after)
		}
	}
	return result, disposeErr
}
