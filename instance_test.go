package zest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/pthm/zest/lib/dom"
)

// recordingDisposer stands in for the element-removal collaborator.
type recordingDisposer struct {
	calls [][]*html.Node
}

func (d *recordingDisposer) DisposeElements(_ context.Context, nodes ...*html.Node) error {
	d.calls = append(d.calls, nodes)
	return nil
}

const panelPage = `<html><body><div id="z5" class="panel"><span id="label">x</span></div></body></html>`

// panelClass is a dynamic class whose dispose layer records structural calls.
func panelClass(rt *Runtime, disposed *int) *Class {
	return rt.MustDefine(
		Fragment{
			"type":    "panel",
			"options": map[string]any{"size": "m"},
			"prototype": map[string]any{
				"label": func(self any, _ ...any) any {
					return self.(*Instance).Options().String("title")
				},
			},
		},
		Fragment{
			"prototype": map[string]any{
				"dispose": func(_ any, args ...any) any {
					if args[0] == true {
						*disposed++
					}
					return nil
				},
			},
		},
	)
}

func TestNewWithoutElementsRenders(t *testing.T) {
	rt := New()
	c := rt.MustDefine(Fragment{"type": "box", "template": `<div class="box">hi</div>`})

	out, err := c.New(context.Background(), nil)
	require.NoError(t, err)

	frag, ok := out.(*html.Node)
	require.True(t, ok, "server render returns the filled fragment")
	assert.Equal(t, `<div class="box" id="z1">hi</div>`, dom.OuterHTML(frag))
	assert.Empty(t, rt.Components())
}

func TestAttachRequiresLiveDocument(t *testing.T) {
	rt := New()
	c := rt.MustDefine(Fragment{"dynamic": true})
	el := &html.Node{Type: html.ElementNode, Data: "div"}

	_, err := c.Attach(context.Background(), []*html.Node{el}, nil)
	require.ErrorIs(t, err, ErrServerConstruct)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "render path")
}

func TestAttachRejectsStaticClass(t *testing.T) {
	rt, doc := liveRuntime(t, panelPage)
	c := rt.MustDefine(Fragment{"template": "<div></div>"})

	_, err := c.Attach(context.Background(), []*html.Node{doc.GetElementByID("z5")}, nil)
	require.ErrorIs(t, err, ErrStaticComponent)
}

func TestAttachBuildsInstance(t *testing.T) {
	rt, doc := liveRuntime(t, panelPage)
	var disposed int
	c := panelClass(rt, &disposed)
	el := doc.GetElementByID("z5")

	inst, err := c.Attach(context.Background(), []*html.Node{el}, Options{"title": "Hello"})
	require.NoError(t, err)

	assert.Equal(t, "z5", inst.ID)
	assert.Equal(t, "panel", inst.Type)
	assert.Equal(t, []*html.Node{el}, inst.Elements())
	assert.Equal(t, Live, inst.State())

	o := inst.Options()
	assert.NotContains(t, o, OptElements)
	assert.Equal(t, "Hello", o["title"])
	assert.Equal(t, "m", o["size"])

	got, ok := rt.Instance("z5")
	require.True(t, ok)
	assert.Same(t, inst, got)
	assert.Equal(t, 6, rt.Counter(), "counter moves past attached ids")

	label, err := inst.Call(context.Background(), "label")
	require.NoError(t, err)
	assert.Equal(t, "Hello", label)

	_, err = inst.Call(context.Background(), "missing")
	assert.Error(t, err)
}

func TestAttachMintsMissingID(t *testing.T) {
	rt, doc := liveRuntime(t, `<html><body><p class="x"></p></body></html>`)
	c := rt.MustDefine(Fragment{"dynamic": true})
	el := doc.Find(func(n *html.Node) bool { return n.Data == "p" })[0]

	inst, err := c.Attach(context.Background(), []*html.Node{el}, nil)
	require.NoError(t, err)
	assert.Equal(t, "z1", inst.ID)
	assert.Equal(t, "z1", dom.ID(el))
}

func TestConstructChainRunsWithInstance(t *testing.T) {
	rt, doc := liveRuntime(t, panelPage)
	var seen []string
	c := rt.MustDefine(
		Fragment{"construct": func(self any, args ...any) any {
			seen = append(seen, "base:"+self.(*Instance).ID)
			return nil
		}},
		Fragment{"construct": func(_ any, args ...any) any {
			seen = append(seen, "derived:"+args[0].(Options).String("title"))
			return nil
		}},
	)

	_, err := c.Attach(context.Background(), []*html.Node{doc.GetElementByID("z5")}, Options{"title": "t"})
	require.NoError(t, err)
	assert.Equal(t, []string{"base:z5", "derived:t"}, seen)
}

func TestDisposeTwoPhase(t *testing.T) {
	d := &recordingDisposer{}
	rt, doc := liveRuntime(t, panelPage, WithDisposer(d))
	var disposed int
	c := panelClass(rt, &disposed)

	el := doc.GetElementByID("z5")
	label := doc.GetElementByID("label")
	doc.Bind(el, "click", func(dom.Event) {})
	doc.Bind(label, "click", func(dom.Event) {})

	inst, err := c.Attach(context.Background(), []*html.Node{el}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	// Removal request: collaborator called once, element list untouched.
	require.NoError(t, inst.Dispose(ctx, false))
	require.Len(t, d.calls, 1)
	assert.Equal(t, []*html.Node{el}, d.calls[0])
	assert.Equal(t, []*html.Node{el}, inst.Elements())
	assert.Equal(t, 0, disposed, "later layers wait for the structural call")
	assert.Equal(t, Disposing, inst.State())

	// Structural callback, as the collaborator would issue it.
	require.NoError(t, inst.Dispose(ctx, true))
	assert.Empty(t, inst.Elements())
	assert.Equal(t, 0, doc.Bindings(el))
	assert.Equal(t, 0, doc.Bindings(label))
	assert.Equal(t, 1, disposed)
	assert.Equal(t, Disposed, inst.State())
	assert.Len(t, d.calls, 1)

	_, ok := rt.Component("z5")
	assert.False(t, ok)

	require.ErrorIs(t, inst.Dispose(ctx, true), ErrDisposed)
	assert.Equal(t, 1, disposed)
}

func TestDisposeLiteralPolicySkipsLaterLayers(t *testing.T) {
	d := &recordingDisposer{}
	rt, doc := liveRuntime(t, panelPage, WithDisposer(d), WithLiteralDispose())
	var disposed int
	c := panelClass(rt, &disposed)

	inst, err := c.Attach(context.Background(), []*html.Node{doc.GetElementByID("z5")}, nil)
	require.NoError(t, err)

	require.NoError(t, inst.Dispose(context.Background(), true))
	assert.Empty(t, inst.Elements(), "base handler still runs")
	assert.Equal(t, 0, disposed, "a nil result counts as a value under the literal test")
}

func TestDisposeThroughRuntimeRemovesMarkup(t *testing.T) {
	rt, doc := liveRuntime(t, panelPage)
	var disposed int
	c := panelClass(rt, &disposed)

	inst, err := c.Attach(context.Background(), []*html.Node{doc.GetElementByID("z5")}, nil)
	require.NoError(t, err)

	require.NoError(t, rt.Dispose(context.Background(), "z5", false))
	assert.Nil(t, doc.GetElementByID("z5"))
	assert.Equal(t, Disposed, inst.State())
	assert.Equal(t, 1, disposed)
	assert.Empty(t, rt.Components())

	require.ErrorIs(t, rt.Dispose(context.Background(), "z5", false), ErrNotRegistered)
}

func TestDisposeElementsReachesNestedComponents(t *testing.T) {
	rt, doc := liveRuntime(t, `<html><body><div id="outer"><div id="z2"></div><div id="z3"></div></div></body></html>`)
	c := rt.MustDefine(Fragment{"dynamic": true})
	ctx := context.Background()

	a, err := c.Attach(ctx, []*html.Node{doc.GetElementByID("z2")}, nil)
	require.NoError(t, err)
	b, err := c.Attach(ctx, []*html.Node{doc.GetElementByID("z3")}, nil)
	require.NoError(t, err)

	require.NoError(t, rt.DisposeElements(ctx, doc.GetElementByID("outer")))
	assert.Equal(t, Disposed, a.State())
	assert.Equal(t, Disposed, b.State())
	assert.Nil(t, doc.GetElementByID("outer"))
	assert.Empty(t, rt.Components())
}

func TestInstanceDisposeChainsAreIndependent(t *testing.T) {
	rt, doc := liveRuntime(t, `<html><body><div id="z1"></div><div id="z2"></div></body></html>`)
	c := rt.MustDefine(Fragment{"dynamic": true})
	ctx := context.Background()

	a, err := c.Attach(ctx, []*html.Node{doc.GetElementByID("z1")}, nil)
	require.NoError(t, err)
	b, err := c.Attach(ctx, []*html.Node{doc.GetElementByID("z2")}, nil)
	require.NoError(t, err)

	a.DisposeChain().Prepend(func(context.Context, any, ...any) (any, error) { return nil, nil })
	assert.Equal(t, 2, a.DisposeChain().Len())
	assert.Equal(t, 1, b.DisposeChain().Len())
	assert.Equal(t, 1, c.PrototypeDispose().Len())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "live", Live.String())
	assert.Equal(t, "disposing", Disposing.String())
	assert.Equal(t, "disposed", Disposed.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestAttachLeavesCallerOptionsAlone(t *testing.T) {
	rt, doc := liveRuntime(t, panelPage)
	c := panelClass(rt, new(int))
	o := Options{"title": "t"}

	_, err := c.Attach(context.Background(), []*html.Node{doc.GetElementByID("z5")}, o)
	require.NoError(t, err)
	assert.Equal(t, Options{"title": "t"}, o)
}

func TestAttachTakesOverRegisteredID(t *testing.T) {
	rt, doc := liveRuntime(t, panelPage)
	var disposed int
	c := panelClass(rt, &disposed)
	el := doc.GetElementByID("z5")
	ctx := context.Background()

	first, err := c.Attach(ctx, []*html.Node{el}, nil)
	require.NoError(t, err)
	second, err := c.Attach(ctx, []*html.Node{el}, nil)
	require.NoError(t, err)

	assert.Equal(t, Disposed, first.State())
	assert.Equal(t, Live, second.State())
	assert.Equal(t, 1, disposed, "the previous owner is disposed structurally")
	assert.Equal(t, []*html.Node{el}, second.Elements())

	inst, ok := rt.Instance("z5")
	require.True(t, ok)
	assert.Same(t, second, inst)
}
