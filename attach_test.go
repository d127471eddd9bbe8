package zest

import (
	"context"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/pthm/zest/lib/dom"
	"github.com/pthm/zest/lib/encoding"
	"github.com/pthm/zest/lib/loader"
)

// disposableController takes part in the dispose protocol without a chain.
type disposableController struct {
	calls []bool
}

func (c *disposableController) Dispose(_ context.Context, system bool) error {
	c.calls = append(c.calls, system)
	return nil
}

func countScripts(doc *dom.Document) int {
	return len(doc.Find(func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "script"
	}))
}

func TestAttachDocumentAdvancesCounter(t *testing.T) {
	tests := []struct {
		name    string
		counter int
		id      string
		want    int
	}{
		{"behind", 5, "c7", 8},
		{"ahead", 9, "c7", 9},
		{"equal", 7, "c7", 8},
		{"no numeric suffix", 3, "main", 3},
		{"largest int suffix", 5, "c" + strconv.Itoa(math.MaxInt), 5},
		{"suffix beyond int range", 5, "c99999999999999999999999", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := `<html><body><div id="` + tt.id + `"></div>` +
				`<script data-zid="` + tt.id + `" data-controllerid="widget"></script></body></html>`
			rt, _ := liveRuntime(t, page, WithCounter(tt.counter))
			rt.Add(rt.MustDefine(Fragment{"type": "widget", "dynamic": true}))

			require.NoError(t, rt.AttachDocument(context.Background()))
			assert.Equal(t, tt.want, rt.Counter())
			assert.Equal(t, "z"+strconv.Itoa(tt.want), rt.NextID())
			_, ok := rt.Instance(tt.id)
			assert.True(t, ok)
		})
	}
}

func TestAttachMissingTargetIsIsolated(t *testing.T) {
	page := `<html><body>
<script data-zid="zzz" data-controllerid="widget"></script>
<div id="z2"></div>
<script data-zid="z2" data-controllerid="widget"></script>
</body></html>`
	rt, doc := liveRuntime(t, page)
	rt.Add(rt.MustDefine(Fragment{"type": "widget", "dynamic": true}))

	err := rt.AttachDocument(context.Background())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "zzz")

	_, ok := rt.Component("zzz")
	assert.False(t, ok)
	_, ok = rt.Instance("z2")
	assert.True(t, ok, "later directives still attach")
	assert.Equal(t, 0, countScripts(doc), "directives are removed even when they fail")
}

func TestAttachStaticControllerRegistersElement(t *testing.T) {
	page := `<html><body><p id="s1">static</p><script data-zid="s1" data-controllerid="note"></script></body></html>`
	rt, doc := liveRuntime(t, page)
	rt.Add(rt.MustDefine(Fragment{"type": "note", "template": "<p></p>"}))

	require.NoError(t, rt.AttachDocument(context.Background()))

	el, ok := rt.Element("s1")
	require.True(t, ok)
	assert.Same(t, doc.GetElementByID("s1"), el)
}

func TestAttachWithoutControllerRegistersElement(t *testing.T) {
	page := `<html><body><p id="s2"></p><script data-zid="s2"></script></body></html>`
	rt, doc := liveRuntime(t, page)

	require.NoError(t, rt.AttachDocument(context.Background()))

	el, ok := rt.Element("s2")
	require.True(t, ok)
	assert.Same(t, doc.GetElementByID("s2"), el)
	assert.Equal(t, 3, rt.Counter())
}

func TestAttachUnknownController(t *testing.T) {
	page := `<html><body><p id="z1"></p><script data-zid="z1" data-controllerid="nope"></script></body></html>`
	rt, _ := liveRuntime(t, page)

	err := rt.AttachDocument(context.Background())
	require.ErrorIs(t, err, ErrUnknownType)
	assert.Empty(t, rt.Components())
}

func TestAttachOptionsCarryGlobal(t *testing.T) {
	page := `<html><body>
<div id="a1"></div><script data-zid="a1" data-controllerid="recorder" data-options='{"n":2}'></script>
<div id="a2"></div><script data-zid="a2" data-controllerid="recorder"></script>
</body></html>`

	seen := map[string]Options{}
	recorder := AttachFunc(func(_ context.Context, el *html.Node, o Options) (any, error) {
		seen[dom.ID(el)] = o
		return nil, nil
	})
	reg := loader.New()
	reg.Register("recorder", recorder)

	global := &struct{ Name string }{"site"}
	rt, _ := liveRuntime(t, page, WithLoader(reg), WithGlobal(global))
	require.NoError(t, rt.AttachDocument(context.Background()))

	assert.Equal(t, Options{"n": float64(2), "global": global}, seen["a1"])
	assert.Equal(t, Options{"global": global}, seen["a2"])

	// A nil result registers the target element.
	_, ok := rt.Element("a1")
	assert.True(t, ok)
}

func TestAttachInvalidOptions(t *testing.T) {
	page := `<html><body><div id="z1"></div><script data-zid="z1" data-controllerid="w" data-options='{nope'></script></body></html>`
	rt, _ := liveRuntime(t, page)
	rt.Add(rt.MustDefine(Fragment{"type": "w", "dynamic": true}))

	err := rt.AttachDocument(context.Background())
	require.ErrorIs(t, err, ErrInvalidOptions)
}

func TestAttachSealedOptions(t *testing.T) {
	for _, private := range []bool{false, true} {
		name := "signed"
		attr := AttrOptionsSigned
		if private {
			name, attr = "private", AttrOptionsPrivate
		}
		t.Run(name, func(t *testing.T) {
			enc, err := NewEncoder([]byte("secret"))
			require.NoError(t, err)
			mode := encoding.Signed
			if private {
				mode = encoding.Private
			}
			sealed, err := enc.Seal("z1", map[string]any{"label": "ok"}, mode)
			require.NoError(t, err)

			page := `<html><body><div id="z1"></div><script data-zid="z1" data-controllerid="w" ` +
				attr + `="` + sealed + `"></script></body></html>`
			rt, _ := liveRuntime(t, page, WithEncoder(enc))
			rt.Add(rt.MustDefine(Fragment{"type": "w", "dynamic": true}))

			require.NoError(t, rt.AttachDocument(context.Background()))
			inst, ok := rt.Instance("z1")
			require.True(t, ok)
			assert.Equal(t, "ok", inst.Options()["label"])
		})
	}
}

func TestAttachSealedOptionsNeedEncoder(t *testing.T) {
	page := `<html><body><div id="z1"></div><script data-zid="z1" data-controllerid="w" data-options-signed="abc.def"></script></body></html>`
	rt, _ := liveRuntime(t, page)
	rt.Add(rt.MustDefine(Fragment{"type": "w", "dynamic": true}))

	require.ErrorIs(t, rt.AttachDocument(context.Background()), ErrInvalidOptions)
}

func TestAttachResolvesThroughResolveFunc(t *testing.T) {
	page := `<html><body><div id="z3"></div><script data-zid="z3" data-controllerid="remote"></script></body></html>`
	var requested []string
	resolver := ResolveFunc(func(names []string, cont func(values ...any)) {
		requested = append(requested, names...)
		cont(func(el *html.Node, o Options) any { return &disposableController{} })
	})
	rt, _ := liveRuntime(t, page, WithLoader(resolver))

	require.NoError(t, rt.AttachDocument(context.Background()))
	assert.Equal(t, []string{"remote"}, requested)

	c, ok := rt.Component("z3")
	require.True(t, ok)
	assert.IsType(t, &disposableController{}, c)
}

func TestAttachFoldsChainDispose(t *testing.T) {
	page := `<html><body><div id="z4"><b>x</b></div><script data-zid="z4" data-controllerid="w"></script></body></html>`
	rt, doc := liveRuntime(t, page)
	var disposed int
	rt.Add(rt.MustDefine(
		Fragment{"type": "w", "dynamic": true},
		Fragment{"prototype": map[string]any{"dispose": func(_ any, args ...any) any {
			if args[0] == true {
				disposed++
			}
			return nil
		}}},
	))
	require.NoError(t, rt.AttachDocument(context.Background()))

	inst, ok := rt.Instance("z4")
	require.True(t, ok)
	assert.Equal(t, 2, inst.DisposeChain().Len(), "removal hook runs first")

	require.NoError(t, inst.Dispose(context.Background(), false))
	assert.Nil(t, doc.GetElementByID("z4"))
	assert.Equal(t, Disposed, inst.State())
	assert.Empty(t, inst.Elements())
	assert.Equal(t, 1, disposed)
	assert.Empty(t, rt.Components())
}

func TestAttachFoldsPlainDispose(t *testing.T) {
	page := `<html><body><div id="d1"></div><script data-zid="d1" data-controllerid="plain"></script></body></html>`
	ctrl := &disposableController{}
	reg := loader.New()
	reg.Register("plain", AttachFunc(func(context.Context, *html.Node, Options) (any, error) {
		return ctrl, nil
	}))
	rt, doc := liveRuntime(t, page, WithLoader(reg))
	require.NoError(t, rt.AttachDocument(context.Background()))

	require.NoError(t, rt.Dispose(context.Background(), "d1", false))
	assert.Nil(t, doc.GetElementByID("d1"))
	assert.Equal(t, []bool{true}, ctrl.calls, "removal disposes the controller structurally once")
	assert.Empty(t, rt.Components())
}

func TestAttachDirectiveOutsideLiveDocument(t *testing.T) {
	rt := New()
	_, err := rt.AttachDirective(context.Background(), Directive{TargetID: "z1"})
	require.ErrorIs(t, err, ErrServerConstruct)
}

func TestParseDirective(t *testing.T) {
	nodes, err := dom.ParseFragment(`<script data-zid="z1" data-controllerid="c" data-options='{"a":1}'></script><script src="x.js"></script><div data-zid="z2"></div>`)
	require.NoError(t, err)

	d, ok := ParseDirective(nodes[0])
	require.True(t, ok)
	assert.Equal(t, "z1", d.TargetID)
	assert.Equal(t, "c", d.Controller)
	assert.Equal(t, `{"a":1}`, d.Options)
	assert.True(t, d.HasOptions)
	assert.False(t, d.Sealed)

	_, ok = ParseDirective(nodes[1])
	assert.False(t, ok, "plain scripts are not directives")
	_, ok = ParseDirective(nodes[2])
	assert.False(t, ok, "only script elements carry directives")
}
