package zest

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"net/http"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pthm/zest/lib/dom"
	"github.com/pthm/zest/lib/extend"
	"github.com/pthm/zest/lib/fnchain"
)

// Runtime is the coordinator owning the process-wide component state: the
// live-component registry, the id counter, defined classes and the
// collaborators (document, renderer, loader, element removal).
//
// All mutation of the registry and the counter goes through Runtime methods,
// guarded by one mutex.
type Runtime struct {
	mu         sync.RWMutex
	components map[string]any            // id -> *Instance, controller or raw *html.Node
	hooks      map[string]*fnchain.Chain // dispose hooks for controllers without a dispose chain
	classes    map[string]*Class         // added classes by type
	nextID     int

	idPrefix       string
	doc            *dom.Document
	renderer       Renderer
	loader         Loader
	disposer       Disposer
	encoder        *Encoder
	privateOptions bool
	global         any
	logger         *zap.Logger
	table          extend.Table
	stopPolicy     fnchain.Policy

	// OnError is called when Handler fails to render a component.
	// Customize this to handle errors appropriately for your application.
	OnError func(http.ResponseWriter, *http.Request, error)
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithDocument attaches the runtime to a live document. Without one, the
// runtime can only render (the server case).
func WithDocument(doc *dom.Document) Option {
	return func(rt *Runtime) { rt.doc = doc }
}

// WithRenderer replaces the default TemplRenderer.
func WithRenderer(r Renderer) Option {
	return func(rt *Runtime) { rt.renderer = r }
}

// WithLoader sets the controller resolver used by the attachment resolver.
// Without one, controller references resolve to added classes by type.
func WithLoader(l Loader) Option {
	return func(rt *Runtime) { rt.loader = l }
}

// WithDisposer replaces the element-removal collaborator. The runtime itself
// is the default.
func WithDisposer(d Disposer) Option {
	return func(rt *Runtime) { rt.disposer = d }
}

// WithEncoder seals options written into attach directives and opens sealed
// directive payloads.
func WithEncoder(enc *Encoder) Option {
	return func(rt *Runtime) { rt.encoder = enc }
}

// WithPrivateOptions encrypts sealed directive options instead of signing
// them. Requires WithEncoder.
func WithPrivateOptions() Option {
	return func(rt *Runtime) { rt.privateOptions = true }
}

// WithGlobal sets the shared context injected into attached options as
// "global".
func WithGlobal(global any) Option {
	return func(rt *Runtime) { rt.global = global }
}

// WithLogger sets the runtime logger.
func WithLogger(logger *zap.Logger) Option {
	return func(rt *Runtime) { rt.logger = logger }
}

// WithIDPrefix sets the prefix of minted component ids. Defaults to "z".
func WithIDPrefix(prefix string) Option {
	return func(rt *Runtime) { rt.idPrefix = prefix }
}

// WithCounter sets the next numeric id the runtime mints.
func WithCounter(next int) Option {
	return func(rt *Runtime) { rt.nextID = next }
}

// WithLiteralDispose selects the legacy stop-first-defined test for dispose
// chains: only the string "undefined" counts as "no value produced", so any
// other return from the first handler, nil included, stops the chain.
func WithLiteralDispose() Option {
	return func(rt *Runtime) { rt.stopPolicy = fnchain.StopFirstDefinedLiteral }
}

// New creates a runtime.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		components: make(map[string]any),
		hooks:      make(map[string]*fnchain.Chain),
		classes:    make(map[string]*Class),
		nextID:     1,
		idPrefix:   "z",
		logger:     zap.NewNop(),
		stopPolicy: fnchain.StopFirstDefined,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.renderer == nil {
		rt.renderer = TemplRenderer{}
	}
	if rt.disposer == nil {
		rt.disposer = rt
	}
	rt.table = componentTable(rt.stopPolicy)

	rt.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		if IsNotFound(err) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		if IsDecryptionError(err) || errors.Is(err, ErrInvalidOptions) || errors.Is(err, ErrInvalidFormat) {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}

	return rt
}

// Document returns the live document, or nil on a server runtime.
func (rt *Runtime) Document() *dom.Document {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.doc
}

// SetDocument swaps the document the runtime attaches to.
func (rt *Runtime) SetDocument(doc *dom.Document) {
	rt.mu.Lock()
	rt.doc = doc
	rt.mu.Unlock()
}

// Global returns the shared context injected into attached options.
func (rt *Runtime) Global() any {
	return rt.global
}

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *zap.Logger {
	return rt.logger
}

// NextID mints a fresh component id.
func (rt *Runtime) NextID() string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	id := rt.idPrefix + strconv.Itoa(rt.nextID)
	rt.nextID++
	return id
}

// Counter returns the next numeric id the runtime would mint.
func (rt *Runtime) Counter() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.nextID
}

// observeID advances the counter past the numeric suffix of an id assigned
// outside this runtime, so minted ids never collide with it. Suffixes that do
// not fit below math.MaxInt leave the counter alone.
func (rt *Runtime) observeID(id string) {
	n, ok := numericSuffix(id)
	if !ok {
		rt.logger.Debug("id has no numeric suffix", zap.String("zid", id))
		return
	}
	if n == math.MaxInt {
		rt.logger.Warn("id suffix leaves no room for the counter", zap.String("zid", id))
		return
	}
	rt.mu.Lock()
	if rt.nextID <= n {
		rt.nextID = n + 1
	}
	rt.mu.Unlock()
}

func numericSuffix(id string) (int, bool) {
	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}
	if i == len(id) {
		return 0, false
	}
	n, err := strconv.Atoi(id[i:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Register records a live component under id, replacing any previous entry.
func (rt *Runtime) Register(id string, component any) {
	rt.mu.Lock()
	rt.components[id] = component
	rt.mu.Unlock()
}

// Unregister drops id from the registry along with its dispose hook.
func (rt *Runtime) Unregister(id string) {
	rt.mu.Lock()
	delete(rt.components, id)
	delete(rt.hooks, id)
	rt.mu.Unlock()
}

// Component returns the live component registered under id: an *Instance,
// an attached controller, or the raw element of a static component.
func (rt *Runtime) Component(id string) (any, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	c, ok := rt.components[id]
	return c, ok
}

// Components returns a snapshot of the registry.
func (rt *Runtime) Components() map[string]any {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return maps.Clone(rt.components)
}

// Instance returns the *Instance registered under id.
func (rt *Runtime) Instance(id string) (*Instance, bool) {
	c, ok := rt.Component(id)
	if !ok {
		return nil, false
	}
	inst, ok := c.(*Instance)
	return inst, ok
}

// Element returns the raw element registered under id, for static
// components.
func (rt *Runtime) Element(id string) (*html.Node, bool) {
	c, ok := rt.Component(id)
	if !ok {
		return nil, false
	}
	n, ok := c.(*html.Node)
	return n, ok
}

func (rt *Runtime) setHook(id string, hook *fnchain.Chain) {
	rt.mu.Lock()
	rt.hooks[id] = hook
	rt.mu.Unlock()
}

func (rt *Runtime) hook(id string) *fnchain.Chain {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.hooks[id]
}

// Add registers classes by type so that Handler can serve them and the
// attachment resolver can find them without a Loader.
// Panics if a class has no type or two classes share a type.
func (rt *Runtime) Add(classes ...*Class) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	for _, c := range classes {
		typ := c.Type()
		if typ == "" {
			panic("zest: cannot add a class without a type")
		}
		if _, exists := rt.classes[typ]; exists {
			panic(fmt.Sprintf("zest: type collision for %q", typ))
		}
		rt.classes[typ] = c
	}
}

// Class returns the added class for typ.
func (rt *Runtime) Class(typ string) (*Class, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	c, ok := rt.classes[typ]
	return c, ok
}
