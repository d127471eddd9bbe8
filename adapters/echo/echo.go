// Package zestecho provides Echo framework integration for zest runtimes.
//
// Mount a runtime's server-render handler onto an Echo instance or group:
//
//	e := echo.New()
//	rt := zestecho.Mount(e)
//	rt.Add(counter)
//
// Or mount on a group with middleware:
//
//	g := e.Group("/app", authMiddleware)
//	rt := zestecho.MountGroup(g)
//	rt.Add(counter)
package zestecho

import (
	"fmt"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/pthm/zest"
)

// Option configures the Mount and MountGroup functions.
type Option func(*options)

type options struct {
	key     []byte
	path    string
	runtime []zest.Option
}

// WithKey seals directive options with key. Without a key options are
// written as plain JSON.
func WithKey(key []byte) Option {
	return func(o *options) {
		o.key = key
	}
}

// WithPath sets the URL path prefix for component routes.
// Defaults to "/_z/".
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithRuntime passes options through to zest.New.
func WithRuntime(opts ...zest.Option) Option {
	return func(o *options) {
		o.runtime = append(o.runtime, opts...)
	}
}

// Mount creates a runtime and mounts its component handler on an Echo
// instance.
//
//	e := echo.New()
//	rt := zestecho.Mount(e, zestecho.WithKey(key))
func Mount(e *echo.Echo, opts ...Option) *zest.Runtime {
	rt, path := newRuntime(opts)
	e.GET(path+"*", handler(rt))
	return rt
}

// MountGroup creates a runtime and mounts its component handler on an Echo
// group, so components share the group's middleware.
func MountGroup(g *echo.Group, opts ...Option) *zest.Runtime {
	rt, path := newRuntime(opts)
	g.GET(path+"*", handler(rt))
	return rt
}

func newRuntime(opts []Option) (*zest.Runtime, string) {
	o := &options{path: "/_z/"}
	for _, opt := range opts {
		opt(o)
	}

	rtOpts := o.runtime
	if o.key != nil {
		enc, err := zest.NewEncoder(o.key)
		if err != nil {
			panic(fmt.Sprintf("zestecho: invalid key: %v", err))
		}
		rtOpts = append(rtOpts, zest.WithEncoder(enc))
	}
	return zest.New(rtOpts...), o.path
}

// handler serves the runtime's Handler with the route prefix removed.
func handler(rt *zest.Runtime) echo.HandlerFunc {
	h := rt.Handler()
	return func(c echo.Context) error {
		req := c.Request().Clone(c.Request().Context())
		req.URL.Path = "/" + c.Param("*")
		req.URL.RawPath = ""
		h.ServeHTTP(c.Response(), req)
		return nil
	}
}

// Render writes a templ component to the Echo response.
//
//	func page(c echo.Context) error {
//	    return zestecho.Render(c, zest.Embed(rt, counter, nil))
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}
