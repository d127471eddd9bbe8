package zest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/a-h/templ"
	"go.uber.org/zap"
)

// QueryOptions is the query parameter Handler reads component options from,
// as a JSON object.
const QueryOptions = "o"

// Render writes a templ component to the HTTP response.
//
// Sets Content-Type to text/html and renders the component using the
// request's context:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    zest.Render(w, r, zest.Embed(rt, counter, nil))
//	}
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// Handler serves server renders of the classes added with Add:
//
//	GET /{type}?o={"start":3}
//
// The response carries the markup and, for dynamic classes, the attach
// directive. Failures go to OnError.
func (rt *Runtime) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{type...}", rt.serveComponent)
	return mux
}

func (rt *Runtime) serveComponent(w http.ResponseWriter, r *http.Request) {
	typ := r.PathValue("type")
	c, ok := rt.Class(typ)
	if !ok {
		rt.fail(w, r, fmt.Errorf("%w: %q", ErrUnknownType, typ))
		return
	}

	o := Options{}
	if raw := r.URL.Query().Get(QueryOptions); raw != "" {
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			rt.fail(w, r, fmt.Errorf("%w: %w", ErrInvalidOptions, err))
			return
		}
	}

	var buf bytes.Buffer
	if err := rt.RenderHTML(r.Context(), &buf, c, o); err != nil {
		rt.fail(w, r, err)
		return
	}
	if err := Render(w, r, templ.Raw(buf.String())); err != nil {
		rt.logger.Warn("write response", zap.String("type", typ), zap.Error(err))
	}
}

func (rt *Runtime) fail(w http.ResponseWriter, r *http.Request, err error) {
	rt.logger.Info("component request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	rt.OnError(w, r, err)
}
