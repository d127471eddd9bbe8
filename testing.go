package zest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/pthm/zest/lib/dom"
)

// TestResult holds the outcome of a render or attach for testing.
//
// Provides convenience methods for asserting on HTML content, the
// live-component registry and HTTP responses.
type TestResult struct {
	HTML       string
	StatusCode int
	Headers    http.Header
	// Components is the registry snapshot after the operation.
	Components map[string]any
	// Counter is the next id the runtime would mint.
	Counter int
	// Err joins the failures of individual directives, for TestAttach.
	Err error
}

// TestRender server-renders a class and returns testable output.
//
//	result, err := zest.TestRender(rt, counter, zest.Options{"start": 3})
//	if !result.HTMLContains(`data-controllerid="counter"`) {
//	    t.Fatal("missing attach directive")
//	}
func TestRender(rt *Runtime, c *Class, o Options) (*TestResult, error) {
	return TestRenderWithContext(context.Background(), rt, c, o)
}

// TestRenderWithContext is TestRender with a custom context, for templates
// or load steps that read request-scoped values.
func TestRenderWithContext(ctx context.Context, rt *Runtime, c *Class, o Options) (*TestResult, error) {
	var buf bytes.Buffer
	if err := rt.RenderHTML(ctx, &buf, c, o); err != nil {
		return nil, err
	}
	return &TestResult{
		HTML:       buf.String(),
		StatusCode: http.StatusOK,
		Components: rt.Components(),
		Counter:    rt.Counter(),
	}, nil
}

// TestAttach loads page as the runtime's live document and processes its
// attach directives, the way a page load would:
//
//	page, _ := zest.TestRender(server, counter, nil)
//	result, err := zest.TestAttach(client, "<body>"+page.HTML+"</body>")
//
// Directive failures do not fail TestAttach; they are reported in Err.
func TestAttach(rt *Runtime, page string) (*TestResult, error) {
	return TestAttachWithContext(context.Background(), rt, page)
}

// TestAttachWithContext is TestAttach with a custom context.
func TestAttachWithContext(ctx context.Context, rt *Runtime, page string) (*TestResult, error) {
	doc, err := dom.ParseString(page)
	if err != nil {
		return nil, err
	}
	rt.SetDocument(doc)
	attachErr := rt.AttachDocument(ctx)

	return &TestResult{
		HTML:       doc.String(),
		StatusCode: http.StatusOK,
		Components: rt.Components(),
		Counter:    rt.Counter(),
		Err:        attachErr,
	}, nil
}

// TestGet performs a GET against the runtime's Handler:
//
//	result := zest.TestGet(rt, `/counter?o={"start":3}`)
func TestGet(rt *Runtime, target string) *TestResult {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	rt.Handler().ServeHTTP(rec, req)

	return &TestResult{
		HTML:       rec.Body.String(),
		StatusCode: rec.Code,
		Headers:    rec.Header(),
		Components: rt.Components(),
		Counter:    rt.Counter(),
	}
}

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HTMLContainsAny checks if the HTML contains any of the given substrings.
func (r *TestResult) HTMLContainsAny(substrs ...string) bool {
	for _, s := range substrs {
		if strings.Contains(r.HTML, s) {
			return true
		}
	}
	return false
}

// Has checks if a component is registered under id.
func (r *TestResult) Has(id string) bool {
	_, ok := r.Components[id]
	return ok
}

// IsOK checks if the status code is 200.
func (r *TestResult) IsOK() bool {
	return r.StatusCode == http.StatusOK
}

// IsNotFound checks if the status code is 404.
func (r *TestResult) IsNotFound() bool {
	return r.StatusCode == http.StatusNotFound
}

// IsBadRequest checks if the status code is 400.
func (r *TestResult) IsBadRequest() bool {
	return r.StatusCode == http.StatusBadRequest
}
