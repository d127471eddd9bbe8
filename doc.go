// Package zest is a component runtime for markup that is rendered once and
// brought to life later.
//
// A component class is assembled from layered definition fragments. An
// instance of a class is either rendered fresh or attached onto markup that
// already exists in a document (typically markup a server rendered, followed
// by a small attach directive). Teardown is coordinated through a two-phase
// dispose protocol so that removing markup and running cleanup never race or
// double-fire.
//
// # Classes
//
// Classes are defined from fragments. Every field of a fragment merges into
// the class using a fixed per-field strategy:
//
//	rt := zest.New(zest.WithDocument(doc))
//	slideshow := rt.MustDefine(zest.Fragment{
//	    "type":     "app/slideshow",
//	    "template": slideshowTemplate, // func(zest.Options) templ.Component
//	    "css":      ".slideshow{overflow:hidden}",
//	    "options":  map[string]any{"delay": 3000},
//	    "construct": func(ctx context.Context, self any, args ...any) (any, error) {
//	        inst := self.(*zest.Instance)
//	        return nil, startTimer(inst)
//	    },
//	})
//
// A class whose fragments never supply construct logic, instance members, or
// an explicit "dynamic": true is static: its markup needs no client-side
// object, so the class has no attach entry point.
//
// # Attaching to existing markup
//
// Server-rendered markup carries an attach directive:
//
//	<div id="z4" class="slideshow">...</div>
//	<script data-zid="z4" data-controllerid="app/slideshow" data-options='{"delay":500}'></script>
//
// AttachDocument processes every directive in document order: it resolves the
// controller through the Loader (or the classes added with Add), attaches it
// to the target element, registers the result in the live-component registry,
// advances the id counter past the server-assigned id, and removes the
// directive.
//
// # Disposal
//
// Dispose(ctx, false) asks the element-removal collaborator to remove the
// component's markup; the collaborator calls Dispose(ctx, true) back once the
// markup is gone, which releases event bindings and the element list. Later
// definition layers add cleanup to the prototype.dispose chain; it runs only
// when the base handler produced no value for the call.
//
// # Server rendering
//
// RenderHTML and Embed write a component's markup followed by its attach
// directive, so a page rendered with templ can be hydrated by a runtime that
// owns a live document.
package zest
