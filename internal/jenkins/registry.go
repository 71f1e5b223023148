package jenkins

import (
	"fmt"

	"github.com/vk/jobsmith/internal/document"
)

// Renderer appends one option's XML fragment to the job document being built.
type Renderer func(d *jobDocument, value any) error

// Registry maps option names to their renderers and fixes the order options
// are rendered in, independent of their declaration order in the document.
type Registry struct {
	renderers map[string]Renderer
	order     []string
}

// NewRegistry returns a registry populated with the core renderers.
func NewRegistry() *Registry {
	r := &Registry{renderers: map[string]Renderer{}}
	for _, entry := range coreRenderers {
		r.Register(entry.option, entry.fn)
	}
	return r
}

// Register adds a renderer. Registering the same option twice is a
// programming error.
func (r *Registry) Register(option string, fn Renderer) {
	if _, exists := r.renderers[option]; exists {
		panic(fmt.Sprintf("renderer for option %q already registered", option))
	}
	r.renderers[option] = fn
	r.order = append(r.order, option)
}

// Lookup returns the renderer for an option, if registered.
func (r *Registry) Lookup(option string) (Renderer, bool) {
	fn, ok := r.renderers[option]
	return fn, ok
}

// Validate checks the registry against the document option catalog: every
// renderable catalog option needs a renderer, and every renderer needs a
// catalog entry. A mismatch is a defect in the program, not in any document,
// so the application fails fast at startup.
func (r *Registry) Validate() error {
	for _, option := range document.RenderableOptions() {
		if _, ok := r.renderers[option]; !ok {
			return fmt.Errorf("catalog option %q has no registered renderer", option)
		}
	}
	for option := range r.renderers {
		if !document.Known(option) || document.Reserved(option) {
			return fmt.Errorf("renderer registered for %q, which is not a renderable catalog option", option)
		}
	}
	return nil
}
