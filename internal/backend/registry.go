package backend

import (
	"fmt"
	"strings"

	"github.com/san-kum/testbed/internal/world"
)

// Canonical is the name of the built-in engine, always at index 0.
const Canonical = "canonical"

// Factory builds a backend from the current World State.
type Factory func(w *world.World, s Settings) (Backend, error)

type entry struct {
	name    string
	factory Factory
}

// Registry is the ordered list of installed backends.
type Registry struct {
	entries []entry
}

// NewRegistry returns a registry holding only the canonical engine.
func NewRegistry() *Registry {
	return &Registry{entries: []entry{{name: Canonical}}}
}

// Default returns the registry with every bundled backend installed.
func Default() *Registry {
	r := NewRegistry()
	r.Register("box2d", NewBox2D)
	r.Register("chipmunk", NewChipmunk)
	return r
}

func (r *Registry) Register(name string, f Factory) {
	r.entries = append(r.entries, entry{name: name, factory: f})
}

func (r *Registry) Len() int { return len(r.entries) }

func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Clamp maps an out-of-range selector index to the canonical engine.
func (r *Registry) Clamp(i int) int {
	if i < 0 || i >= len(r.entries) {
		return 0
	}
	return i
}

func (r *Registry) Name(i int) string { return r.entries[r.Clamp(i)].name }

func (r *Registry) Index(name string) (int, error) {
	for i, e := range r.entries {
		if strings.EqualFold(e.name, name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
}

// Build constructs the backend at index i. The canonical engine has no
// shadow state, so Build returns nil for it.
func (r *Registry) Build(i int, w *world.World, s Settings) (Backend, error) {
	e := r.entries[r.Clamp(i)]
	if e.factory == nil {
		return nil, nil
	}
	b, err := e.factory(w, s.Resolve(w.Params))
	if err != nil {
		return nil, fmt.Errorf("build %s backend: %w", e.name, err)
	}
	return b, nil
}
