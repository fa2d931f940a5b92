package rhi

import (
	"fmt"
	"slices"

	"github.com/gogpu/gpucontext"
)

// backends holds the registered device factories; "native" wins when
// several are present.
var backends = gpucontext.NewRegistry[GraphicsDevice](gpucontext.WithPriority("native"))

// Register makes a backend available under name. Backends call it from
// an init function. Registering a name twice replaces the factory.
func Register(name string, factory func() GraphicsDevice) {
	backends.Register(name, factory)
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	names := backends.Available()
	slices.Sort(names)
	return names
}

// Open returns a new, uninitialized device from the named backend. An
// empty name selects the highest-priority registered backend.
func Open(name string) (GraphicsDevice, error) {
	if name == "" {
		name = backends.BestName()
	}
	if name == "" || !backends.Has(name) {
		return nil, fmt.Errorf("%w: %w: backend %q not registered", ErrFatal, ErrNoAdapter, name)
	}
	return backends.Get(name), nil
}
