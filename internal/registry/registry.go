// Package registry holds the process-wide active Settings.
//
// The registry is set once at the composition root (typically main) and read
// by components that were not handed a Settings directly. Readers never
// block and never observe a partially built value.
package registry

import (
	"sync/atomic"

	"github.com/dmitrijs2005/infrakit/internal/common"
	"github.com/dmitrijs2005/infrakit/internal/settings"
)

const notInitializedHint = "resolve settings with config.Resolve or config.NewBuilder().Build() and call registry.Set"

// Registry is a single optional Settings slot. The zero value is empty and
// ready to use.
type Registry struct {
	current atomic.Pointer[settings.Settings]
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Set replaces the active settings unconditionally.
func (r *Registry) Set(s settings.Settings) {
	r.current.Store(&s)
}

// Get returns the active settings, or a not-initialized
// *common.ConfigurationError when nothing has been set.
func (r *Registry) Get() (settings.Settings, error) {
	p := r.current.Load()
	if p == nil {
		return settings.Settings{}, &common.ConfigurationError{
			Suggestion: notInitializedHint,
			Err:        common.ErrNotInitialized,
		}
	}
	return *p, nil
}

// MustGet is Get for composition roots; it panics when the registry is empty.
func (r *Registry) MustGet() settings.Settings {
	s, err := r.Get()
	if err != nil {
		panic(err)
	}
	return s
}

// Reset empties the registry.
func (r *Registry) Reset() {
	r.current.Store(nil)
}

// IsSet reports whether settings have been stored.
func (r *Registry) IsSet() bool {
	return r.current.Load() != nil
}

var process = New()

// Default returns the process-wide registry.
func Default() *Registry { return process }

// Set stores s in the process-wide registry.
func Set(s settings.Settings) { process.Set(s) }

// Get reads the process-wide registry.
func Get() (settings.Settings, error) { return process.Get() }

// Reset empties the process-wide registry.
func Reset() { process.Reset() }
