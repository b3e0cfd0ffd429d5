package llm

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a backend from configuration.
type Factory func(cfg Config) (Backend, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a provider available under name. Provider packages call it
// from init.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if f == nil {
		panic("llm: Register factory is nil")
	}
	factories[name] = f
}

// New builds the backend named by cfg.Provider.
func New(cfg Config) (Backend, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownProvider, cfg.Provider, Providers())
	}

	b, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", cfg.Provider, err)
	}
	if cfg.RequestsPerMinute > 0 {
		b = NewRateLimited(b, cfg.RequestsPerMinute)
	}
	return b, nil
}

// Providers lists the registered provider ids.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
