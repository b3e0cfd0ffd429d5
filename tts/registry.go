package tts

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an engine from configuration.
type Factory func(cfg EngineConfig) (Engine, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes an engine available under name. Engine packages call it
// from init.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if f == nil {
		panic("tts: Register factory is nil")
	}
	factories[name] = f
}

// NewEngine builds the engine named by cfg.Name.
func NewEngine(cfg EngineConfig) (Engine, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownEngine, cfg.Name, Engines())
	}
	e, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s engine: %w", cfg.Name, err)
	}
	return e, nil
}

// Engines lists the registered engine names.
func Engines() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
