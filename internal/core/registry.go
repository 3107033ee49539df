package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]ModeDefinition)
	registryMu sync.RWMutex
)

// Register adds a mode definition to the registry.
// Panics if the definition is invalid or the key is already registered.
func Register(def ModeDefinition) {
	if err := def.Validate(); err != nil {
		panic(fmt.Sprintf("invalid mode %q: %v", def.Key, err))
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("mode already registered: %s", def.Key))
	}
	registry[def.Key] = def
}

// Get returns a mode definition by key.
// Returns false if not found.
func Get(key string) (ModeDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered mode definitions sorted by key.
func All() []ModeDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]ModeDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// ModeCount returns the number of registered modes.
func ModeCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered modes.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]ModeDefinition)
}
