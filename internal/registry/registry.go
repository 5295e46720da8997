// Package registry resolves the storageClass and recordWriterProviderClass
// configuration strings to constructors: interface abstractions selected
// by a string key resolved to a constructor in a small registry, no
// dynamic class loading required. Components register themselves from an
// init() in their own package.
package registry

import (
	"fmt"
	"sync"
)

// Factory builds a component instance from its decoded configuration map.
// The returned value is type-asserted by the caller (CreateStorage,
// CreateRecordWriterProvider) against the interface it actually needs.
type Factory func(config map[string]any) (any, error)

var (
	mu                     sync.RWMutex
	storageFactories       = make(map[string]Factory)
	writerProviderFactories = make(map[string]Factory)
)

// RegisterStorage registers a storageClass constructor under name.
func RegisterStorage(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	storageFactories[name] = f
}

// RegisterRecordWriterProvider registers a recordWriterProviderClass
// constructor under name.
func RegisterRecordWriterProvider(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	writerProviderFactories[name] = f
}

// create resolves name in the given factory table and builds it, erroring
// out with the available names if name is unknown.
func create(kind string, table map[string]Factory, name string, config map[string]any) (any, error) {
	mu.RLock()
	factory, ok := table[name]
	mu.RUnlock()
	if !ok {
		mu.RLock()
		names := make([]string, 0, len(table))
		for n := range table {
			names = append(names, n)
		}
		mu.RUnlock()
		return nil, fmt.Errorf("unknown %s class %q (registered: %v)", kind, name, names)
	}
	instance, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s %q: %w", kind, name, err)
	}
	return instance, nil
}

// CreateStorage resolves storageClass to a registered constructor and
// builds it.
func CreateStorage(name string, config map[string]any) (any, error) {
	return create("storage", storageFactories, name, config)
}

// CreateRecordWriterProvider resolves recordWriterProviderClass to a
// registered constructor and builds it.
func CreateRecordWriterProvider(name string, config map[string]any) (any, error) {
	return create("record writer provider", writerProviderFactories, name, config)
}

// Names lists all registered keys in both tables, for diagnostics.
func Names() (storageNames, writerProviderNames []string) {
	mu.RLock()
	defer mu.RUnlock()
	for n := range storageFactories {
		storageNames = append(storageNames, n)
	}
	for n := range writerProviderFactories {
		writerProviderNames = append(writerProviderNames, n)
	}
	return
}
