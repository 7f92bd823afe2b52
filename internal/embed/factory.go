package embed

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Builder constructs an Embedder of the given dimension.
type Builder func(dim int) Embedder

var (
	registryOnce sync.Once
	registry     map[string]Builder
	registryMu   sync.RWMutex

	instances sync.Map // "name:dim" -> Embedder
	group     singleflight.Group
)

func initRegistry() {
	registry = map[string]Builder{
		HashName: func(dim int) Embedder { return NewHashEmbedder(dim) },
	}
}

// Register adds or replaces a named embedder builder. Called from package
// init functions of additional embedder implementations; safe to call
// concurrently with Build.
func Register(name string, build Builder) {
	registryOnce.Do(initRegistry)
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = build
}

// Build returns the embedder registered under name, constructing it at
// most once per (name, dim) pair for the lifetime of the process. Concurrent
// callers requesting the same pair block on the same construction instead of
// racing to build redundant instances.
func Build(name string, dim int) (Embedder, error) {
	registryOnce.Do(initRegistry)

	key := fmt.Sprintf("%s:%d", name, dim)
	if v, ok := instances.Load(key); ok {
		return v.(Embedder), nil
	}

	v, err, _ := group.Do(key, func() (interface{}, error) {
		registryMu.RLock()
		build, ok := registry[name]
		registryMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("embed: unknown embedder %q", name)
		}
		e := build(dim)
		instances.Store(key, e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Embedder), nil
}

// Names lists the currently registered embedder names.
func Names() []string {
	registryOnce.Do(initRegistry)
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// IsRegistered reports whether name has a registered builder.
func IsRegistered(name string) bool {
	registryOnce.Do(initRegistry)
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}
