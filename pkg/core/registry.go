package core

import (
	"fmt"
	"slices"
	"sync"
)

// Registry owns named stores that share one configuration, logger and
// monitor.
type Registry struct {
	mutex  sync.Mutex
	stores map[string]any
	set    settings
}

func NewRegistry(opts ...Option) *Registry {
	set := newSettings(opts)
	return &Registry{
		stores: make(map[string]any),
		set:    set,
	}
}

// Open returns the store called name, creating it on first use.
func Open[R comparable](reg *Registry, name string) (*Store[R], error) {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()

	if existing, ok := reg.stores[name]; ok {
		s, ok := existing.(*Store[R])
		if !ok {
			return nil, fmt.Errorf("%w: %s holds %T", ErrStoreType, name, existing)
		}
		return s, nil
	}

	s := NewStore[R](name,
		WithConfig(reg.set.cfg),
		WithLogger(reg.set.log),
		WithMonitor(reg.set.mon),
	)
	reg.stores[name] = s
	reg.set.log.Info("store opened", "store", name)
	return s, nil
}

// Lookup returns an existing store without creating one.
func Lookup[R comparable](reg *Registry, name string) (*Store[R], bool, error) {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()

	existing, ok := reg.stores[name]
	if !ok {
		return nil, false, nil
	}
	s, ok := existing.(*Store[R])
	if !ok {
		return nil, false, fmt.Errorf("%w: %s holds %T", ErrStoreType, name, existing)
	}
	return s, true, nil
}

// Drop forgets the store called name. Handles already obtained keep
// working on their own.
func (reg *Registry) Drop(name string) bool {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	if _, ok := reg.stores[name]; !ok {
		return false
	}
	delete(reg.stores, name)
	return true
}

// Names returns the registered store names, sorted.
func (reg *Registry) Names() []string {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	names := make([]string, 0, len(reg.stores))
	for name := range reg.stores {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
