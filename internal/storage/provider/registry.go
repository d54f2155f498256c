package provider

import (
	"fmt"
	"sort"
)

// Registry — реестр адаптеров по идентификатору провайдера.
type Registry struct {
	adapters map[ID]Adapter
}

// NewRegistry создаёт реестр из набора адаптеров.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[ID]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.ID()] = a
	}
	return r
}

// Get возвращает адаптер по идентификатору.
func (r *Registry) Get(id ID) (Adapter, error) {
	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, id)
	}
	return a, nil
}

// For возвращает адаптер для конфигурации.
func (r *Registry) For(cfg Config) (Adapter, error) {
	return r.Get(cfg.Provider)
}

// IDs возвращает зарегистрированные идентификаторы в алфавитном порядке.
func (r *Registry) IDs() []ID {
	ids := make([]ID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
