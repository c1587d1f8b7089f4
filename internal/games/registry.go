package games

import (
	"fmt"
	"sort"
	"sync"
)

// Registry looks rule modules up by game type.
type Registry struct {
	mu    sync.RWMutex
	games map[Type]Game
}

func NewRegistry(gs ...Game) *Registry {
	r := &Registry{games: make(map[Type]Game, len(gs))}
	for _, g := range gs {
		r.Register(g)
	}

	return r
}

// NewDefaultRegistry registers every game shipped with the service.
func NewDefaultRegistry() *Registry {
	return NewRegistry(Race{}, Busta{})
}

// Register adds g, replacing any game registered under the same type.
func (r *Registry) Register(g Game) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.games[g.Type()] = g
}

func (r *Registry) Get(t Type) (Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.games[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, t)
	}

	return g, nil
}

// Types returns the registered game types in lexical order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Type, 0, len(r.games))
	for t := range r.games {
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}
