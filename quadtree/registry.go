package quadtree

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/logs"
)

// Registry tracks the collections of a world so that a released tree can be
// removed from every one of them.
type Registry struct {
	mutex       sync.RWMutex
	collections map[*Collection]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		collections: make(map[*Collection]struct{}),
	}
}

// NewCollection creates a collection and registers it.
func (r *Registry) NewCollection(name string) *Collection {
	c := newCollection(r, name)
	r.RegisterCollection(c)
	return c
}

// RegisterCollection tracks the given collection. It is a no-op when the
// collection is already tracked.
func (r *Registry) RegisterCollection(c *Collection) {
	if c == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.collections[c] = struct{}{}
}

// UnregisterCollection stops tracking the given collection.
func (r *Registry) UnregisterCollection(c *Collection) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.collections, c)
}

// Collections returns the tracked collections.
func (r *Registry) Collections() []*Collection {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	collections := make([]*Collection, 0, len(r.collections))
	for c := range r.collections {
		collections = append(collections, c)
	}
	return collections
}

// UnregisterTree removes the tree from every tracked collection.
func (r *Registry) UnregisterTree(t *Tree) {
	if t == nil {
		return
	}

	for _, c := range r.Collections() {
		c.UnregisterTree(t)
	}

	logs.WithTag("tree_id", t.ID).Debug("tree unregistered from all collections")
}

// NewTree builds a tree bound to the registry. Releasing the tree removes it
// from all the collections of the registry.
func (r *Registry) NewTree(kind Kind, width, height int) (*Tree, error) {
	t, err := New(kind, width, height)
	if err != nil {
		return nil, err
	}

	t.registry = r
	return t, nil
}
