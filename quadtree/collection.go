package quadtree

import (
	"sort"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
)

// Collection is a set of trees receiving the same cell change notifications.
// It does not own its trees.
type Collection struct {
	ID   string
	Name string

	registry *Registry
	mutex    sync.RWMutex
	trees    map[*Tree]struct{}
}

func newCollection(r *Registry, name string) *Collection {
	return &Collection{
		ID:       uuid.NewString(),
		Name:     name,
		registry: r,
		trees:    make(map[*Tree]struct{}),
	}
}

// RegisterTree adds a tree to the collection. Registering the same tree twice
// has no effect. Nil and released trees are ignored.
func (c *Collection) RegisterTree(t *Tree) {
	if t == nil {
		logs.Warn(errors.New("registering a nil tree").
			WithTag("collection", c.Name))
		return
	}

	if t.Released() {
		logs.Warn(errors.New("registering a released tree").
			WithTag("collection", c.Name).
			WithTag("tree_id", t.ID))
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.trees[t]; ok {
		return
	}

	c.trees[t] = struct{}{}
	t.addCollection(c)
	instrumentCollectionTrees(c.Name, len(c.trees))
}

// UnregisterTree removes a tree from the collection. Unknown trees are
// ignored.
func (c *Collection) UnregisterTree(t *Tree) {
	if t == nil {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.trees[t]; !ok {
		return
	}

	delete(c.trees, t)
	t.removeCollection(c)
	instrumentCollectionTrees(c.Name, len(c.trees))
}

// Contains reports whether the tree is registered in the collection.
func (c *Collection) Contains(t *Tree) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	_, ok := c.trees[t]
	return ok
}

// Len returns the number of registered trees.
func (c *Collection) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.trees)
}

// Trees returns the registered trees, oldest first.
func (c *Collection) Trees() []*Tree {
	c.mutex.RLock()
	trees := make([]*Tree, 0, len(c.trees))
	for t := range c.trees {
		trees = append(trees, t)
	}
	c.mutex.RUnlock()

	sort.Slice(trees, func(i, j int) bool {
		return trees[i].seq < trees[j].seq
	})
	return trees
}

// CellHeightChanged forwards a height change to every registered tree.
func (c *Collection) CellHeightChanged(m HeightMap, x1, y1, x2, y2 int) {
	for _, t := range c.Trees() {
		t.CellHeightChanged(m, x1, y1, x2, y2)
	}
}

// CellTextureChanged forwards a texture change to every registered tree.
func (c *Collection) CellTextureChanged(m TextureMap, x1, y1, x2, y2 int) {
	for _, t := range c.Trees() {
		t.CellTextureChanged(m, x1, y1, x2, y2)
	}
}

// CellUnitsChanged forwards a unit change to every registered tree.
func (c *Collection) CellUnitsChanged(u UnitLookup, x1, y1, x2, y2 int) {
	for _, t := range c.Trees() {
		t.CellUnitsChanged(u, x1, y1, x2, y2)
	}
}

// Close removes the collection from its registry. Its trees are left
// untouched.
func (c *Collection) Close() {
	if c.registry != nil {
		c.registry.UnregisterCollection(c)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	for t := range c.trees {
		t.removeCollection(c)
	}
	c.trees = make(map[*Tree]struct{})
	instrumentCollectionTrees(c.Name, 0)
}
