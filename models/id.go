package models

import (
	"sort"
	"sync"
)

// SequentialIDGenerator hands out increasing ids starting at 1. Released ids
// are handed out again, lowest first, before new ones.
type SequentialIDGenerator struct {
	mutex    sync.Mutex
	last     uint32
	reusable []uint32
}

// New returns an unused id.
func (g *SequentialIDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if len(g.reusable) != 0 {
		id := g.reusable[0]
		g.reusable = g.reusable[1:]
		return id
	}

	g.last++
	return g.last
}

// Reuse marks the given id as available again. Ids that were never handed out
// or that are already available are ignored.
func (g *SequentialIDGenerator) Reuse(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if id == 0 || id > g.last {
		return
	}

	i := sort.Search(len(g.reusable), func(i int) bool {
		return g.reusable[i] >= id
	})
	if i < len(g.reusable) && g.reusable[i] == id {
		return
	}

	g.reusable = append(g.reusable, 0)
	copy(g.reusable[i+1:], g.reusable[i:])
	g.reusable[i] = id
}
