package quadtree

import (
	"sync"
	"sync/atomic"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
)

// Kind describes which aggregates the nodes of a tree maintain.
type Kind int

const (
	// KindGround trees only track ground heights.
	KindGround Kind = iota

	// KindCanvas trees track ground heights, unit heights and their union.
	KindCanvas
)

func (k Kind) String() string {
	switch k {
	case KindGround:
		return "ground"
	case KindCanvas:
		return "canvas"
	default:
		return "unknown"
	}
}

var treeSeq atomic.Uint64

// Tree is a quadtree over a width x height cell grid. Its nodes live in a
// single arena and are addressed with NodeID handles. A tree is not safe for
// concurrent mutation.
type Tree struct {
	ID string

	kind     Kind
	width    int
	height   int
	nodes    []Node
	maxDepth int
	seq      uint64

	registry     *Registry
	textureHooks []TextureHook
	released     bool

	collectionsMutex sync.Mutex
	collections      map[*Collection]struct{}
}

// New builds the complete tree covering a width x height grid.
func New(kind Kind, width, height int) (*Tree, error) {
	if err := CheckDimensions(width, height); err != nil {
		logs.Warn(err)
		return nil, err
	}

	t := &Tree{
		ID:     uuid.NewString(),
		kind:   kind,
		width:  width,
		height: height,
		nodes:  make([]Node, 0, estimateNodeCount(width, height)),
		seq:    treeSeq.Add(1),
	}

	root := t.addNode(Rect{Left: 0, Top: 0, Right: width - 1, Bottom: height - 1}, 0)
	if err := t.createChilds(root); err != nil {
		return nil, err
	}

	instrumentTreeCreated(kind)
	return t, nil
}

// NewClamped builds a tree like New but replaces a width or height lower than
// 1 with 1. Dimensions above MaxDimension are still an error.
func NewClamped(kind Kind, width, height int) (*Tree, error) {
	if width < 1 || height < 1 {
		logs.WithTag("width", width).
			WithTag("height", height).
			Error(errors.New("invalid tree dimensions, clamping to 1").
				WithType(ErrTypeInvalidDimensions))

		width = max(width, 1)
		height = max(height, 1)
	}
	return New(kind, width, height)
}

func estimateNodeCount(width, height int) int {
	n := width * height
	return n + n/3 + 1
}

func (t *Tree) addNode(r Rect, depth int) NodeID {
	t.nodes = append(t.nodes, Node{
		Rect:     r,
		Depth:    depth,
		children: [4]NodeID{NoNode, NoNode, NoNode, NoNode},
	})

	if depth > t.maxDepth {
		t.maxDepth = depth
	}
	return NodeID(len(t.nodes) - 1)
}

func (t *Tree) createChilds(id NodeID) error {
	r := t.nodes[id].Rect
	depth := t.nodes[id].Depth

	if r.Left > r.Right || r.Top > r.Bottom {
		return errors.New("inverted node rectangle").
			WithType(ErrTypeInvalidGeometry).
			WithTag("rect", r)
	}

	if r.Left < 0 || r.Top < 0 || r.Right >= t.width || r.Bottom >= t.height {
		return errors.New("node rectangle out of the map").
			WithType(ErrTypeInvalidGeometry).
			WithTag("rect", r).
			WithTag("width", t.width).
			WithTag("height", t.height)
	}

	if r.IsLeaf() {
		return nil
	}

	quads, exists := r.quadrants()
	for i, q := range quads {
		if !exists[i] {
			continue
		}

		child := t.addNode(q, depth+1)
		t.nodes[id].children[i] = child

		if err := t.createChilds(child); err != nil {
			return err
		}
	}
	return nil
}

// Kind returns the kind of the tree.
func (t *Tree) Kind() Kind {
	return t.kind
}

// Width returns the number of columns of the grid covered by the tree.
func (t *Tree) Width() int {
	return t.width
}

// Height returns the number of rows of the grid covered by the tree.
func (t *Tree) Height() int {
	return t.height
}

// Root returns the root handle, or NoNode once the tree is released.
func (t *Tree) Root() NodeID {
	if t.released || len(t.nodes) == 0 {
		return NoNode
	}
	return 0
}

// Node returns the node with the given handle. It returns nil for NoNode, an
// unknown handle or a released tree. The returned pointer must not be kept
// after the tree is released.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Children returns the child handles of the given node.
func (t *Tree) Children(id NodeID) [4]NodeID {
	n := t.Node(id)
	if n == nil {
		return [4]NodeID{NoNode, NoNode, NoNode, NoNode}
	}
	return n.children
}

// NodeCount returns the number of nodes in the tree.
func (t *Tree) NodeCount() int {
	return len(t.nodes)
}

// MaxDepth returns the depth of the deepest node.
func (t *Tree) MaxDepth() int {
	return t.maxDepth
}

// Walk visits the nodes in pre-order. Children of a node are skipped when fn
// returns false.
func (t *Tree) Walk(fn func(id NodeID, n *Node) bool) {
	if root := t.Root(); root != NoNode {
		t.walk(root, fn)
	}
}

func (t *Tree) walk(id NodeID, fn func(NodeID, *Node) bool) {
	n := &t.nodes[id]
	if !fn(id, n) {
		return
	}

	for _, c := range n.children {
		if c != NoNode {
			t.walk(c, fn)
		}
	}
}

// Leaves returns the handles of all the leaves, in pre-order.
func (t *Tree) Leaves() []NodeID {
	leaves := make([]NodeID, 0, t.width*t.height)

	t.Walk(func(id NodeID, n *Node) bool {
		if n.IsLeaf() {
			leaves = append(leaves, id)
		}
		return true
	})
	return leaves
}

// LeafAt returns the leaf covering the cell (x, y), or NoNode when the cell is
// outside of the map.
func (t *Tree) LeafAt(x, y int) NodeID {
	id := t.Root()
	if id == NoNode || !t.nodes[id].ContainsCell(x, y) {
		return NoNode
	}

	for !t.nodes[id].IsLeaf() {
		next := NoNode
		for _, c := range t.nodes[id].children {
			if c != NoNode && t.nodes[c].ContainsCell(x, y) {
				next = c
				break
			}
		}

		if next == NoNode {
			return NoNode
		}
		id = next
	}
	return id
}

// Find returns the smallest node that fully contains the given rectangle, or
// NoNode when the rectangle is not inside the map.
func (t *Tree) Find(r Rect) NodeID {
	id := t.Root()
	if id == NoNode || !t.nodes[id].Contains(r.Left, r.Top, r.Right, r.Bottom) {
		return NoNode
	}

	for {
		next := NoNode
		for _, c := range t.nodes[id].children {
			if c != NoNode && t.nodes[c].Contains(r.Left, r.Top, r.Right, r.Bottom) {
				next = c
				break
			}
		}

		if next == NoNode {
			return id
		}
		id = next
	}
}

// OnTextureChanged registers a function called for every node touched by
// CellTextureChanged, children before parents.
func (t *Tree) OnTextureChanged(h TextureHook) {
	t.textureHooks = append(t.textureHooks, h)
}

// Release removes the tree from every collection holding it and from every
// collection of its registry, then drops its nodes. Any later operation on the
// tree is a no-op.
func (t *Tree) Release() {
	if t.released {
		return
	}

	if t.registry != nil {
		t.registry.UnregisterTree(t)
	}
	for _, c := range t.Collections() {
		c.UnregisterTree(t)
	}

	t.released = true
	t.nodes = nil
	t.textureHooks = nil
	instrumentTreeReleased(t.kind)

	logs.WithTag("tree_id", t.ID).
		WithTag("kind", t.kind.String()).
		Debug("tree released")
}

// Released reports whether the tree has been released.
func (t *Tree) Released() bool {
	return t.released
}

// Collections returns the collections the tree is registered in.
func (t *Tree) Collections() []*Collection {
	t.collectionsMutex.Lock()
	defer t.collectionsMutex.Unlock()

	collections := make([]*Collection, 0, len(t.collections))
	for c := range t.collections {
		collections = append(collections, c)
	}
	return collections
}

func (t *Tree) addCollection(c *Collection) {
	t.collectionsMutex.Lock()
	defer t.collectionsMutex.Unlock()

	if t.collections == nil {
		t.collections = make(map[*Collection]struct{})
	}
	t.collections[c] = struct{}{}
}

func (t *Tree) removeCollection(c *Collection) {
	t.collectionsMutex.Lock()
	defer t.collectionsMutex.Unlock()

	delete(t.collections, c)
}
