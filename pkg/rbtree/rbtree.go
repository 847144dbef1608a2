// Package rbtree implements an ordered map from uint32 keys to uint32 values
// on top of a red-black tree whose nodes live in an index-addressed Allocator.
package rbtree

// Item is the object stored in each tree node.
type Item struct {
	Key   uint32
	Value uint32
}

// Color is the color of a tree node.
type Color uint8

// Node colors. Absent links are always Black.
const (
	Red Color = iota
	Black
)

func (c Color) String() string {
	switch c {
	case Red:
		return "R"
	case Black:
		return "B"
	default:
		return "?"
	}
}

type node struct {
	item                Item
	parent, left, right uint32
	color               Color
}

// Stats counts the structural work done by a tree since it was created.
type Stats struct {
	Rotations   uint64
	InsertCases [3]uint64
	DeleteCases [4]uint64
}

// RBTree is a red-black tree keyed by Item.Key.
//
// A tree is not safe for concurrent use. Trees sharing one Allocator must
// not be mutated concurrently either.
type RBTree struct {
	// Nodes allocator.
	allocator *Allocator

	// Root of the tree.
	root uint32

	// Number of nodes under root, including the root.
	count int

	stats Stats
}

// NewRBTree creates a new red-black binary tree bound to the allocator.
func NewRBTree(allocator *Allocator) *RBTree {
	return &RBTree{allocator: allocator}
}

// New creates an empty tree with its own allocator.
func New(opts ...Option) *RBTree {
	allocator := NewAllocator()

	for _, opt := range opts {
		opt(allocator)
	}

	return NewRBTree(allocator)
}

// Option configures the allocator created by New.
type Option func(*Allocator)

// WithLimit caps the number of nodes the tree can hold.
func WithLimit(limit int) Option {
	return func(allocator *Allocator) {
		allocator.Limit = limit
	}
}

// WithCapacity preallocates room for n nodes.
func WithCapacity(n int) Option {
	return func(allocator *Allocator) {
		if n > 0 {
			allocator.storage = make([]node, 0, n+1)
		}
	}
}

func (tree *RBTree) storage() []node {
	return tree.allocator.storage
}

// Allocator returns the bound nodes allocator.
func (tree *RBTree) Allocator() *Allocator {
	return tree.allocator
}

// Len returns the number of elements in the tree.
func (tree *RBTree) Len() int {
	return tree.count
}

// Stats returns the rotation and fixup counters.
func (tree *RBTree) Stats() Stats {
	return tree.stats
}

// Root returns the item stored at the root and its color.
func (tree *RBTree) Root() (Item, Color, bool) {
	if tree.root == 0 {
		return Item{}, Black, false
	}

	nd := tree.storage()[tree.root]

	return nd.item, nd.color, true
}

// Find returns the item stored under key, or ErrNotFound.
func (tree *RBTree) Find(key uint32) (Item, error) {
	nodeIdx := tree.lookup(key)
	if nodeIdx == 0 {
		return Item{}, ErrNotFound
	}

	return tree.storage()[nodeIdx].item, nil
}

// Get is a convenience function for finding the value stored under key.
func (tree *RBTree) Get(key uint32) (uint32, bool) {
	nodeIdx := tree.lookup(key)
	if nodeIdx == 0 {
		return 0, false
	}

	return tree.storage()[nodeIdx].item.Value, true
}

func (tree *RBTree) lookup(key uint32) uint32 {
	alloc := tree.storage()
	nodeIdx := tree.root

	for nodeIdx != 0 {
		nd := &alloc[nodeIdx]

		switch {
		case key < nd.item.Key:
			nodeIdx = nd.left
		case key > nd.item.Key:
			nodeIdx = nd.right
		default:
			return nodeIdx
		}
	}

	return 0
}

// Clear removes all the nodes from the tree and returns them to the allocator.
func (tree *RBTree) Clear() {
	if tree.root == 0 {
		return
	}

	alloc := tree.storage()
	stack := make([]uint32, 0, tree.maxDepth())
	stack = append(stack, tree.root)

	for len(stack) > 0 {
		nodeIdx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if left := alloc[nodeIdx].left; left != 0 {
			stack = append(stack, left)
		}

		if right := alloc[nodeIdx].right; right != 0 {
			stack = append(stack, right)
		}

		tree.allocator.free(nodeIdx)
	}

	tree.root = 0
	tree.count = 0
}

// Height returns the number of nodes on the longest root to leaf path.
func (tree *RBTree) Height() int {
	if tree.root == 0 {
		return 0
	}

	type frame struct {
		nodeIdx uint32
		depth   int
	}

	alloc := tree.storage()
	stack := []frame{{tree.root, 1}}
	height := 0

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		height = max(height, top.depth)

		if left := alloc[top.nodeIdx].left; left != 0 {
			stack = append(stack, frame{left, top.depth + 1})
		}

		if right := alloc[top.nodeIdx].right; right != 0 {
			stack = append(stack, frame{right, top.depth + 1})
		}
	}

	return height
}

// maxDepth is the height bound of a valid tree of the current size, used to
// presize traversal stacks.
func (tree *RBTree) maxDepth() int {
	depth := 0
	for n := tree.count + 1; n > 1; n >>= 1 {
		depth++
	}

	return 2*depth + 2
}

// Internal node attribute accessors.
func getColor(nodeIdx uint32, alloc []node) Color {
	if nodeIdx == 0 {
		return Black
	}

	return alloc[nodeIdx].color
}

func isLeftChild(nodeIdx uint32, alloc []node) bool {
	return nodeIdx == alloc[alloc[nodeIdx].parent].left
}

func minimum(nodeIdx uint32, alloc []node) uint32 {
	for alloc[nodeIdx].left != 0 {
		nodeIdx = alloc[nodeIdx].left
	}

	return nodeIdx
}
