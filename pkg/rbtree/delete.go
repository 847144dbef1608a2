package rbtree

import "fmt"

// Delete removes key from the tree. It returns an error wrapping ErrNotFound
// and leaves the tree untouched when the key is absent.
func (tree *RBTree) Delete(key uint32) error {
	nodeIdx := tree.lookup(key)
	if nodeIdx == 0 {
		return fmt.Errorf("delete %d: %w", key, ErrNotFound)
	}

	tree.doDelete(nodeIdx)

	return nil
}

// doDelete splices nodeIdx out, replacing it with its in-order successor when
// it has two children, then restores the black height on the path that lost
// a black node.
func (tree *RBTree) doDelete(nodeIdx uint32) {
	alloc := tree.storage()
	target := &alloc[nodeIdx]
	removedColor := target.color

	var gap, gapParent uint32

	switch {
	case target.left == 0:
		gap = target.right
		gapParent = target.parent
		tree.transplant(nodeIdx, gap)
	case target.right == 0:
		gap = target.left
		gapParent = target.parent
		tree.transplant(nodeIdx, gap)
	default:
		successor := minimum(target.right, alloc)
		removedColor = alloc[successor].color
		gap = alloc[successor].right

		if alloc[successor].parent == nodeIdx {
			gapParent = successor
		} else {
			gapParent = alloc[successor].parent
			tree.transplant(successor, gap)
			alloc[successor].right = target.right
			alloc[alloc[successor].right].parent = successor
		}

		tree.transplant(nodeIdx, successor)
		alloc[successor].left = target.left
		alloc[alloc[successor].left].parent = successor
		alloc[successor].color = target.color
	}

	tree.allocator.free(nodeIdx)
	tree.count--

	if removedColor == Black {
		tree.deleteFixup(gap, gapParent)
	}
}

// deleteFixup repairs a missing black on the path through gap. gap may be 0,
// which is why its parent travels alongside it.
func (tree *RBTree) deleteFixup(gap, parent uint32) {
	alloc := tree.storage()

	for gap != tree.root && getColor(gap, alloc) == Black {
		gapIsLeft := gap == alloc[parent].left

		sibling := alloc[parent].left
		if gapIsLeft {
			sibling = alloc[parent].right
		}
		// The gap path is one black short, so the sibling subtree is not empty.
		doAssert(sibling != 0)

		if alloc[sibling].color == Red {
			tree.stats.DeleteCases[0]++
			alloc[sibling].color = Black
			alloc[parent].color = Red
			tree.rotate(parent, gapIsLeft)

			sibling = alloc[parent].left
			if gapIsLeft {
				sibling = alloc[parent].right
			}
		}

		near, far := alloc[sibling].right, alloc[sibling].left
		if gapIsLeft {
			near, far = alloc[sibling].left, alloc[sibling].right
		}

		if getColor(near, alloc) == Black && getColor(far, alloc) == Black {
			tree.stats.DeleteCases[1]++
			alloc[sibling].color = Red
			gap = parent
			parent = alloc[gap].parent

			continue
		}

		if getColor(far, alloc) == Black {
			tree.stats.DeleteCases[2]++
			alloc[near].color = Black
			alloc[sibling].color = Red
			tree.rotate(sibling, !gapIsLeft)

			sibling = alloc[parent].left
			if gapIsLeft {
				sibling = alloc[parent].right
			}

			far = alloc[sibling].left
			if gapIsLeft {
				far = alloc[sibling].right
			}
		}

		tree.stats.DeleteCases[3]++
		alloc[sibling].color = alloc[parent].color
		alloc[parent].color = Black
		alloc[far].color = Black
		tree.rotate(parent, gapIsLeft)

		gap = tree.root
	}

	if gap != 0 {
		alloc[gap].color = Black
	}
}
