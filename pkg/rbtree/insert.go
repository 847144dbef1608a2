package rbtree

import "fmt"

// Insert stores value under key. An existing key has its value overwritten
// without any structural change. When the allocator cannot provide a node
// the tree is left untouched and the error wraps ErrAllocation.
func (tree *RBTree) Insert(key, value uint32) error {
	alloc := tree.storage()
	parent := uint32(0)
	nodeIdx := tree.root
	goLeft := false

	for nodeIdx != 0 {
		nd := &alloc[nodeIdx]
		parent = nodeIdx

		switch {
		case key < nd.item.Key:
			nodeIdx = nd.left
			goLeft = true
		case key > nd.item.Key:
			nodeIdx = nd.right
			goLeft = false
		default:
			nd.item.Value = value

			return nil
		}
	}

	newIdx, err := tree.allocator.malloc()
	if err != nil {
		return fmt.Errorf("insert %d: %w", key, err)
	}

	// malloc may have grown the slot table.
	alloc = tree.storage()
	alloc[newIdx] = node{item: Item{Key: key, Value: value}, parent: parent, color: Red}

	switch {
	case parent == 0:
		tree.root = newIdx
	case goLeft:
		alloc[parent].left = newIdx
	default:
		alloc[parent].right = newIdx
	}

	tree.count++
	tree.insertFixup(newIdx)

	return nil
}

func (tree *RBTree) insertFixup(nodeIdx uint32) {
	alloc := tree.storage()

	for getColor(alloc[nodeIdx].parent, alloc) == Red {
		parent := alloc[nodeIdx].parent
		grandparent := alloc[parent].parent
		// A red parent is never the root, so the grandparent exists.
		doAssert(grandparent != 0)

		parentIsLeft := parent == alloc[grandparent].left

		aunt := alloc[grandparent].left
		if parentIsLeft {
			aunt = alloc[grandparent].right
		}

		if getColor(aunt, alloc) == Red {
			tree.stats.InsertCases[0]++
			alloc[parent].color = Black
			alloc[aunt].color = Black
			alloc[grandparent].color = Red
			nodeIdx = grandparent

			continue
		}

		inner := nodeIdx == alloc[parent].right
		if !parentIsLeft {
			inner = nodeIdx == alloc[parent].left
		}

		if inner {
			tree.stats.InsertCases[1]++
			nodeIdx = parent
			tree.rotate(nodeIdx, parentIsLeft)
			parent = alloc[nodeIdx].parent
		}

		tree.stats.InsertCases[2]++
		alloc[parent].color = Black
		alloc[grandparent].color = Red
		tree.rotate(grandparent, !parentIsLeft)
	}

	alloc[tree.root].color = Black
}
