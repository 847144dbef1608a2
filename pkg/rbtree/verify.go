package rbtree

// Verify checks every red-black property, key ordering and parent links.
// It returns nil or the first *InvariantError found. It never modifies
// the tree.
func (tree *RBTree) Verify() error {
	_, err := tree.BlackHeight()

	return err
}

// BlackHeight verifies the tree like Verify and returns the number of black
// nodes on any root to leaf path, counting the absent leaf. An empty tree
// has black height 1.
func (tree *RBTree) BlackHeight() (int, error) {
	if tree.root == 0 {
		if tree.count != 0 {
			return 0, &InvariantError{Invariant: InvariantCount}
		}

		return 1, nil
	}

	alloc := tree.storage()
	root := &alloc[tree.root]

	if root.color != Black {
		return 0, violation(InvariantRootBlack, root.item.Key)
	}

	if root.parent != 0 {
		return 0, violation(InvariantParentLink, root.item.Key)
	}

	walker := verifier{alloc: alloc, limit: tree.count}

	height, err := walker.walk(tree.root, 0, bounds{})
	if err != nil {
		return 0, err
	}

	if walker.visited != tree.count {
		return 0, &InvariantError{Invariant: InvariantCount}
	}

	return height, nil
}

type bounds struct {
	lo, hi       uint32
	hasLo, hasHi bool
}

type verifier struct {
	alloc   []node
	limit   int
	visited int
}

func (v *verifier) walk(nodeIdx uint32, depth int, keyRange bounds) (int, error) {
	if nodeIdx == 0 {
		return 1, nil
	}

	v.visited++
	// More nodes or deeper paths than the tree holds means a cycle.
	if v.visited > v.limit || depth >= v.limit {
		return 0, &InvariantError{Invariant: InvariantDepth}
	}

	if int(nodeIdx) >= len(v.alloc) {
		return 0, &InvariantError{Invariant: InvariantParentLink}
	}

	nd := &v.alloc[nodeIdx]
	key := nd.item.Key

	if nd.color != Red && nd.color != Black {
		return 0, violation(InvariantColor, key)
	}

	if (keyRange.hasLo && key <= keyRange.lo) || (keyRange.hasHi && key >= keyRange.hi) {
		return 0, violation(InvariantOrder, key)
	}

	for _, child := range [2]uint32{nd.left, nd.right} {
		if child == 0 {
			continue
		}

		if int(child) >= len(v.alloc) || v.alloc[child].parent != nodeIdx {
			return 0, violation(InvariantParentLink, key)
		}

		if nd.color == Red && v.alloc[child].color == Red {
			return 0, violation(InvariantRedRed, key)
		}
	}

	leftHeight, err := v.walk(nd.left, depth+1, bounds{lo: keyRange.lo, hasLo: keyRange.hasLo, hi: key, hasHi: true})
	if err != nil {
		return 0, err
	}

	rightHeight, err := v.walk(nd.right, depth+1, bounds{lo: key, hasLo: true, hi: keyRange.hi, hasHi: keyRange.hasHi})
	if err != nil {
		return 0, err
	}

	if leftHeight != rightHeight {
		return 0, violation(InvariantBlackHeight, key)
	}

	if nd.color == Black {
		return leftHeight + 1, nil
	}

	return leftHeight, nil
}
