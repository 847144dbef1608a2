package rbtree

// rotate performs a tree rotation around pivot. toLeft=true rotates left,
// toLeft=false rotates right. Colors are left untouched.
//
// Left rotation:
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
// Right rotation:
//
//	    Y            X
//	  X   C  =>    A   Y
//	A B              B C
//
//nolint:dupword // ASCII art diagrams contain intentional repeated letters.
func (tree *RBTree) rotate(pivot uint32, toLeft bool) {
	alloc := tree.storage()
	tree.stats.Rotations++

	// The child that moves up sits on the side opposite to the rotation.
	var child, inner uint32
	if toLeft {
		child = alloc[pivot].right
		doAssert(child != 0)
		inner = alloc[child].left
		alloc[pivot].right = inner
	} else {
		child = alloc[pivot].left
		doAssert(child != 0)
		inner = alloc[child].right
		alloc[pivot].left = inner
	}

	if inner != 0 {
		alloc[inner].parent = pivot
	}

	tree.transplant(pivot, child)

	if toLeft {
		alloc[child].left = pivot
	} else {
		alloc[child].right = pivot
	}

	alloc[pivot].parent = child
}

func (tree *RBTree) rotateLeft(nodeIdx uint32) {
	tree.rotate(nodeIdx, true)
}

func (tree *RBTree) rotateRight(nodeIdx uint32) {
	tree.rotate(nodeIdx, false)
}

// transplant puts newn where oldn hangs from its parent, or at the root.
// newn may be 0. The links of oldn itself are not touched.
func (tree *RBTree) transplant(oldn, newn uint32) {
	alloc := tree.storage()
	parent := alloc[oldn].parent

	switch {
	case parent == 0:
		tree.root = newn
	case oldn == alloc[parent].left:
		alloc[parent].left = newn
	default:
		alloc[parent].right = newn
	}

	if newn != 0 {
		alloc[newn].parent = parent
	}
}
