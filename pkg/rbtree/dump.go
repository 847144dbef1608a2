package rbtree

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// dumpIndent is the indentation added per tree level by Dump.
const dumpIndent = 8

// Renderer receives one node per call from Render.
type Renderer func(depth int, item Item, color Color)

// Render visits every node, right subtree first, so that printing one line
// per call yields the tree rotated a quarter turn counterclockwise.
func (tree *RBTree) Render(fn Renderer) {
	if tree.root == 0 {
		return
	}

	type frame struct {
		nodeIdx uint32
		depth   int
		visited bool
	}

	alloc := tree.storage()
	stack := make([]frame, 0, tree.maxDepth())
	stack = append(stack, frame{nodeIdx: tree.root})

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nd := &alloc[top.nodeIdx]

		if top.visited {
			fn(top.depth, nd.item, nd.color)

			if nd.left != 0 {
				stack = append(stack, frame{nodeIdx: nd.left, depth: top.depth + 1})
			}

			continue
		}

		stack = append(stack, frame{nodeIdx: top.nodeIdx, depth: top.depth, visited: true})

		if nd.right != 0 {
			stack = append(stack, frame{nodeIdx: nd.right, depth: top.depth + 1})
		}
	}
}

// FormatNode renders one node the way Dump prints it, without indentation.
func FormatNode(item Item, color Color) string {
	return fmt.Sprintf("[%s]%05d:%05d", color, item.Key, item.Value)
}

// Dump writes the tree sideways, one node per line.
func (tree *RBTree) Dump(w io.Writer) error {
	buf := bufio.NewWriter(w)

	var err error

	tree.Render(func(depth int, item Item, color Color) {
		if err != nil {
			return
		}

		_, err = fmt.Fprintf(buf, "%s%s\n", strings.Repeat(" ", depth*dumpIndent), FormatNode(item, color))
	})

	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}

	return buf.Flush()
}
