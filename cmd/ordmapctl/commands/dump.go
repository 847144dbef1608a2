package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

const dumpIndent = "        "

func newDumpCommand(app *App) *cobra.Command {
	var deletes []uint

	cmd := &cobra.Command{
		Use:   "dump <key[:value]>...",
		Short: "Build a tree from keys and print it",
		Long: `Insert the given keys in order, delete the --delete keys, verify the
result and print the tree sideways with red and black nodes colored.
A key without a value stores the key itself as the value.

Examples:
  ordmapctl dump 10 20 30
  ordmapctl dump 1 2 3 4 5 6 7 --delete 4`,
		Args: cobra.MinimumNArgs(1),
		RunE: app.runE(func(_ context.Context, cmd *cobra.Command, args []string) error {
			return runDump(cmd.OutOrStdout(), args, deletes)
		}),
	}

	cmd.Flags().UintSliceVar(&deletes, "delete", nil, "keys to delete after inserting")

	return cmd
}

func runDump(out io.Writer, args []string, deletes []uint) error {
	tree := rbtree.New()

	for _, arg := range args {
		item, err := parseItem(arg)
		if err != nil {
			return err
		}

		err = tree.Insert(item.Key, item.Value)
		if err != nil {
			return err
		}
	}

	for _, key := range deletes {
		if key > uint(^uint32(0)) {
			return fmt.Errorf("delete %d: %w", key, strconv.ErrRange)
		}

		err := tree.Delete(uint32(key))
		if err != nil {
			return err
		}
	}

	blackHeight, err := tree.BlackHeight()
	if err != nil {
		return err
	}

	printTree(out, tree)
	fmt.Fprintf(out, "len=%d height=%d black_height=%d\n", tree.Len(), tree.Height(), blackHeight)

	return nil
}

// parseItem accepts "key" or "key:value".
func parseItem(arg string) (rbtree.Item, error) {
	keyText, valueText, hasValue := strings.Cut(arg, ":")

	key, err := strconv.ParseUint(keyText, 10, 32)
	if err != nil {
		return rbtree.Item{}, fmt.Errorf("parse key %q: %w", arg, err)
	}

	value := key

	if hasValue {
		value, err = strconv.ParseUint(valueText, 10, 32)
		if err != nil {
			return rbtree.Item{}, fmt.Errorf("parse value %q: %w", arg, err)
		}
	}

	return rbtree.Item{Key: uint32(key), Value: uint32(value)}, nil
}

func printTree(out io.Writer, tree *rbtree.RBTree) {
	red := color.New(color.FgRed, color.Bold)
	black := color.New(color.Bold)

	tree.Render(func(depth int, item rbtree.Item, nodeColor rbtree.Color) {
		paint := black
		if nodeColor == rbtree.Red {
			paint = red
		}

		fmt.Fprint(out, strings.Repeat(dumpIndent, depth))
		paint.Fprintln(out, rbtree.FormatNode(item, nodeColor))
	})
}
