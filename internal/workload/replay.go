package workload

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Sumatoshi-tech/ordmap/internal/oplog"
	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

// Replay applies every operation of a recorded log to tree.
func Replay(ctx context.Context, tree *rbtree.RBTree, src io.Reader, opts Options) (*Result, error) {
	reader, err := oplog.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("open oplog: %w", err)
	}

	runner := NewRunner(tree, opts)
	runner.logger.DebugContext(ctx, "replaying oplog", slog.Bool("compressed", reader.Compressed()))

	return runner.Run(ctx, reader)
}
