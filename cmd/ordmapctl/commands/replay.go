package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/ordmap/internal/workload"
	"github.com/Sumatoshi-tech/ordmap/pkg/observability"
	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

func newReplayCommand(app *App) *cobra.Command {
	var verifyEvery int

	cmd := &cobra.Command{
		Use:   "replay <oplog>",
		Short: "Replay a recorded operation log",
		Long: `Replay an operation log written by "workout --trace", checking every
result against a reference map and verifying the tree after each operation.
Use the same --max-nodes or --memory-limit as the recording run.`,
		Args: cobra.ExactArgs(1),
		RunE: app.runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			return app.runReplay(ctx, cmd, args[0], verifyEvery)
		}),
	}

	cmd.Flags().IntVar(&verifyEvery, "verify-every", 1, "verify the tree every N operations (0 = only at the end)")
	addCapacityFlags(cmd)
	cmd.Flags().String("yaml", "", "write the YAML report to this file")

	return cmd
}

func (a *App) runReplay(ctx context.Context, cmd *cobra.Command, path string, verifyEvery int) error {
	logger := a.logger()

	limit, err := nodeLimit(a.cfg.Workout)
	if err != nil {
		return err
	}

	ctx, span := a.providers.Tracer.Start(ctx, "ordmapctl.replay", trace.WithAttributes(
		attribute.String("replay.path", path),
		attribute.Int("replay.verify_every", verifyEvery),
	))
	defer span.End()

	metrics, err := observability.NewTreeMetrics(a.providers.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open oplog: %w", err)
	}
	defer file.Close()

	tree := rbtree.New(rbtree.WithLimit(limit))

	result, runErr := workload.Replay(ctx, tree, file, workload.Options{
		VerifyEvery: verifyEvery,
		Recorder:    metrics,
		Logger:      logger,
	})
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}

	if result == nil {
		return runErr
	}

	logger.InfoContext(ctx, "replay finished", slog.String("path", path), slog.Int("ops", result.Ops))

	reportErr := a.writeReports(cmd.OutOrStdout(), "ordmap replay "+filepath.Base(path), result)

	return errors.Join(runErr, reportErr)
}
