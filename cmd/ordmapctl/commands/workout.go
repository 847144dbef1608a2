package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/ordmap/internal/config"
	"github.com/Sumatoshi-tech/ordmap/internal/oplog"
	"github.com/Sumatoshi-tech/ordmap/internal/report"
	"github.com/Sumatoshi-tech/ordmap/internal/workload"
	"github.com/Sumatoshi-tech/ordmap/pkg/observability"
	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
	"github.com/Sumatoshi-tech/ordmap/pkg/safeconv"
)

// ErrMemoryLimitTooSmall indicates a memory limit that cannot hold a single node.
var ErrMemoryLimitTooSmall = errors.New("memory limit too small for a single node")

func newWorkoutCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workout",
		Short: "Run a randomized workload against the tree",
		Long: `Run a seeded random mix of inserts, deletes and finds. Every result is
checked against a reference map and the tree is verified periodically.

Examples:
  ordmapctl workout --ops 1000000 --key-space 4096
  ordmapctl workout --seed 7 --trace run.oplog --chart height.html`,
		Args: cobra.NoArgs,
		RunE: app.runE(app.runWorkout),
	}

	flags := cmd.Flags()
	flags.Int64("seed", config.DefaultWorkoutSeed, "random seed")
	flags.Int("ops", config.DefaultWorkoutOps, "number of operations")
	flags.Uint32("key-space", config.DefaultWorkoutKeySpace, "keys are drawn from [0, key-space)")
	flags.Float64("insert-ratio", config.DefaultWorkoutInsertRatio, "share of inserts")
	flags.Float64("delete-ratio", config.DefaultWorkoutDeleteRatio, "share of deletes")
	flags.Int("verify-every", config.DefaultWorkoutVerifyEvery, "verify the tree every N operations (0 = only at the end)")
	flags.Int("sample-every", config.DefaultWorkoutSampleEvery, "sample tree shape every N operations (0 = never)")
	addCapacityFlags(cmd)
	flags.String("trace", "", "record operations to this oplog file")
	flags.Bool("compress", true, "lz4-compress the oplog")
	flags.String("chart", "", "write an HTML height chart to this file")
	flags.String("yaml", "", "write the YAML report to this file")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address while running (e.g. :9464)")

	return cmd
}

func addCapacityFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-nodes", 0, "cap the number of live nodes (0 = unlimited)")
	cmd.Flags().String("memory-limit", "", "cap the node table size (e.g. 64MiB)")
}

func (a *App) runWorkout(ctx context.Context, cmd *cobra.Command, _ []string) error {
	wcfg := a.cfg.Workout
	logger := a.logger()

	limit, err := nodeLimit(wcfg)
	if err != nil {
		return err
	}

	ctx, span := a.providers.Tracer.Start(ctx, "ordmapctl.workout", trace.WithAttributes(
		attribute.Int64("workout.seed", wcfg.Seed),
		attribute.Int("workout.ops", wcfg.Ops),
		attribute.Int64("workout.key_space", int64(wcfg.KeySpace)),
		attribute.Int("workout.node_limit", limit),
	))
	defer span.End()

	metrics, err := observability.NewTreeMetrics(a.providers.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	opts := workload.Options{
		VerifyEvery: wcfg.VerifyEvery,
		SampleEvery: wcfg.SampleEvery,
		Limit:       wcfg.Ops,
		Recorder:    metrics,
		Logger:      logger,
	}

	closeTrace, err := a.openTrace(&opts)
	if err != nil {
		return err
	}

	tree := rbtree.New(rbtree.WithLimit(limit), rbtree.WithCapacity(workoutCapacity(wcfg, limit)))
	runner := workload.NewRunner(tree, opts)

	stopServer, err := a.serveMetrics(ctx, logger, runner.Ready)
	if err != nil {
		return errors.Join(err, closeTrace())
	}
	defer stopServer()

	logger.InfoContext(ctx, "workout started",
		slog.Int64("seed", wcfg.Seed), slog.Int("ops", wcfg.Ops), slog.Any("key_space", wcfg.KeySpace), slog.Int("node_limit", limit))

	generator := workload.NewGenerator(wcfg.Seed, wcfg.KeySpace, wcfg.InsertRatio, wcfg.DeleteRatio)

	result, runErr := runner.Run(ctx, generator)
	runErr = errors.Join(runErr, closeTrace())

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}

	logger.InfoContext(ctx, "workout finished",
		slog.Int("ops", result.Ops), slog.Int("size", result.FinalSize), slog.Duration("elapsed", result.Elapsed))

	reportErr := a.writeReports(cmd.OutOrStdout(), fmt.Sprintf("ordmap workout (seed %d)", wcfg.Seed), result)

	return errors.Join(runErr, reportErr)
}

// nodeLimit combines max_nodes and memory_limit into one live node cap.
func nodeLimit(wcfg config.WorkoutConfig) (int, error) {
	limit := wcfg.MaxNodes

	memBytes, err := wcfg.MemoryLimitBytes()
	if err != nil {
		return 0, err
	}

	if memBytes == 0 {
		return limit, nil
	}

	// One slot of the table is reserved.
	slots := memBytes / rbtree.NodeBytes
	if slots < 2 {
		return 0, fmt.Errorf("%w: %d bytes", ErrMemoryLimitTooSmall, memBytes)
	}

	byMemory := safeconv.MaxInt
	if slots-1 < uint64(safeconv.MaxInt) {
		byMemory = int(slots - 1) //nolint:gosec // bounded above
	}

	if limit == 0 || byMemory < limit {
		limit = byMemory
	}

	return limit, nil
}

// workoutCapacity sizes the node table for the most keys the run can hold live.
func workoutCapacity(wcfg config.WorkoutConfig, limit int) int {
	capacity := wcfg.Ops
	if uint64(wcfg.KeySpace) < uint64(capacity) {
		capacity = int(wcfg.KeySpace)
	}

	if limit > 0 && limit < capacity {
		capacity = limit
	}

	return capacity
}

func (a *App) serveMetrics(ctx context.Context, logger *slog.Logger, checks ...observability.ReadyCheck) (func(), error) {
	addr := a.cfg.Observability.MetricsAddr
	if addr == "" {
		return func() {}, nil
	}

	srv, err := observability.NewMetricsServer(ctx, observability.ServerConfig{
		Addr:    addr,
		Metrics: a.providers.MetricsHandler,
		Tracer:  a.providers.Tracer,
		Logger:  logger,
		Checks:  checks,
	})
	if err != nil {
		return nil, fmt.Errorf("start metrics server: %w", err)
	}

	logger.InfoContext(ctx, "serving metrics", slog.String("addr", "http://"+srv.Addr()+"/metrics"))

	return func() {
		closeErr := srv.Close(context.WithoutCancel(ctx))
		if closeErr != nil {
			logger.WarnContext(ctx, "metrics server shutdown", slog.Any("error", closeErr))
		}
	}, nil
}

// openTrace attaches an oplog writer to opts when a trace path is configured.
func (a *App) openTrace(opts *workload.Options) (func() error, error) {
	path := a.cfg.Trace.Path
	if path == "" {
		return func() error { return nil }, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace: %w", err)
	}

	writer, err := oplog.NewWriter(file, a.cfg.Trace.Compress)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open trace: %w", err), file.Close())
	}

	opts.Trace = writer

	return func() error {
		return errors.Join(writer.Close(), file.Close())
	}, nil
}

func (a *App) writeReports(out io.Writer, title string, result *workload.Result) error {
	err := report.WriteTable(out, title, result)
	if err != nil {
		return err
	}

	if path := a.cfg.Report.YAML; path != "" {
		err = writeFile(path, func(w io.Writer) error {
			return report.WriteYAML(w, title, result, time.Now())
		})
		if err != nil {
			return err
		}
	}

	if path := a.cfg.Report.Chart; path != "" {
		return writeFile(path, func(w io.Writer) error {
			return report.WriteCharts(w, title, result)
		})
	}

	return nil
}

func writeFile(path string, write func(w io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	writeErr := write(file)
	closeErr := file.Close()

	return errors.Join(writeErr, closeErr)
}
