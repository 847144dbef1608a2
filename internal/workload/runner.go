package workload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Sumatoshi-tech/ordmap/internal/oplog"
	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

// Operation outcomes reported to the Recorder.
const (
	OutcomeOK           = "ok"
	OutcomeOverwrite    = "overwrite"
	OutcomeNotFound     = "not_found"
	OutcomeAllocFailure = "alloc_failure"
)

// Recorder receives per-operation telemetry. *observability.TreeMetrics
// satisfies it.
type Recorder interface {
	RecordOp(ctx context.Context, op, outcome string, duration time.Duration)
	RecordShape(ctx context.Context, size, height int)
	RecordFixups(ctx context.Context, fixupCase string, n int64)
}

// OpWriter records applied operations. *oplog.Writer satisfies it.
type OpWriter interface {
	Write(op oplog.Op) error
}

// Options tune a Runner. The zero value verifies only at the end.
type Options struct {
	// VerifyEvery runs the full verifier after every n operations.
	VerifyEvery int
	// SampleEvery records a shape Sample after every n operations.
	SampleEvery int
	// Limit caps the number of operations taken from the source. Zero drains it.
	Limit int

	Trace    OpWriter
	Recorder Recorder
	Logger   *slog.Logger
}

// Sample is a snapshot of the tree shape.
type Sample struct {
	Seq    int     `yaml:"seq"`
	Size   int     `yaml:"size"`
	Height int     `yaml:"height"`
	Bound  float64 `yaml:"bound"`
}

// Result summarizes a run.
type Result struct {
	Ops           int           `yaml:"ops"`
	Inserts       int           `yaml:"inserts"`
	Overwrites    int           `yaml:"overwrites"`
	Deletes       int           `yaml:"deletes"`
	DeleteMisses  int           `yaml:"delete_misses"`
	Finds         int           `yaml:"finds"`
	FindMisses    int           `yaml:"find_misses"`
	AllocFailures int           `yaml:"alloc_failures"`
	Verifications int           `yaml:"verifications"`
	FinalSize     int           `yaml:"final_size"`
	FinalHeight   int           `yaml:"final_height"`
	BlackHeight   int           `yaml:"black_height"`
	ArenaSlots    int           `yaml:"arena_slots"`
	ArenaBytes    uint64        `yaml:"arena_bytes"`
	Stats         rbtree.Stats  `yaml:"stats"`
	Samples       []Sample      `yaml:"samples"`
	Elapsed       time.Duration `yaml:"elapsed"`
}

// Runner applies operations to a tree and to a reference map side by side.
type Runner struct {
	tree     *rbtree.RBTree
	expected map[uint32]uint32
	opts     Options
	logger   *slog.Logger
	result   Result
	reported rbtree.Stats
	failed   atomic.Bool
}

// NewRunner creates a Runner for tree. Keys already in the tree become part
// of the reference map.
func NewRunner(tree *rbtree.RBTree, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	expected := make(map[uint32]uint32, tree.Len())
	tree.Render(func(_ int, item rbtree.Item, _ rbtree.Color) {
		expected[item.Key] = item.Value
	})

	return &Runner{
		tree:     tree,
		expected: expected,
		opts:     opts,
		logger:   logger,
		reported: tree.Stats(),
	}
}

// HeightBound is the maximum height of a red-black tree holding n keys.
func HeightBound(n int) float64 {
	return 2 * math.Log2(float64(n)+1)
}

// Run drains source, checking every result, and returns the summary. The
// returned Result is valid even when an error is returned.
func (r *Runner) Run(ctx context.Context, source Source) (*Result, error) {
	start := time.Now()
	err := r.run(ctx, source)

	if err == nil {
		err = r.verify(ctx)
	}

	if err != nil {
		r.failed.Store(true)
	}

	r.finish(ctx)
	r.result.Elapsed = time.Since(start)

	return &r.result, err
}

// Ready reports ErrRunFailed once Run has stopped on an error. It is safe to
// call from other goroutines, e.g. a readiness check.
func (r *Runner) Ready(_ context.Context) error {
	if r.failed.Load() {
		return ErrRunFailed
	}

	return nil
}

func (r *Runner) run(ctx context.Context, source Source) error {
	for r.opts.Limit <= 0 || r.result.Ops < r.opts.Limit {
		err := ctx.Err()
		if err != nil {
			return fmt.Errorf("after %d ops: %w", r.result.Ops, err)
		}

		op, err := source.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("next op: %w", err)
		}

		err = r.Apply(ctx, op)
		if err != nil {
			return err
		}
	}

	return nil
}

// Apply runs a single operation with all configured checks.
func (r *Runner) Apply(ctx context.Context, op oplog.Op) error {
	if r.opts.Trace != nil {
		err := r.opts.Trace.Write(op)
		if err != nil {
			return fmt.Errorf("trace op: %w", err)
		}
	}

	seq := r.result.Ops
	r.result.Ops++

	started := time.Now()

	outcome, err := r.apply(seq, op)
	if err != nil {
		r.logger.ErrorContext(ctx, "operation diverged",
			slog.Int("seq", seq), slog.String("op", op.Kind.String()), slog.Any("key", op.Key), slog.Any("error", err))

		return err
	}

	if r.opts.Recorder != nil {
		r.opts.Recorder.RecordOp(ctx, op.Kind.String(), outcome, time.Since(started))
	}

	if r.tree.Len() != len(r.expected) {
		return &DivergenceError{
			Seq: seq, Op: op,
			Want: "len " + strconv.Itoa(len(r.expected)),
			Got:  "len " + strconv.Itoa(r.tree.Len()),
		}
	}

	if r.opts.VerifyEvery > 0 && r.result.Ops%r.opts.VerifyEvery == 0 {
		err = r.verify(ctx)
		if err != nil {
			return fmt.Errorf("op #%d %s: %w", seq, op, err)
		}
	}

	if r.opts.SampleEvery > 0 && r.result.Ops%r.opts.SampleEvery == 0 {
		r.sample(ctx)
	}

	return nil
}

func (r *Runner) apply(seq int, op oplog.Op) (string, error) {
	want, present := r.expected[op.Key]

	diverged := func(wantDesc, gotDesc string) (string, error) {
		return "", &DivergenceError{Seq: seq, Op: op, Want: wantDesc, Got: gotDesc}
	}

	switch op.Kind {
	case oplog.KindInsert:
		err := r.tree.Insert(op.Key, op.Value)

		switch {
		case err == nil:
			r.expected[op.Key] = op.Value

			if present {
				r.result.Overwrites++

				return OutcomeOverwrite, nil
			}

			r.result.Inserts++

			return OutcomeOK, nil
		case errors.Is(err, rbtree.ErrAllocation) && !present:
			r.result.AllocFailures++

			return OutcomeAllocFailure, nil
		default:
			return diverged("insert to succeed", err.Error())
		}

	case oplog.KindDelete:
		err := r.tree.Delete(op.Key)

		switch {
		case present && err == nil:
			delete(r.expected, op.Key)
			r.result.Deletes++

			return OutcomeOK, nil
		case !present && errors.Is(err, rbtree.ErrNotFound):
			r.result.DeleteMisses++

			return OutcomeNotFound, nil
		case present:
			return diverged("delete to succeed", fmt.Sprint(err))
		default:
			return diverged("not found", fmt.Sprint(err))
		}

	case oplog.KindFind:
		r.result.Finds++

		got, ok := r.tree.Get(op.Key)

		switch {
		case ok != present:
			return diverged("present="+strconv.FormatBool(present), "present="+strconv.FormatBool(ok))
		case !present:
			r.result.FindMisses++

			return OutcomeNotFound, nil
		case got != want:
			return diverged(strconv.FormatUint(uint64(want), 10), strconv.FormatUint(uint64(got), 10))
		default:
			return OutcomeOK, nil
		}
	}

	return "", fmt.Errorf("op #%d: %w: %d", seq, oplog.ErrUnknownKind, op.Kind)
}

func (r *Runner) verify(ctx context.Context) error {
	r.result.Verifications++

	blackHeight, err := r.tree.BlackHeight()
	if err != nil {
		r.logger.ErrorContext(ctx, "verification failed", slog.Int("ops", r.result.Ops), slog.Any("error", err))

		return fmt.Errorf("verify: %w", err)
	}

	r.result.BlackHeight = blackHeight

	height, size := r.tree.Height(), r.tree.Len()
	if float64(height) > HeightBound(size) {
		return fmt.Errorf("%w: height %d with %d keys", ErrHeightBound, height, size)
	}

	r.logger.DebugContext(ctx, "verified",
		slog.Int("ops", r.result.Ops), slog.Int("size", size), slog.Int("black_height", blackHeight))

	return nil
}

func (r *Runner) sample(ctx context.Context) {
	size, height := r.tree.Len(), r.tree.Height()

	r.result.Samples = append(r.result.Samples, Sample{
		Seq:    r.result.Ops,
		Size:   size,
		Height: height,
		Bound:  HeightBound(size),
	})

	if r.opts.Recorder != nil {
		r.opts.Recorder.RecordShape(ctx, size, height)
		r.reportFixups(ctx)
	}
}

func (r *Runner) reportFixups(ctx context.Context) {
	stats := r.tree.Stats()

	for idx, hits := range stats.InsertCases {
		r.opts.Recorder.RecordFixups(ctx, "insert_"+strconv.Itoa(idx+1), int64(hits-r.reported.InsertCases[idx]))
	}

	for idx, hits := range stats.DeleteCases {
		r.opts.Recorder.RecordFixups(ctx, "delete_"+strconv.Itoa(idx+1), int64(hits-r.reported.DeleteCases[idx]))
	}

	r.reported = stats
}

func (r *Runner) finish(ctx context.Context) {
	r.result.FinalSize = r.tree.Len()
	r.result.FinalHeight = r.tree.Height()
	r.result.Stats = r.tree.Stats()
	r.result.ArenaSlots = r.tree.Allocator().Size()
	r.result.ArenaBytes = r.tree.Allocator().Bytes()

	if r.opts.Recorder != nil {
		r.opts.Recorder.RecordShape(ctx, r.result.FinalSize, r.result.FinalHeight)
		r.reportFixups(ctx)
	}
}
