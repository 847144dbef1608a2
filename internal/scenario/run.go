package scenario

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

// StepError reports the first failing step of a scenario.
type StepError struct {
	Index int
	Step  Step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Run executes the scenario against a fresh tree and returns that tree.
// The first failing step stops the run with a *StepError.
func (sc *Scenario) Run(ctx context.Context, logger *slog.Logger) (*rbtree.RBTree, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	tree := rbtree.New(rbtree.WithLimit(sc.Limit))

	for idx, step := range sc.Steps {
		err := ctx.Err()
		if err != nil {
			return tree, err
		}

		err = runStep(tree, step)
		if err != nil {
			logger.WarnContext(ctx, "scenario step failed",
				slog.String("scenario", sc.Name), slog.Int("step", idx+1), slog.String("op", step.Op), slog.Any("error", err))

			return tree, &StepError{Index: idx, Step: step, Err: err}
		}

		logger.DebugContext(ctx, "scenario step passed", slog.String("scenario", sc.Name), slog.Int("step", idx+1))
	}

	return tree, nil
}

func runStep(tree *rbtree.RBTree, step Step) error {
	switch step.Op {
	case OpInsert:
		return forEachKey(step, func(key uint32) error {
			value := key
			if step.Value != nil {
				value = *step.Value
			}

			return expectResult(step.Expect, tree.Insert(key, value))
		})
	case OpDelete:
		return forEachKey(step, func(key uint32) error {
			return expectResult(step.Expect, tree.Delete(key))
		})
	case OpFind:
		return forEachKey(step, func(key uint32) error {
			return checkFind(tree, step, key)
		})
	case OpLen:
		if step.Want == nil {
			return fmt.Errorf("%w: len step without want", ErrInvalidScenario)
		}

		if uint64(tree.Len()) != *step.Want {
			return fmt.Errorf("%w: len %d, want %d", ErrExpectation, tree.Len(), *step.Want)
		}

		return nil
	case OpVerify:
		return checkVerify(tree, step)
	case OpRoot:
		return checkRoot(tree, step)
	case OpDump:
		return checkDump(tree, step.Text)
	case OpClear:
		tree.Clear()

		return nil
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidScenario, step.Op)
	}
}

func forEachKey(step Step, fn func(key uint32) error) error {
	for _, key := range step.keys() {
		err := fn(key)
		if err != nil {
			return fmt.Errorf("key %d: %w", key, err)
		}
	}

	return nil
}

// expectResult compares an operation error with the declared expectation.
// An empty expectation means ok.
func expectResult(expect string, err error) error {
	got := ExpectOK

	switch {
	case err == nil:
	case errors.Is(err, rbtree.ErrNotFound):
		got = ExpectNotFound
	case errors.Is(err, rbtree.ErrAllocation):
		got = ExpectAllocFailure
	default:
		return err
	}

	if expect == "" {
		expect = ExpectOK
	}

	if got != expect {
		return fmt.Errorf("%w: got %s, want %s", ErrExpectation, got, expect)
	}

	return nil
}

func checkFind(tree *rbtree.RBTree, step Step, key uint32) error {
	item, err := tree.Find(key)

	resultErr := expectResult(step.Expect, err)
	if resultErr != nil || err != nil {
		return resultErr
	}

	if step.Want != nil && uint64(item.Value) != *step.Want {
		return fmt.Errorf("%w: value %d, want %d", ErrExpectation, item.Value, *step.Want)
	}

	return nil
}

func checkVerify(tree *rbtree.RBTree, step Step) error {
	blackHeight, err := tree.BlackHeight()
	if err != nil {
		return err
	}

	if step.BlackHeight != 0 && blackHeight != step.BlackHeight {
		return fmt.Errorf("%w: black height %d, want %d", ErrExpectation, blackHeight, step.BlackHeight)
	}

	return nil
}

func checkRoot(tree *rbtree.RBTree, step Step) error {
	item, color, ok := tree.Root()
	if !ok {
		if step.Key == nil {
			return nil
		}

		return fmt.Errorf("%w: empty tree, want root %d", ErrExpectation, *step.Key)
	}

	if step.Key == nil {
		return fmt.Errorf("%w: root %d, want empty tree", ErrExpectation, item.Key)
	}

	if item.Key != *step.Key {
		return fmt.Errorf("%w: root %d, want %d", ErrExpectation, item.Key, *step.Key)
	}

	if step.Color != "" && color.String() != step.Color {
		return fmt.Errorf("%w: root color %s, want %s", ErrExpectation, color, step.Color)
	}

	return nil
}

func checkDump(tree *rbtree.RBTree, want string) error {
	var buf bytes.Buffer

	err := tree.Dump(&buf)
	if err != nil {
		return err
	}

	got := buf.String()
	if got == want {
		return nil
	}

	return fmt.Errorf("%w: dump differs:\n%s", ErrExpectation, DiffText(want, got))
}

// DiffText renders a character diff from want to got with removed text in
// [-...-] and added text in {+...+}.
func DiffText(want, got string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(want, got, false))

	var sb strings.Builder

	for _, diff := range diffs {
		switch diff.Type {
		case diffmatchpatch.DiffEqual:
			sb.WriteString(diff.Text)
		case diffmatchpatch.DiffDelete:
			sb.WriteString("[-" + diff.Text + "-]")
		case diffmatchpatch.DiffInsert:
			sb.WriteString("{+" + diff.Text + "+}")
		}
	}

	return sb.String()
}
