package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordmap/internal/scenario"
)

// ErrScenariosFailed is returned when at least one scenario fails.
var ErrScenariosFailed = errors.New("scenarios failed")

func newScenarioCommand(app *App) *cobra.Command {
	var showTree bool

	cmd := &cobra.Command{
		Use:   "scenario <file.yaml>...",
		Short: "Run scripted scenarios",
		Long: `Run YAML scenario files. Each file is validated against the scenario
schema and its steps run against a fresh tree.

Examples:
  ordmapctl scenario internal/scenario/testdata/*.yaml
  ordmapctl scenario --tree my_case.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: app.runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			return app.runScenarios(ctx, cmd, args, showTree)
		}),
	}

	cmd.Flags().BoolVar(&showTree, "tree", false, "print the final tree of every scenario")

	return cmd
}

func (a *App) runScenarios(ctx context.Context, cmd *cobra.Command, paths []string, showTree bool) error {
	out := cmd.OutOrStdout()
	logger := a.logger()

	pass := color.New(color.FgGreen)
	fail := color.New(color.FgRed)

	failed := 0

	for _, path := range paths {
		sc, err := scenario.Load(path)
		if err != nil {
			failed++

			fail.Fprintf(out, "FAIL %s\n  %v\n", path, err)

			continue
		}

		tree, err := sc.Run(ctx, logger)
		if err != nil {
			failed++

			fail.Fprintf(out, "FAIL %s (%s)\n  %v\n", sc.Name, path, err)
		} else {
			pass.Fprintf(out, "PASS %s (%s)\n", sc.Name, path)
		}

		if showTree {
			printTree(out, tree)
		}
	}

	logger.InfoContext(ctx, "scenarios finished", slog.Int("total", len(paths)), slog.Int("failed", failed))

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrScenariosFailed, failed, len(paths))
	}

	return nil
}
