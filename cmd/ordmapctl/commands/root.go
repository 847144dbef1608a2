// Package commands implements CLI command handlers for ordmapctl.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordmap/internal/config"
	"github.com/Sumatoshi-tech/ordmap/pkg/observability"
	"github.com/Sumatoshi-tech/ordmap/pkg/version"
)

// flagKeys maps command line flags to the config keys they override.
var flagKeys = map[string]string{
	"seed":         "workout.seed",
	"ops":          "workout.ops",
	"key-space":    "workout.key_space",
	"insert-ratio": "workout.insert_ratio",
	"delete-ratio": "workout.delete_ratio",
	"verify-every": "workout.verify_every",
	"sample-every": "workout.sample_every",
	"max-nodes":    "workout.max_nodes",
	"memory-limit": "workout.memory_limit",
	"trace":        "trace.path",
	"compress":     "trace.compress",
	"chart":        "report.chart",
	"yaml":         "report.yaml",
	"log-json":     "observability.log_json",
	"metrics-addr": "observability.metrics_addr",
}

// App carries state shared by all commands of one invocation.
type App struct {
	configPath string
	verbose    bool
	quiet      bool
	noColor    bool

	cfg       *config.Config
	providers observability.Providers
}

// NewRootCommand creates the ordmapctl command tree.
func NewRootCommand() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "ordmapctl",
		Short: "Exercise and inspect the ordmap red-black tree",
		Long: `ordmapctl drives the ordmap red-black tree.

Commands:
  workout   Run a randomized workload checked against a reference map
  replay    Replay a recorded operation log
  scenario  Run scripted YAML scenarios
  dump      Build a tree from keys and print it`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.setup,
	}

	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default: .ordmap.yaml in CWD or $HOME)")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&app.quiet, "quiet", "q", false, "suppress output")
	rootCmd.PersistentFlags().BoolVar(&app.noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit JSON logs")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(newWorkoutCommand(app))
	rootCmd.AddCommand(newReplayCommand(app))
	rootCmd.AddCommand(newScenarioCommand(app))
	rootCmd.AddCommand(newDumpCommand(app))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func (a *App) setup(cmd *cobra.Command, _ []string) error {
	if a.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	bindings := make([]config.Option, 0, len(flagKeys))
	for name, key := range flagKeys {
		bindings = append(bindings, config.WithFlag(key, cmd.Flags().Lookup(name)))
	}

	cfg, err := config.LoadConfig(a.configPath, bindings...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a.cfg = cfg

	obsCfg, err := a.observabilityConfig(cmd)
	if err != nil {
		return err
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	a.providers = providers

	return nil
}

func (a *App) observabilityConfig(cmd *cobra.Command) (observability.Config, error) {
	obs := a.cfg.Observability

	level, err := obs.Level()
	if err != nil {
		return observability.Config{}, err
	}

	switch {
	case a.verbose:
		level = slog.LevelDebug
	case a.quiet:
		level = slog.LevelError
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = obs.Environment
	obsCfg.Mode = modeFor(cmd)
	obsCfg.OTLPEndpoint = obs.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(obs.OTLPHeaders)
	obsCfg.OTLPInsecure = obs.OTLPInsecure
	obsCfg.SampleRatio = obs.SampleRatio
	obsCfg.Prometheus = obs.MetricsAddr != ""
	obsCfg.LogLevel = level
	obsCfg.LogJSON = obs.LogJSON
	obsCfg.LogWriter = cmd.ErrOrStderr()

	return obsCfg, nil
}

func modeFor(cmd *cobra.Command) observability.AppMode {
	switch cmd.Name() {
	case "workout":
		return observability.ModeWorkout
	case "replay":
		return observability.ModeReplay
	case "scenario":
		return observability.ModeScenario
	default:
		return observability.ModeCLI
	}
}

// runE adapts fn to cobra and flushes telemetry once it returns.
func (a *App) runE(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		runErr := fn(cmd.Context(), cmd, args)

		if a.providers.Shutdown == nil {
			return runErr
		}

		shutdownErr := a.providers.Shutdown(context.WithoutCancel(cmd.Context()))
		if shutdownErr != nil {
			shutdownErr = fmt.Errorf("shutdown observability: %w", shutdownErr)
		}

		return errors.Join(runErr, shutdownErr)
	}
}

func (a *App) logger() *slog.Logger {
	if a.providers.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}

	return a.providers.Logger
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ordmapctl %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
