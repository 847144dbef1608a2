// Package config loads ordmapctl settings from defaults, an optional YAML
// file and ORDMAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// Config is the top-level configuration struct for ordmapctl.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Workout       WorkoutConfig       `mapstructure:"workout"`
	Trace         TraceConfig         `mapstructure:"trace"`
	Report        ReportConfig        `mapstructure:"report"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// WorkoutConfig shapes the randomized workload.
type WorkoutConfig struct {
	Seed        int64   `mapstructure:"seed"`
	Ops         int     `mapstructure:"ops"`
	KeySpace    uint32  `mapstructure:"key_space"`
	InsertRatio float64 `mapstructure:"insert_ratio"`
	DeleteRatio float64 `mapstructure:"delete_ratio"`
	VerifyEvery int     `mapstructure:"verify_every"`
	SampleEvery int     `mapstructure:"sample_every"`
	MaxNodes    int     `mapstructure:"max_nodes"`
	MemoryLimit string  `mapstructure:"memory_limit"`
}

// TraceConfig controls operation log recording.
type TraceConfig struct {
	Path     string `mapstructure:"path"`
	Compress bool   `mapstructure:"compress"`
}

// ReportConfig selects extra report outputs.
type ReportConfig struct {
	Chart string `mapstructure:"chart"`
	YAML  string `mapstructure:"yaml"`
}

// ObservabilityConfig holds logging, tracing and metrics knobs.
type ObservabilityConfig struct {
	LogLevel     string  `mapstructure:"log_level"`
	LogJSON      bool    `mapstructure:"log_json"`
	Environment  string  `mapstructure:"environment"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	// SampleRatio is in (0, 1]. Disable tracing by leaving otlp_endpoint empty.
	SampleRatio float64 `mapstructure:"sample_ratio"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
}

// Default values.
const (
	DefaultWorkoutSeed        = 1
	DefaultWorkoutOps         = 100_000
	DefaultWorkoutKeySpace    = 65_536
	DefaultWorkoutInsertRatio = 0.5
	DefaultWorkoutDeleteRatio = 0.3
	DefaultWorkoutVerifyEvery = 1000
	DefaultWorkoutSampleEvery = 1000
	DefaultLogLevel           = "info"
	DefaultSampleRatio        = 1.0
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidOps indicates the operation count is not positive.
	ErrInvalidOps = errors.New("workout.ops must be positive")
	// ErrInvalidKeySpace indicates an empty key space.
	ErrInvalidKeySpace = errors.New("workout.key_space must be positive")
	// ErrInvalidRatio indicates an operation ratio outside [0, 1].
	ErrInvalidRatio = errors.New("workout.insert_ratio and workout.delete_ratio must be between 0 and 1")
	// ErrInvalidRatioSum indicates the ratios leave nothing or less than nothing for finds.
	ErrInvalidRatioSum = errors.New("workout.insert_ratio + workout.delete_ratio must not exceed 1")
	// ErrInvalidVerifyEvery indicates a negative verification interval.
	ErrInvalidVerifyEvery = errors.New("workout.verify_every must be non-negative")
	// ErrInvalidSampleEvery indicates a negative sampling interval.
	ErrInvalidSampleEvery = errors.New("workout.sample_every must be non-negative")
	// ErrInvalidMaxNodes indicates a negative node cap.
	ErrInvalidMaxNodes = errors.New("workout.max_nodes must be non-negative")
	// ErrInvalidMemoryLimit indicates an unparsable memory limit.
	ErrInvalidMemoryLimit = errors.New("workout.memory_limit must be a byte size such as 64MiB")
	// ErrInvalidLogLevel indicates an unknown log level name.
	ErrInvalidLogLevel = errors.New("observability.log_level must be debug, info, warn or error")
	// ErrInvalidSampleRatio indicates a trace sample ratio outside (0, 1].
	ErrInvalidSampleRatio = errors.New("observability.sample_ratio must be greater than 0 and at most 1")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	workoutErr := c.validateWorkout()
	if workoutErr != nil {
		return workoutErr
	}

	return c.validateObservability()
}

func (c *Config) validateWorkout() error {
	w := c.Workout

	if w.Ops <= 0 {
		return ErrInvalidOps
	}

	if w.KeySpace == 0 {
		return ErrInvalidKeySpace
	}

	if w.InsertRatio < 0 || w.InsertRatio > 1 || w.DeleteRatio < 0 || w.DeleteRatio > 1 {
		return ErrInvalidRatio
	}

	if w.InsertRatio+w.DeleteRatio > 1 {
		return ErrInvalidRatioSum
	}

	if w.VerifyEvery < 0 {
		return ErrInvalidVerifyEvery
	}

	if w.SampleEvery < 0 {
		return ErrInvalidSampleEvery
	}

	if w.MaxNodes < 0 {
		return ErrInvalidMaxNodes
	}

	_, err := w.MemoryLimitBytes()

	return err
}

func (c *Config) validateObservability() error {
	_, err := c.Observability.Level()
	if err != nil {
		return err
	}

	if c.Observability.SampleRatio <= 0 || c.Observability.SampleRatio > 1 {
		return ErrInvalidSampleRatio
	}

	return nil
}

// MemoryLimitBytes parses MemoryLimit. An empty limit yields zero.
func (w WorkoutConfig) MemoryLimitBytes() (uint64, error) {
	if w.MemoryLimit == "" {
		return 0, nil
	}

	limit, err := humanize.ParseBytes(w.MemoryLimit)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidMemoryLimit, err)
	}

	return limit, nil
}

// Level maps LogLevel to a slog level. An empty name means info.
func (o ObservabilityConfig) Level() (slog.Level, error) {
	if o.LogLevel == "" {
		return slog.LevelInfo, nil
	}

	var level slog.Level

	err := level.UnmarshalText([]byte(o.LogLevel))
	if err != nil {
		return slog.LevelInfo, ErrInvalidLogLevel
	}

	return level, nil
}
