package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".ordmap"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for ordmapctl settings.
const envPrefix = "ORDMAP"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
// Flags bound with WithFlag take precedence when set on the command line.
func LoadConfig(configPath string, opts ...Option) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	for _, opt := range opts {
		bindErr := opt(viperCfg)
		if bindErr != nil {
			return nil, fmt.Errorf("bind flag: %w", bindErr)
		}
	}

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

// Option customizes LoadConfig.
type Option func(*viper.Viper) error

// WithFlag binds a command line flag to a config key, e.g. "workout.ops".
// A nil flag is ignored.
func WithFlag(key string, flag *pflag.Flag) Option {
	return func(viperCfg *viper.Viper) error {
		if flag == nil {
			return nil
		}

		return viperCfg.BindPFlag(key, flag)
	}
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("workout.seed", DefaultWorkoutSeed)
	viperCfg.SetDefault("workout.ops", DefaultWorkoutOps)
	viperCfg.SetDefault("workout.key_space", DefaultWorkoutKeySpace)
	viperCfg.SetDefault("workout.insert_ratio", DefaultWorkoutInsertRatio)
	viperCfg.SetDefault("workout.delete_ratio", DefaultWorkoutDeleteRatio)
	viperCfg.SetDefault("workout.verify_every", DefaultWorkoutVerifyEvery)
	viperCfg.SetDefault("workout.sample_every", DefaultWorkoutSampleEvery)
	viperCfg.SetDefault("workout.max_nodes", 0)
	viperCfg.SetDefault("workout.memory_limit", "")

	viperCfg.SetDefault("trace.path", "")
	viperCfg.SetDefault("trace.compress", true)

	viperCfg.SetDefault("report.chart", "")
	viperCfg.SetDefault("report.yaml", "")

	viperCfg.SetDefault("observability.log_level", DefaultLogLevel)
	viperCfg.SetDefault("observability.log_json", false)
	viperCfg.SetDefault("observability.environment", "")
	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.sample_ratio", DefaultSampleRatio)
	viperCfg.SetDefault("observability.metrics_addr", "")
}
