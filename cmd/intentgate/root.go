package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config collects every tunable of the gateway binary. Loaded from flags,
// environment (INTENTGATE_ prefix) and an optional YAML file, in that order
// of precedence.
type Config struct {
	LogLevel    string `mapstructure:"log-level" validate:"required,oneof=trace debug info warn error"`
	RPCEndpoint string `mapstructure:"rpc-endpoint" validate:"required,uri"`
	MetricsAddr string `mapstructure:"metrics-addr" validate:"required,hostname_port"`

	RetentionSize int `mapstructure:"retention-size" validate:"gt=0"`
	Simulators    int `mapstructure:"simulators" validate:"gt=0"`

	MinSimulators int           `mapstructure:"min-simulators" validate:"gt=0"`
	RiskThreshold float64       `mapstructure:"risk-threshold" validate:"gt=0,lte=100"`
	VetoCeiling   uint8         `mapstructure:"veto-ceiling" validate:"gt=0,lte=100"`
	MaxWindow     time.Duration `mapstructure:"max-window" validate:"gt=0"`
	GraceFraction float64       `mapstructure:"grace-fraction" validate:"gt=0,lt=1"`
	QueueCapacity int           `mapstructure:"queue-capacity" validate:"gt=0"`

	PollInterval   time.Duration `mapstructure:"poll-interval" validate:"gt=0"`
	ValueThreshold string        `mapstructure:"value-threshold" validate:"omitempty,number"`
}

var configFile string

var rootCmd = &cobra.Command{
	Use:           "intentgate",
	Short:         "intent verification gateway",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to YAML config file")

	flags := runCmd.Flags()
	flags.String("log-level", "info", "log level (trace|debug|info|warn|error)")
	flags.String("rpc-endpoint", "", "websocket or IPC endpoint of the execution client")
	flags.String("metrics-addr", "127.0.0.1:9100", "listen address of the prometheus endpoint")
	flags.Int("retention-size", 10000, "number of finalized intents retained for queries")
	flags.Int("simulators", 3, "number of in-process simulator nodes")
	flags.Int("min-simulators", 2, "simulator results required for a decision outside the grace window")
	flags.Float64("risk-threshold", 50, "aggregate risk score at or above which an intent is blocked")
	flags.Uint8("veto-ceiling", 90, "single-result risk score at or above which a rejection vetoes the average")
	flags.Duration("max-window", 5*time.Minute, "maximum verification window of a submitted intent")
	flags.Float64("grace-fraction", 0.1, "final fraction of the window with relaxed quorum")
	flags.Int("queue-capacity", 1000, "capacity of each engine intake queue")
	flags.Duration("poll-interval", 2*time.Second, "target state polling interval")
	flags.String("value-threshold", "1000000000000000000", "value (wei) at which the heuristic scorer's value risk saturates")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig merges flags, environment and config file into a validated Config.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("could not bind flags: %w", err)
	}
	v.SetEnvPrefix("INTENTGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// newLogger builds the process logger at the configured level.
func newLogger(cfg *Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	return zerolog.New(zerolog.NewConsoleWriter()).Level(level).With().Timestamp().Logger(), nil
}
