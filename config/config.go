package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/balancer-core/internal/backend"
	"github.com/angeloszaimis/balancer-core/internal/httpserver"
	"github.com/angeloszaimis/balancer-core/internal/strategy"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const envPrefix = "BALANCER"

type ServerConfig struct {
	Environment string `mapstructure:"environment"`
}

type StrategyConfig struct {
	Type string `mapstructure:"type"`
}

type BackendConfig struct {
	ID     string `mapstructure:"id"`
	Weight int    `mapstructure:"weight"`
}

type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	AddSource bool   `mapstructure:"add_source"`
}

type SimulationConfig struct {
	Requests    int    `mapstructure:"requests"`
	Concurrency int    `mapstructure:"concurrency"`
	MinDuration string `mapstructure:"min_duration"`
	MaxDuration string `mapstructure:"max_duration"`
	Spacing     string `mapstructure:"spacing"`
}

type MetricsConfig struct {
	// Address of the metrics endpoint. Empty disables it.
	Address    string `mapstructure:"address"`
	BufferSize int    `mapstructure:"buffer_size"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	Servers    []BackendConfig  `mapstructure:"servers"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type options struct {
	file  string
	flags *pflag.FlagSet
}

type Option func(*options)

// WithFile reads the configuration from path instead of searching
// ./config/config.yaml and ./config.yaml.
func WithFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

// WithFlags binds flags whose names match configuration keys
// (e.g. "strategy.type"). Flags set on the command line take precedence
// over the environment, the file and the defaults.
func WithFlags(flags *pflag.FlagSet) Option {
	return func(o *options) {
		o.flags = flags
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("strategy.type", string(strategy.KindRoundRobin))
	v.SetDefault("servers", []map[string]any{
		{"id": "server1", "weight": 5},
		{"id": "server2", "weight": 1},
		{"id": "server3", "weight": 1},
	})
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.add_source", false)
	v.SetDefault("simulation.requests", 16)
	v.SetDefault("simulation.concurrency", 16)
	v.SetDefault("simulation.min_duration", "100ms")
	v.SetDefault("simulation.max_duration", "1s")
	v.SetDefault("simulation.spacing", "100ms")
	v.SetDefault("metrics.address", "")
	v.SetDefault("metrics.buffer_size", 1000)
}

func Load(opts ...Option) (*Config, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	setDefaults(v)

	if o.file != "" {
		v.SetConfigFile(o.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if o.flags != nil {
		if err := v.BindPFlags(o.flags); err != nil {
			return nil, errors.Wrap(err, "bind flags")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, errors.Wrap(err, "read config")
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	kind, _ := strategy.ParseKind(cfg.Strategy.Type)
	cfg.Strategy.Type = string(kind)

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Servers,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateBackendConfig)),
		),
		validation.Field(&c.Strategy,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(StrategyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a StrategyConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Type,
						validation.Required,
						validation.By(validateStrategyType),
					),
				)
			}),
		),
		validation.Field(&c.Simulation,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(SimulationConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a SimulationConfig")
				}
				return validateSimulation(sc)
			}),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.Address,
						validation.When(mc.Address != "", validation.By(httpserver.ValidateAddress)),
					),
					validation.Field(&mc.BufferSize, validation.Required, validation.Min(1)),
				)
			}),
		),
	)
}

// WeightedServers returns the configured pool in file order.
func (c *Config) WeightedServers() []backend.Weighted {
	servers := make([]backend.Weighted, len(c.Servers))
	for i, s := range c.Servers {
		servers[i] = backend.Weighted{ID: backend.ServerID(s.ID), Weight: s.Weight}
	}
	return servers
}

// Durations parses the simulation timings. Validate guarantees they parse.
func (s SimulationConfig) Durations() (minDuration, maxDuration, spacing time.Duration, err error) {
	if minDuration, err = time.ParseDuration(s.MinDuration); err != nil {
		return 0, 0, 0, errors.Wrap(err, "simulation.min_duration")
	}
	if maxDuration, err = time.ParseDuration(s.MaxDuration); err != nil {
		return 0, 0, 0, errors.Wrap(err, "simulation.max_duration")
	}
	if spacing, err = time.ParseDuration(s.Spacing); err != nil {
		return 0, 0, 0, errors.Wrap(err, "simulation.spacing")
	}
	return minDuration, maxDuration, spacing, nil
}

func validateStrategyType(value interface{}) error {
	name, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := strategy.ParseKind(name); err != nil {
		return validation.NewError("validation_invalid_strategy", "must be a valid value")
	}

	return nil
}

func validateSimulation(sc SimulationConfig) error {
	if err := validation.ValidateStruct(&sc,
		validation.Field(&sc.Requests, validation.Min(0)),
		validation.Field(&sc.Concurrency, validation.Required, validation.Min(1)),
		validation.Field(&sc.MinDuration, validation.Required, validation.By(validateDuration)),
		validation.Field(&sc.MaxDuration, validation.Required, validation.By(validateDuration)),
		validation.Field(&sc.Spacing, validation.Required, validation.By(validateDuration)),
	); err != nil {
		return err
	}

	minDuration, maxDuration, _, _ := sc.Durations()
	if maxDuration < minDuration {
		return validation.NewError("validation_invalid_range", "max_duration must not be below min_duration")
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d < 0 {
		return validation.NewError("validation_negative_duration", "must not be negative")
	}

	return nil
}

func validateBackendConfig(value interface{}) error {
	server, ok := value.(BackendConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BackendConfig")
	}

	if strings.TrimSpace(server.ID) == "" {
		return validation.NewError("validation_empty_id", "server id cannot be empty")
	}

	if server.Weight < 0 {
		return validation.NewError("validation_invalid_weight", "weight must not be negative")
	}

	return nil
}
