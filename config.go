package zest

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the file form of runtime options.
type Config struct {
	// IDPrefix is the prefix of minted component ids.
	IDPrefix string `yaml:"id_prefix"`

	// Counter is the first numeric id minted. Zero keeps the default.
	Counter int `yaml:"counter"`

	// LiteralDispose selects the legacy stop-first-defined test for dispose
	// chains. See WithLiteralDispose.
	LiteralDispose bool `yaml:"literal_dispose"`

	// Key seals directive options. Empty writes plain JSON options.
	Key string `yaml:"key"`

	// PrivateOptions encrypts sealed options instead of signing them.
	PrivateOptions bool `yaml:"private_options"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures the zap logger built by Config.Logger.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		IDPrefix: "z",
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file yields
// the defaults. ZEST_KEY and ZEST_LOG_LEVEL override the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("zest: read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("zest: parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("ZEST_KEY"); key != "" {
		c.Key = key
	}
	if level := os.Getenv("ZEST_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Logger builds a zap logger from the logging section.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("zest: log level: %w", err)
	}

	config := zap.NewProductionConfig()
	if c.Logging.Development {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(level)
	return config.Build()
}

// Options converts the configuration into runtime options. The logger is
// built here too.
func (c *Config) Options() ([]Option, error) {
	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}

	opts := []Option{WithLogger(logger)}
	if c.IDPrefix != "" {
		opts = append(opts, WithIDPrefix(c.IDPrefix))
	}
	if c.Counter > 0 {
		opts = append(opts, WithCounter(c.Counter))
	}
	if c.LiteralDispose {
		opts = append(opts, WithLiteralDispose())
	}
	if c.Key != "" {
		enc, err := NewEncoder([]byte(c.Key))
		if err != nil {
			return nil, fmt.Errorf("zest: encoder: %w", err)
		}
		opts = append(opts, WithEncoder(enc))
		if c.PrivateOptions {
			opts = append(opts, WithPrivateOptions())
		}
	}
	return opts, nil
}
