// Package config loads application configuration and initializes logging.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Lookup LookupConfig `yaml:"lookup" mapstructure:"lookup"`
	Assess AssessConfig `yaml:"assess" mapstructure:"assess"`
	Pool   PoolConfig   `yaml:"pool" mapstructure:"pool"`
	IO     IOConfig     `yaml:"io" mapstructure:"io"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// LookupConfig configures the IP information service.
type LookupConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerMinute float64 `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AssessConfig configures the Anthropic assessment service.
type AssessConfig struct {
	Key              string  `yaml:"key" mapstructure:"key"`
	Model            string  `yaml:"model" mapstructure:"model"`
	MaxTokens        int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature      float64 `yaml:"temperature" mapstructure:"temperature"`
	Streaming        bool    `yaml:"streaming" mapstructure:"streaming"`
	RequestRiskScore bool    `yaml:"request_risk_score" mapstructure:"request_risk_score"`
}

// PoolConfig configures the enrichment worker pool.
type PoolConfig struct {
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
	Pacing      time.Duration `yaml:"pacing" mapstructure:"pacing"`
}

// IOConfig configures input/output file locations.
type IOConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// StoreConfig configures run-history persistence.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("IPINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("lookup.base_url", "http://ip-api.com")
	v.SetDefault("lookup.rate_per_minute", 45.0)
	v.SetDefault("lookup.timeout_secs", 15)
	v.SetDefault("assess.key", "")
	v.SetDefault("assess.model", "claude-haiku-4-5-20251001")
	v.SetDefault("assess.max_tokens", 1024)
	v.SetDefault("assess.temperature", 0.0)
	v.SetDefault("assess.streaming", false)
	v.SetDefault("assess.request_risk_score", true)
	v.SetDefault("pool.concurrency", 3)
	v.SetDefault("pool.pacing", "3s")
	v.SetDefault("io.output_dir", "data/output")
	v.SetDefault("store.path", "ipintel.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks required credentials. It runs before any processing so a
// missing secret aborts the run up front.
func (c *Config) Validate() error {
	if c.Assess.Key == "" {
		return eris.New("config: assess.key is required (set IPINTEL_ASSESS_KEY)")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
