// Package config loads pipeline configuration from file and environment
// and initializes the global zap logger.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full pipeline configuration.
type Config struct {
	IndexLimit        int        `yaml:"index_limit" mapstructure:"index_limit"`
	APIRateLimit      float64    `yaml:"api_rate_limit" mapstructure:"api_rate_limit"`
	DownloadRateLimit float64    `yaml:"download_rate_limit" mapstructure:"download_rate_limit"`
	ForceRestart      bool       `yaml:"force_restart" mapstructure:"force_restart"`
	Incremental       bool       `yaml:"incremental" mapstructure:"incremental"`
	BaselineFile      string     `yaml:"baseline_file" mapstructure:"baseline_file"`
	Verbose           bool       `yaml:"verbose" mapstructure:"verbose"`
	UserAgent         string     `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPTimeoutSecs   int        `yaml:"http_timeout_secs" mapstructure:"http_timeout_secs"`
	Paths             PathConfig `yaml:"paths" mapstructure:"paths"`
	Log               LogConfig  `yaml:"log" mapstructure:"log"`
}

// PathConfig names the fixed data-directory layout (spec.md §7).
type PathConfig struct {
	DataDir   string `yaml:"data_dir" mapstructure:"data_dir"`
	FirmFiles string `yaml:"firm_files" mapstructure:"firm_files"`
	Input     string `yaml:"input" mapstructure:"input"`
	Output    string `yaml:"output" mapstructure:"output"`
	Downloads string `yaml:"downloads" mapstructure:"downloads"`
	Logs      string `yaml:"logs" mapstructure:"logs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks required configuration invariants (spec.md §9's
// ErrConfiguration exit path).
func (c *Config) Validate() error {
	var errs []string

	if c.IndexLimit < 0 {
		errs = append(errs, "index_limit must be >= 0")
	}
	if c.APIRateLimit <= 0 {
		errs = append(errs, "api_rate_limit must be > 0")
	}
	if c.DownloadRateLimit <= 0 {
		errs = append(errs, "download_rate_limit must be > 0")
	}
	if c.Paths.DataDir == "" {
		errs = append(errs, "paths.data_dir is required")
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: validation failed: %s", strings.Join(errs, "; ")))
	}
	return nil
}

// Load reads configuration from ./config.yaml (if present), environment
// variables prefixed IAPD_, and built-in defaults, in that precedence
// order (env overrides file, file overrides default). An empty
// configPath searches "." for config.yaml; a non-empty configPath is
// read directly, matching cobra's --config flag override.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("IAPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("index_limit", 0)
	v.SetDefault("api_rate_limit", 2.0)
	v.SetDefault("download_rate_limit", 5.0)
	v.SetDefault("force_restart", false)
	v.SetDefault("incremental", true)
	v.SetDefault("baseline_file", "")
	v.SetDefault("verbose", false)
	v.SetDefault("user_agent", "iapd-pipeline/1.0 (compliance@sellsadvisors.com)")
	v.SetDefault("http_timeout_secs", 30)
	v.SetDefault("paths.data_dir", "Data")
	v.SetDefault("paths.firm_files", "Data/FirmFiles")
	v.SetDefault("paths.input", "Data/Input")
	v.SetDefault("paths.output", "Data/Output")
	v.SetDefault("paths.downloads", "Data/Downloads")
	v.SetDefault("paths.logs", "Data/Logs")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// InitLogger initializes the global zap logger from cfg.
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
