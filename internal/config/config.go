// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Reporter() ReporterConfig
	Network() NetworkConfig
	Dialog() DialogConfig
	Collector() CollectorConfig

	// Setters used by CLI flag overrides.
	SetSubmissionURL(string)
	SetNonInteractivePolicy(NonInteractivePolicy)
	SetCrashDirs([]string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	ReporterCfg  ReporterConfig  `mapstructure:"reporter" yaml:"reporter"`
	NetworkCfg   NetworkConfig   `mapstructure:"network" yaml:"network"`
	DialogCfg    DialogConfig    `mapstructure:"dialog" yaml:"dialog"`
	CollectorCfg CollectorConfig `mapstructure:"collector" yaml:"collector"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Reporter() ReporterConfig   { return c.ReporterCfg }
func (c *Config) Network() NetworkConfig     { return c.NetworkCfg }
func (c *Config) Dialog() DialogConfig       { return c.DialogCfg }
func (c *Config) Collector() CollectorConfig { return c.CollectorCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetSubmissionURL(u string) { c.ReporterCfg.SubmissionURL = u }
func (c *Config) SetNonInteractivePolicy(p NonInteractivePolicy) {
	c.ReporterCfg.NonInteractivePolicy = p
}
func (c *Config) SetCrashDirs(dirs []string) { c.ReporterCfg.CrashDirs = dirs }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// NonInteractivePolicy decides what a non-interactive check does with the
// crash logs it finds.
type NonInteractivePolicy string

const (
	// PolicySubmit uploads pending reports without asking the user.
	PolicySubmit NonInteractivePolicy = "submit"
	// PolicyDefer leaves pending reports for the next interactive check.
	PolicyDefer NonInteractivePolicy = "defer"
)

// ReporterConfig configures crash discovery, state and submission.
type ReporterConfig struct {
	SubmissionURL        string               `mapstructure:"submission_url" yaml:"submission_url"`
	CrashDirs            []string             `mapstructure:"crash_dirs" yaml:"crash_dirs"`
	Patterns             []string             `mapstructure:"patterns" yaml:"patterns"`
	StateFile            string               `mapstructure:"state_file" yaml:"state_file"`
	NonInteractivePolicy NonInteractivePolicy `mapstructure:"non_interactive_policy" yaml:"non_interactive_policy"`
	ApplicationName      string               `mapstructure:"application_name" yaml:"application_name"`
	ApplicationVersion   string               `mapstructure:"application_version" yaml:"application_version"`
	IncludeSystemInfo    bool                 `mapstructure:"include_system_info" yaml:"include_system_info"`
	MinSubmitInterval    time.Duration        `mapstructure:"min_submit_interval" yaml:"min_submit_interval"`
}

// Compression names the body encoding applied to submissions.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionGzip   Compression = "gzip"
	CompressionBrotli Compression = "br"
)

// NetworkConfig tunes the submission transport.
type NetworkConfig struct {
	Timeout     time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	Compression Compression       `mapstructure:"compression" yaml:"compression"`
	Headers     map[string]string `mapstructure:"headers" yaml:"headers"`
	UserAgent   string            `mapstructure:"user_agent" yaml:"user_agent"`
}

// CollectorConfig configures the reference collection endpoint.
type CollectorConfig struct {
	ListenAddress string `mapstructure:"listen_address" yaml:"listen_address"`
	SpoolDir      string `mapstructure:"spool_dir" yaml:"spool_dir"`
	MaxBodyBytes  int64  `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
// reporter.submission_url and reporter.non_interactive_policy have no default
// and must be configured explicitly.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "crashreporter")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Reporter --
	v.SetDefault("reporter.crash_dirs", []string{"~/Library/Logs/DiagnosticReports", "~/.crashreporter/crashes"})
	v.SetDefault("reporter.patterns", []string{"*.crash", "*.ips", "panic-*.log"})
	v.SetDefault("reporter.state_file", "~/.crashreporter/state.yaml")
	v.SetDefault("reporter.include_system_info", true)
	v.SetDefault("reporter.min_submit_interval", "0s")

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.compression", string(CompressionGzip))
	v.SetDefault("network.user_agent", "crashreporter/1.0")

	// -- Dialog --
	setDialogDefaults(v)

	// -- Collector --
	v.SetDefault("collector.listen_address", "127.0.0.1:8787")
	v.SetDefault("collector.spool_dir", "./spool")
	v.SetDefault("collector.max_body_bytes", 64<<20)
}

// NewConfigFromViper creates a new, validated configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	cfg, err := UnmarshalFromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// UnmarshalFromViper decodes the configuration without validating it, so
// flag overrides can be applied before Validate runs.
func UnmarshalFromViper(v *viper.Viper) (*Config, error) {
	// Keys without defaults are unknown to AutomaticEnv until bound.
	_ = v.BindEnv("reporter.submission_url", "CRASHREPORTER_SUBMISSION_URL")
	_ = v.BindEnv("reporter.non_interactive_policy", "CRASHREPORTER_NON_INTERACTIVE_POLICY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.ReporterCfg.Validate(); err != nil {
		return fmt.Errorf("reporter configuration invalid: %w", err)
	}
	if err := c.NetworkCfg.Validate(); err != nil {
		return fmt.Errorf("network configuration invalid: %w", err)
	}
	if err := c.DialogCfg.Validate(); err != nil {
		return fmt.Errorf("dialog configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the reporter configuration.
func (r *ReporterConfig) Validate() error {
	if r.SubmissionURL == "" {
		return fmt.Errorf("submission_url is required (CRASHREPORTER_SUBMISSION_URL)")
	}
	u, err := url.Parse(r.SubmissionURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("submission_url must be an absolute http(s) URL, got %q", r.SubmissionURL)
	}
	switch r.NonInteractivePolicy {
	case PolicySubmit, PolicyDefer:
	case "":
		return fmt.Errorf("non_interactive_policy must be set explicitly to %q or %q", PolicySubmit, PolicyDefer)
	default:
		return fmt.Errorf("unknown non_interactive_policy %q", r.NonInteractivePolicy)
	}
	if len(r.CrashDirs) == 0 {
		return fmt.Errorf("at least one crash_dirs entry is required")
	}
	if len(r.Patterns) == 0 {
		return fmt.Errorf("at least one patterns entry is required")
	}
	if r.StateFile == "" {
		return fmt.Errorf("state_file is required")
	}
	if r.MinSubmitInterval < 0 {
		return fmt.Errorf("min_submit_interval must not be negative")
	}
	return nil
}

// Validate checks the network configuration.
func (n *NetworkConfig) Validate() error {
	if n.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive duration")
	}
	switch n.Compression {
	case CompressionNone, CompressionGzip, CompressionBrotli:
	default:
		return fmt.Errorf("unsupported compression %q", n.Compression)
	}
	return nil
}
