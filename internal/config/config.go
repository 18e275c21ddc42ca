// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Network     NetworkConfig     `mapstructure:"network" yaml:"network"`
	Locator     LocatorConfig     `mapstructure:"locator" yaml:"locator"`
	Interaction InteractionConfig `mapstructure:"interaction" yaml:"interaction"`
	Artifacts   ArtifactsConfig   `mapstructure:"artifacts" yaml:"artifacts"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Debug           bool           `mapstructure:"debug" yaml:"debug"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
	UserAgent       string         `mapstructure:"user_agent" yaml:"user_agent"`
}

// NetworkConfig tunes navigation and rate limiting behavior.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	// NavigationsPerSecond throttles full page loads per session.
	NavigationsPerSecond float64 `mapstructure:"navigations_per_second" yaml:"navigations_per_second"`
	NavigationBurst      int     `mapstructure:"navigation_burst" yaml:"navigation_burst"`
}

// LocatorConfig carries the element resolution tunables. The scoring
// weights are exposed so deployments can bias the ranking without a
// rebuild; the defaults are the values the resolution pipeline was
// calibrated with.
type LocatorConfig struct {
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout" yaml:"resolve_timeout"`
	// SettleWindow is how long an element's geometry must hold still
	// before it is considered stable.
	SettleWindow     time.Duration `mapstructure:"settle_window" yaml:"settle_window"`
	PageReadyTimeout time.Duration `mapstructure:"page_ready_timeout" yaml:"page_ready_timeout"`

	BaseScore             int `mapstructure:"base_score" yaml:"base_score"`
	ExtraMatchPenalty     int `mapstructure:"extra_match_penalty" yaml:"extra_match_penalty"`
	IDBonus               int `mapstructure:"id_bonus" yaml:"id_bonus"`
	DescendantPenalty     int `mapstructure:"descendant_penalty" yaml:"descendant_penalty"`
	AttributePenalty      int `mapstructure:"attribute_penalty" yaml:"attribute_penalty"`
	InvisibleFirstPenalty int `mapstructure:"invisible_first_penalty" yaml:"invisible_first_penalty"`
}

// InteractionConfig tunes the interaction retry loop.
type InteractionConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff" yaml:"backoff"`
}

// ArtifactsConfig controls where debug screenshots and JSON dumps land.
type ArtifactsConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir      string `mapstructure:"dir" yaml:"dir"`
	HTTPAddr string `mapstructure:"http_addr" yaml:"http_addr"`
}

// ServerConfig holds settings for the tool server process.
type ServerConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Version string `mapstructure:"version" yaml:"version"`
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
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webpilot")
	v.SetDefault("logger.log_file", "webpilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.debug", false)

	// -- Network --
	v.SetDefault("network.navigation_timeout", "90s")
	v.SetDefault("network.post_load_wait", "500ms")
	v.SetDefault("network.navigations_per_second", 1.0)
	v.SetDefault("network.navigation_burst", 3)

	// -- Locator --
	v.SetDefault("locator.resolve_timeout", "10s")
	v.SetDefault("locator.settle_window", "100ms")
	v.SetDefault("locator.page_ready_timeout", "15s")
	v.SetDefault("locator.base_score", 100)
	v.SetDefault("locator.extra_match_penalty", 10)
	v.SetDefault("locator.id_bonus", 50)
	v.SetDefault("locator.descendant_penalty", 5)
	v.SetDefault("locator.attribute_penalty", 3)
	v.SetDefault("locator.invisible_first_penalty", 30)

	// -- Interaction --
	v.SetDefault("interaction.max_attempts", 3)
	v.SetDefault("interaction.backoff", "250ms")

	// -- Artifacts --
	v.SetDefault("artifacts.enabled", true)
	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.http_addr", "")

	// -- Server --
	v.SetDefault("server.name", "webpilot")
	v.SetDefault("server.version", "1.0.0")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Interaction.MaxAttempts <= 0 {
		return fmt.Errorf("interaction.max_attempts must be a positive integer")
	}
	if c.Interaction.Backoff < 0 {
		return fmt.Errorf("interaction.backoff must not be negative")
	}
	if c.Locator.ResolveTimeout <= 0 {
		return fmt.Errorf("locator.resolve_timeout must be a positive duration")
	}
	if c.Locator.SettleWindow <= 0 {
		return fmt.Errorf("locator.settle_window must be a positive duration")
	}
	if c.Locator.BaseScore <= 0 {
		return fmt.Errorf("locator.base_score must be a positive integer")
	}
	if c.Network.NavigationsPerSecond <= 0 {
		return fmt.Errorf("network.navigations_per_second must be positive")
	}
	if c.Network.NavigationBurst <= 0 {
		return fmt.Errorf("network.navigation_burst must be a positive integer")
	}
	if c.Artifacts.Enabled && c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts.dir is required when artifacts are enabled")
	}
	return nil
}
