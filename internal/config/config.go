// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override (SITEPILOT_BROWSER_HEADLESS, ...).
const EnvPrefix = "SITEPILOT"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Bridge() BridgeConfig
	Sites() SitesConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserExecPath(string)

	// Bridge Setters
	SetBridgeEvalTimeout(time.Duration)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	BridgeCfg  BridgeConfig  `mapstructure:"bridge" yaml:"bridge"`
	SitesCfg   SitesConfig   `mapstructure:"sites" yaml:"sites"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Bridge() BridgeConfig   { return c.BridgeCfg }
func (c *Config) Sites() SitesConfig     { return c.SitesCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)             { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserExecPath(p string)           { c.BrowserCfg.ExecPath = p }
func (c *Config) SetBridgeEvalTimeout(d time.Duration) { c.BridgeCfg.EvalTimeout = d }

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

// BrowserConfig holds settings for the Chrome instance the run command drives.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath          string         `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent         string         `mapstructure:"user_agent" yaml:"user_agent"`
	UserDataDir       string         `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Stealth           bool           `mapstructure:"stealth" yaml:"stealth"`
	Timezone          string         `mapstructure:"timezone" yaml:"timezone"`
	Locale            string         `mapstructure:"locale" yaml:"locale"`
	DisableCache      bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration  `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// BridgeConfig tunes how commands are evaluated in the page context.
type BridgeConfig struct {
	EvalTimeout   time.Duration `mapstructure:"eval_timeout" yaml:"eval_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// SitesConfig holds the base URL of every supported site.
type SitesConfig struct {
	Google   string `mapstructure:"google" yaml:"google"`
	LinkedIn string `mapstructure:"linkedin" yaml:"linkedin"`
	Twitter  string `mapstructure:"twitter" yaml:"twitter"`
	Uniswap  string `mapstructure:"uniswap" yaml:"uniswap"`
}

// URL returns the base URL for a site by its short name.
func (s SitesConfig) URL(site string) (string, bool) {
	switch site {
	case "google":
		return s.Google, s.Google != ""
	case "linkedin":
		return s.LinkedIn, s.LinkedIn != ""
	case "twitter":
		return s.Twitter, s.Twitter != ""
	case "uniswap":
		return s.Uniswap, s.Uniswap != ""
	}
	return "", false
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
	v.SetDefault("logger.service_name", "sitepilot")
	v.SetDefault("logger.log_file", "sitepilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.disable_cache", false)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.post_load_wait", "2s")
	v.SetDefault("browser.viewport", map[string]int{"width": 1366, "height": 900})

	// -- Bridge --
	v.SetDefault("bridge.eval_timeout", "60s")
	v.SetDefault("bridge.retry_attempts", 5)
	v.SetDefault("bridge.retry_delay", "500ms")

	// -- Sites --
	v.SetDefault("sites.google", "https://www.google.com")
	v.SetDefault("sites.linkedin", "https://www.linkedin.com")
	v.SetDefault("sites.twitter", "https://x.com")
	v.SetDefault("sites.uniswap", "https://app.uniswap.org")
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
	if c.BrowserCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if c.BridgeCfg.EvalTimeout <= 0 {
		return fmt.Errorf("bridge.eval_timeout must be a positive duration")
	}
	if c.BridgeCfg.RetryAttempts <= 0 {
		return fmt.Errorf("bridge.retry_attempts must be a positive integer")
	}
	if c.BridgeCfg.RetryDelay < 0 {
		return fmt.Errorf("bridge.retry_delay must not be negative")
	}
	for name, raw := range map[string]string{
		"google":   c.SitesCfg.Google,
		"linkedin": c.SitesCfg.LinkedIn,
		"twitter":  c.SitesCfg.Twitter,
		"uniswap":  c.SitesCfg.Uniswap,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("sites.%s must be an absolute URL, got %q", name, raw)
		}
	}
	return nil
}
