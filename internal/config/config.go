// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Scan      ScanConfig      `mapstructure:"scan" yaml:"scan"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	Autofill  AutofillConfig  `mapstructure:"autofill" yaml:"autofill"`
	Manual    ManualConfig    `mapstructure:"manual" yaml:"manual"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Export    ExportConfig    `mapstructure:"export" yaml:"export"`
}

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

// Browser drivers understood by the probe launcher.
const (
	DriverChromedp = "chromedp"
	DriverRod      = "rod"
)

// BrowserConfig configures the hosted browsing surface.
type BrowserConfig struct {
	Driver            string        `mapstructure:"driver" yaml:"driver"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	Stealth           bool          `mapstructure:"stealth" yaml:"stealth"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// ProbeTimeout bounds a single evaluate round trip.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
}

// ScanConfig configures the scan controller.
type ScanConfig struct {
	AdvanceInterval time.Duration `mapstructure:"advance_interval" yaml:"advance_interval"`
}

// DiscoveryConfig configures the form locator's significance filter.
type DiscoveryConfig struct {
	MinWidth  float64 `mapstructure:"min_width" yaml:"min_width"`
	MinHeight float64 `mapstructure:"min_height" yaml:"min_height"`
}

// AutofillConfig configures the fill executor.
type AutofillConfig struct {
	DefaultFillTimeoutMs int           `mapstructure:"default_fill_timeout_ms" yaml:"default_fill_timeout_ms"`
	MaxFillTimeoutMs     int           `mapstructure:"max_fill_timeout_ms" yaml:"max_fill_timeout_ms"`
	FieldTimeout         time.Duration `mapstructure:"field_timeout" yaml:"field_timeout"`
}

// ManualConfig configures the manual selection overlay.
type ManualConfig struct {
	BindingName      string        `mapstructure:"binding_name" yaml:"binding_name"`
	DedupTolerancePx float64       `mapstructure:"dedup_tolerance_px" yaml:"dedup_tolerance_px"`
	ToastDuration    time.Duration `mapstructure:"toast_duration" yaml:"toast_duration"`
}

// Store drivers.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// StoreConfig selects the durable key-value backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	// DSN is the PostgreSQL connection string.
	DSN string `mapstructure:"dsn" yaml:"-"`
	// Path is the SQLite database file.
	Path string `mapstructure:"path" yaml:"path"`
}

// ExportConfig configures page HTML export.
type ExportConfig struct {
	Dir      string `mapstructure:"dir" yaml:"dir"`
	Sanitize bool   `mapstructure:"sanitize" yaml:"sanitize"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
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
	v.SetDefault("logger.service_name", "pagefinder")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.probe_timeout", "10s")

	// -- Scan --
	v.SetDefault("scan.advance_interval", "2s")

	// -- Discovery --
	v.SetDefault("discovery.min_width", 50.0)
	v.SetDefault("discovery.min_height", 50.0)

	// -- Autofill --
	v.SetDefault("autofill.default_fill_timeout_ms", 500)
	v.SetDefault("autofill.max_fill_timeout_ms", 2000)
	v.SetDefault("autofill.field_timeout", "5s")

	// -- Manual Selection --
	v.SetDefault("manual.binding_name", "__pagefinderSelect")
	v.SetDefault("manual.dedup_tolerance_px", 20.0)
	v.SetDefault("manual.toast_duration", "1500ms")

	// -- Store --
	v.SetDefault("store.driver", StoreSQLite)
	v.SetDefault("store.path", "~/.pagefinder/pagefinder.db")

	// -- Export --
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.sanitize", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("store.dsn", "PAGEFINDER_STORE_DSN")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Store.Path != "" {
		expanded, err := homedir.Expand(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("could not expand store.path: %w", err)
		}
		cfg.Store.Path = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Browser.Driver {
	case DriverChromedp, DriverRod:
	default:
		return fmt.Errorf("browser.driver must be %q or %q, got %q", DriverChromedp, DriverRod, c.Browser.Driver)
	}
	if c.Scan.AdvanceInterval <= 0 {
		return fmt.Errorf("scan.advance_interval must be a positive duration")
	}
	if c.Discovery.MinWidth < 0 || c.Discovery.MinHeight < 0 {
		return fmt.Errorf("discovery.min_width and discovery.min_height must not be negative")
	}
	if err := c.Autofill.Validate(); err != nil {
		return fmt.Errorf("autofill configuration invalid: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store configuration invalid: %w", err)
	}
	if c.Manual.BindingName == "" {
		return fmt.Errorf("manual.binding_name is required")
	}
	return nil
}

// Validate checks the autofill configuration.
func (a *AutofillConfig) Validate() error {
	if a.MaxFillTimeoutMs < 0 {
		return fmt.Errorf("max_fill_timeout_ms must not be negative")
	}
	if a.DefaultFillTimeoutMs < 0 || a.DefaultFillTimeoutMs > a.MaxFillTimeoutMs {
		return fmt.Errorf("default_fill_timeout_ms must be between 0 and max_fill_timeout_ms (%d)", a.MaxFillTimeoutMs)
	}
	return nil
}

// Validate checks the store configuration.
func (s *StoreConfig) Validate() error {
	switch s.Driver {
	case StoreMemory:
		return nil
	case StoreSQLite:
		if s.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
		return nil
	case StorePostgres:
		if s.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver. Ensure PAGEFINDER_STORE_DSN is set")
		}
		return nil
	}
	return fmt.Errorf("unknown store.driver %q", s.Driver)
}
