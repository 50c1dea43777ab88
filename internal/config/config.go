// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Tree() TreeConfig
	Style() StyleConfig
	Layout() LayoutConfig
	Metrics() MetricsConfig

	// Layout Setters
	SetLayoutViewport(width, height uint32)
	SetLayoutDirection(dir string)

	// Metrics Setters
	SetMetricsOutput(path string)
}

// Config holds the entire application configuration.
// It uses private fields to enforce access through the Interface's getter methods.
type Config struct {
	logger  LoggerConfig
	tree    TreeConfig
	style   StyleConfig
	layout  LayoutConfig
	metrics MetricsConfig
}

// fileConfig is the on-disk shape of Config. viper can only decode into exported fields.
type fileConfig struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Tree    TreeConfig    `mapstructure:"tree" yaml:"tree"`
	Style   StyleConfig   `mapstructure:"style" yaml:"style"`
	Layout  LayoutConfig  `mapstructure:"layout" yaml:"layout"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.logger }
func (c *Config) Tree() TreeConfig       { return c.tree }
func (c *Config) Style() StyleConfig     { return c.style }
func (c *Config) Layout() LayoutConfig   { return c.layout }
func (c *Config) Metrics() MetricsConfig { return c.metrics }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetLayoutViewport(width, height uint32) {
	c.layout.Width, c.layout.Height = width, height
}
func (c *Config) SetLayoutDirection(dir string) { c.layout.Direction = dir }
func (c *Config) SetMetricsOutput(path string) {
	c.metrics.Output = path
	c.metrics.Enabled = path != ""
}

// Snapshot returns the configuration in its serializable form.
func (c *Config) Snapshot() any {
	return fileConfig{Logger: c.logger, Tree: c.tree, Style: c.style, Layout: c.layout, Metrics: c.metrics}
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

// ColorConfig defines the color settings for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// TreeConfig sizes newly created document trees.
type TreeConfig struct {
	InitialCapacity int `mapstructure:"initial_capacity" yaml:"initial_capacity"`
}

// StyleConfig tunes the style engine.
type StyleConfig struct {
	BaseFontSize      float64 `mapstructure:"base_font_size" yaml:"base_font_size"`
	DefaultLineHeight float64 `mapstructure:"default_line_height" yaml:"default_line_height"`
	// TextWidthFactor approximates glyph advance as a fraction of the font size.
	TextWidthFactor float64 `mapstructure:"text_width_factor" yaml:"text_width_factor"`
}

// LayoutConfig is the default viewport a reflow is solved in.
type LayoutConfig struct {
	Width     uint32 `mapstructure:"width" yaml:"width"`
	Height    uint32 `mapstructure:"height" yaml:"height"`
	Direction string `mapstructure:"direction" yaml:"direction"`
}

// MetricsConfig controls the arena metrics snapshot.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Output  string `mapstructure:"output" yaml:"output"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := decode(v)
	if err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "domtree")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Tree --
	v.SetDefault("tree.initial_capacity", 64)

	// -- Style --
	v.SetDefault("style.base_font_size", 16.0)
	v.SetDefault("style.default_line_height", 1.2)
	v.SetDefault("style.text_width_factor", 0.5)

	// -- Layout --
	v.SetDefault("layout.width", 1024)
	v.SetDefault("layout.height", 768)
	v.SetDefault("layout.direction", "ltr")

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.output", "")
}

// Load reads configuration from file and environment. An explicit file must
// exist; otherwise domtree.yaml is looked up in the working directory and then
// in $HOME/.domtree, and a missing file falls back to defaults.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("DOMTREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("domtree")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".domtree"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &Config{
		logger:  fc.Logger,
		tree:    fc.Tree,
		style:   fc.Style,
		layout:  fc.Layout,
		metrics: fc.Metrics,
	}, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.tree.InitialCapacity < 0 {
		return fmt.Errorf("tree.initial_capacity must not be negative")
	}
	if err := c.style.Validate(); err != nil {
		return fmt.Errorf("style configuration invalid: %w", err)
	}
	if err := c.layout.Validate(); err != nil {
		return fmt.Errorf("layout configuration invalid: %w", err)
	}
	if c.metrics.Enabled && c.metrics.Output == "" {
		return fmt.Errorf("metrics.output is required when metrics are enabled")
	}
	return nil
}

// Validate checks the style engine settings.
func (s *StyleConfig) Validate() error {
	if s.BaseFontSize <= 0 {
		return fmt.Errorf("base_font_size must be positive")
	}
	if s.DefaultLineHeight <= 0 {
		return fmt.Errorf("default_line_height must be positive")
	}
	if s.TextWidthFactor <= 0 {
		return fmt.Errorf("text_width_factor must be positive")
	}
	return nil
}

// Validate checks the viewport settings.
func (l *LayoutConfig) Validate() error {
	if l.Width == 0 || l.Height == 0 {
		return fmt.Errorf("width and height must be positive")
	}
	switch strings.ToLower(l.Direction) {
	case "ltr", "rtl", "inherit":
		return nil
	default:
		return fmt.Errorf("direction must be one of ltr, rtl, inherit; got %q", l.Direction)
	}
}
