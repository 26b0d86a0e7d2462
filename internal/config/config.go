// Package config loads tbd-inspect settings from defaults, an optional YAML
// file and TBD_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, so log.level is read from TBD_LOG_LEVEL.
const EnvPrefix = "TBD"

// Config is the resolved configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Window WindowConfig `mapstructure:"window"`
	Mode   string       `mapstructure:"mode"`
}

// LogConfig configures the charmbracelet logger handed to the macho package.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Prefix string `mapstructure:"prefix"`
}

// CacheConfig bounds cache allocations. Zero means the library default.
type CacheConfig struct {
	MaxSize uint64 `mapstructure:"max_size"`
}

// WindowConfig locates the image inside the file. A zero Size means the rest of the file.
type WindowConfig struct {
	Base int64 `mapstructure:"base"`
	Size int64 `mapstructure:"size"`
}

// New returns a viper instance with defaults and environment lookup set up.
// Callers bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.prefix", "macho")
	v.SetDefault("cache.max_size", 0)
	v.SetDefault("window.base", 0)
	v.SetDefault("window.size", 0)
	v.SetDefault("mode", "image")

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (when non-empty) into v and decodes the result.
// A missing file is an error only when it was named explicitly.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("tbd-inspect")
		v.AddConfigPath(".")
		if home, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(home + "/tbd-inspect")
		}
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check on its own.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}
	if c.Window.Base < 0 {
		return fmt.Errorf("invalid window.base %d: must not be negative", c.Window.Base)
	}
	if c.Window.Size < 0 {
		return fmt.Errorf("invalid window.size %d: must not be negative", c.Window.Size)
	}
	return nil
}

// Logger builds the logger described by c.Log.
func (c *Config) Logger() *log.Logger {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		lvl = log.WarnLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix: c.Log.Prefix,
		Level:  lvl,
	})
}
