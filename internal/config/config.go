// Package config holds the device player configuration. Values are read
// from an optional YAML file and overridden by MARQUEE_* environment
// variables declared through struct tags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete player configuration
type Config struct {
	// Playback configuration
	Playback PlaybackConfig `yaml:"playback"`

	// Resource cache configuration
	Resources ResourceConfig `yaml:"resources"`

	// Device store configuration
	Store StoreConfig `yaml:"store"`

	// Control server configuration
	Server ServerConfig `yaml:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`
}

// PlaybackConfig holds playback engine configuration
type PlaybackConfig struct {
	PlaylistPath string        `yaml:"playlist_path" env:"MARQUEE_PLAYLIST" default:"./playlist.json"`
	TickInterval time.Duration `yaml:"tick_interval" env:"MARQUEE_TICK_INTERVAL" default:"50ms"`
	Loop         bool          `yaml:"loop" env:"MARQUEE_LOOP" default:"true"`
	Synced       bool          `yaml:"synced" env:"MARQUEE_SYNCED" default:"false"`
	WatchFile    bool          `yaml:"watch_file" env:"MARQUEE_WATCH" default:"true"`
}

// ResourceConfig holds asset cache configuration
type ResourceConfig struct {
	CacheDir string `yaml:"cache_dir" env:"MARQUEE_CACHE_DIR" default:"./data/cache"`
}

// StoreConfig holds device store configuration
type StoreConfig struct {
	Path string `yaml:"path" env:"MARQUEE_STORE_PATH" default:"./data/marquee.db"`
}

// ServerConfig holds control server configuration
type ServerConfig struct {
	Enabled       bool   `yaml:"enabled" env:"MARQUEE_SERVER_ENABLED" default:"true"`
	Host          string `yaml:"host" env:"MARQUEE_HOST" default:"127.0.0.1"`
	Port          int    `yaml:"port" env:"MARQUEE_PORT" default:"8089"`
	EnableMetrics bool   `yaml:"enable_metrics" env:"MARQUEE_METRICS" default:"true"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" env:"MARQUEE_LOG_LEVEL" default:"info"`
	JSON  bool   `yaml:"json" env:"MARQUEE_LOG_JSON" default:"false"`
}

// Default returns the built-in configuration, derived from the default
// struct tags.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(reflect.ValueOf(cfg).Elem())
	return cfg
}

// Load reads configuration from path (optional, "" skips the file),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Playback.TickInterval <= 0 {
		return fmt.Errorf("playback.tick_interval must be positive, got %s", c.Playback.TickInterval)
	}
	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	return nil
}

// EnsureDirs creates the directories the player writes into.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Resources.CacheDir, filepath.Dir(c.Store.Path)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func applyDefaults(v reflect.Value) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			applyDefaults(field)
			continue
		}
		def := t.Field(i).Tag.Get("default")
		if def == "" {
			continue
		}
		if err := setFieldValue(field, def); err != nil {
			panic(fmt.Sprintf("config: bad default for %s.%s: %v", t.Name(), t.Field(i).Name, err))
		}
	}
}

func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		// Handle nested structs recursively
		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("invalid value for %s: %w", envTag, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		} else {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
