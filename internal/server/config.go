package server

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/tyrasd/datashader/pkg/cache"
	"github.com/tyrasd/datashader/pkg/errors"
)

// Config is the render service configuration, loaded from a TOML file.
type Config struct {
	// Listen is the address the HTTP server binds to.
	Listen string `toml:"listen"`

	// DataDir holds the CSV feeds the service may render. A request's
	// source parameter names a file <DataDir>/<source>.csv.
	DataDir string `toml:"data_dir"`

	Cache   CacheConfig       `toml:"cache"`
	Presets map[string]Preset `toml:"presets"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	// Backend is one of "file", "redis", or "none".
	Backend string `toml:"backend"`

	// Dir is the file backend's cache directory.
	Dir string `toml:"dir"`

	Redis cache.RedisConfig `toml:"redis"`
}

// Preset is a named bundle of render defaults. A request selects one
// with the preset query parameter; explicit parameters still win.
type Preset struct {
	XCol      string   `toml:"x"`
	YCol      string   `toml:"y"`
	Glyph     string   `toml:"glyph"`
	Width     int      `toml:"width"`
	Height    int      `toml:"height"`
	XMin      *float64 `toml:"x_min"`
	XMax      *float64 `toml:"x_max"`
	YMin      *float64 `toml:"y_min"`
	YMax      *float64 `toml:"y_max"`
	XAxis     string   `toml:"x_axis"`
	YAxis     string   `toml:"y_axis"`
	Reduction string   `toml:"reduction"`
	Column    string   `toml:"column"`
	Colormap  string   `toml:"colormap"`
	How       string   `toml:"how"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Listen:  ":8080",
		DataDir: "data",
		Cache:   CacheConfig{Backend: "file", Dir: ".datashader-cache"},
	}
}

// LoadConfig reads a TOML configuration file, filling unset fields with
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "reading config %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parsing config %s", path)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "", "file", "redis", "none":
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"unknown cache backend %q (want file, redis, or none)", c.Cache.Backend)
	}
	if c.Listen == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "listen address must not be empty")
	}
	return nil
}
