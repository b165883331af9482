// Package config loads kitbash settings.
//
// Settings come from three layers, later ones winning: built-in defaults, an
// optional TOML file ($XDG_CONFIG_HOME/kitbash/config.toml), and KITBASH_*
// environment variables. Command-line flags are applied on top by the CLI.
//
//	# ~/.config/kitbash/config.toml
//	export_scale = 4.0
//	max_artifact_side = 8192
//
//	[cache]
//	backend = "redis"
//	redis_addr = "localhost:6379"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/matzehuels/kitbash/pkg/cache"
	"github.com/matzehuels/kitbash/pkg/errors"
	"github.com/matzehuels/kitbash/pkg/export"
	"github.com/matzehuels/kitbash/pkg/transform"
)

// AppName names the config and cache directories.
const AppName = "kitbash"

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Config is the full set of settings.
type Config struct {
	ExportScale     float64      `toml:"export_scale" env:"KITBASH_EXPORT_SCALE"`
	MaxArtifactSide int          `toml:"max_artifact_side" env:"KITBASH_MAX_ARTIFACT_SIDE"`
	MaxExportPixels int64        `toml:"max_export_pixels" env:"KITBASH_MAX_EXPORT_PIXELS"`
	PreviewZoom     float64      `toml:"preview_zoom" env:"KITBASH_PREVIEW_ZOOM"`
	Cache           CacheConfig  `toml:"cache"`
	Server          ServerConfig `toml:"server"`
}

// CacheConfig selects and configures the artifact cache.
type CacheConfig struct {
	Backend       string        `toml:"backend" env:"KITBASH_CACHE_BACKEND"`
	Dir           string        `toml:"dir" env:"KITBASH_CACHE_DIR"`
	TTL           time.Duration `toml:"ttl" env:"KITBASH_CACHE_TTL"`
	RedisAddr     string        `toml:"redis_addr" env:"KITBASH_REDIS_ADDR"`
	RedisPassword string        `toml:"redis_password" env:"KITBASH_REDIS_PASSWORD"`
	RedisDB       int           `toml:"redis_db" env:"KITBASH_REDIS_DB"`
}

// ServerConfig configures `kitbash serve`.
type ServerConfig struct {
	Addr           string `toml:"addr" env:"KITBASH_SERVER_ADDR"`
	MaxUploadBytes int64  `toml:"max_upload_bytes" env:"KITBASH_MAX_UPLOAD_BYTES"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ExportScale:     transform.DefaultExportScale,
		MaxArtifactSide: export.DefaultMaxArtifactSide,
		MaxExportPixels: export.DefaultMaxTotalPixels,
		PreviewZoom:     transform.DefaultZoom,
		Cache: CacheConfig{
			Backend:   BackendFile,
			TTL:       cache.DefaultTTL,
			RedisAddr: "localhost:6379",
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			MaxUploadBytes: 32 << 20,
		},
	}
}

// Load builds the configuration from defaults, the file at path and the
// environment. An empty path means DefaultPath; a missing file is not an
// error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = DefaultCacheDir()
	}
	return cfg, cfg.Validate()
}

func loadFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return errors.New(errors.ErrCodeInvalidInput, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Validate rejects settings no component can work with. An export scale
// outside the export range is accepted here; callers clamp it.
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case BackendFile, BackendRedis, BackendNone:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q (want file, redis or none)", c.Cache.Backend)
	}
	if c.MaxArtifactSide < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "max_artifact_side must be positive, got %d", c.MaxArtifactSide)
	}
	if c.MaxExportPixels < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "max_export_pixels must be positive, got %d", c.MaxExportPixels)
	}
	if c.Cache.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "cache ttl must not be negative")
	}
	if c.Server.MaxUploadBytes < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "max_upload_bytes must be positive")
	}
	return nil
}

// Limits returns the export limits described by the configuration.
func (c Config) Limits() export.Limits {
	return export.Limits{MaxArtifactSide: c.MaxArtifactSide, MaxTotalPixels: c.MaxExportPixels}
}

// DefaultPath returns $XDG_CONFIG_HOME/kitbash/config.toml, falling back to
// ~/.config. It returns "" when no home directory is known.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName, "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", AppName, "config.toml")
}

// DefaultCacheDir returns $XDG_CACHE_HOME/kitbash, falling back to
// ~/.cache/kitbash, or "" when no home directory is known.
func DefaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", AppName)
}
