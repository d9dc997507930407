// Package config loads fieldrender settings from an optional config file,
// a .env file and FIELDRENDER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// FIELDRENDER_RENDER_FORCE_SOFTWARE.
const EnvPrefix = "FIELDRENDER"

// Config holds all application settings
type Config struct {
	Render RenderConfig `mapstructure:"render"`
	Assets AssetsConfig `mapstructure:"assets"`
	Log    LogConfig    `mapstructure:"log"`
}

// RenderConfig selects the device and sizes the view
type RenderConfig struct {
	ForceSoftware       bool `mapstructure:"force_software"`        // Skip the GPU device entirely
	EnableDirtyTracking bool `mapstructure:"enable_dirty_tracking"` // Allow no-op and animation-only frames
	Scale               int  `mapstructure:"scale"`                 // Window pixels per game pixel
	ViewTilesWide       int  `mapstructure:"view_tiles_wide"`       // Viewport width in metatiles
	ViewTilesHigh       int  `mapstructure:"view_tiles_high"`       // Viewport height in metatiles
	OverscanTiles       int  `mapstructure:"overscan_tiles"`        // Border shown past the world edge
}

// AssetsConfig locates the asset tree
type AssetsConfig struct {
	Dir           string `mapstructure:"dir"`
	CacheMaxBytes int64  `mapstructure:"cache_max_bytes"`
}

// LogConfig controls logging output and file rotation
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "text" or "json"
	File       string `mapstructure:"file"`   // empty logs to stderr only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns the settings used when nothing overrides them
func DefaultConfig() *Config {
	return &Config{
		Render: RenderConfig{
			ForceSoftware:       false,
			EnableDirtyTracking: true,
			Scale:               3,
			ViewTilesWide:       15,
			ViewTilesHigh:       10,
			OverscanTiles:       3,
		},
		Assets: AssetsConfig{
			Dir:           "assets",
			CacheMaxBytes: 64 << 20,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("render.force_software", d.Render.ForceSoftware)
	v.SetDefault("render.enable_dirty_tracking", d.Render.EnableDirtyTracking)
	v.SetDefault("render.scale", d.Render.Scale)
	v.SetDefault("render.view_tiles_wide", d.Render.ViewTilesWide)
	v.SetDefault("render.view_tiles_high", d.Render.ViewTilesHigh)
	v.SetDefault("render.overscan_tiles", d.Render.OverscanTiles)
	v.SetDefault("assets.dir", d.Assets.Dir)
	v.SetDefault("assets.cache_max_bytes", d.Assets.CacheMaxBytes)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)
}

// LoadConfig reads settings from path (YAML, JSON or TOML by extension).
// A missing file is not an error: defaults and environment still apply.
// Variables from a .env file in the working directory are loaded first and
// never override variables already set.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the renderer cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Render.Scale < 1:
		return fmt.Errorf("render.scale must be at least 1, got %d", c.Render.Scale)
	case c.Render.ViewTilesWide < 1 || c.Render.ViewTilesHigh < 1:
		return fmt.Errorf("render view must be at least 1x1 tiles, got %dx%d", c.Render.ViewTilesWide, c.Render.ViewTilesHigh)
	case c.Render.OverscanTiles < 0:
		return fmt.Errorf("render.overscan_tiles must not be negative, got %d", c.Render.OverscanTiles)
	case c.Assets.Dir == "":
		return fmt.Errorf("assets.dir must be set")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// WindowSize returns the window size in screen pixels for the configured
// view and scale.
func (c *Config) WindowSize(metatileSize int) (width, height int) {
	return c.Render.ViewTilesWide * metatileSize * c.Render.Scale,
		c.Render.ViewTilesHigh * metatileSize * c.Render.Scale
}
