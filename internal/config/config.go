package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/menta2k/blur-studio/pkg/blur"
)

// EnvPrefix prefixes environment overrides, e.g. BLURSTUDIO_BLUR_INTENSITY
const EnvPrefix = "BLURSTUDIO"

// Config holds the application configuration
type Config struct {
	Segmentation SegmentationConfig `mapstructure:"segmentation"`
	Blur         BlurConfig         `mapstructure:"blur"`
	Brush        BrushConfig        `mapstructure:"brush"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Output       OutputConfig       `mapstructure:"output"`
	Log          LogConfig          `mapstructure:"log"`
}

// SegmentationConfig selects and tunes the foreground provider
type SegmentationConfig struct {
	Backend  string        `mapstructure:"backend"` // saliency, ollama or llamacpp
	Model    string        `mapstructure:"model"`
	URL      string        `mapstructure:"url"`
	MaxDim   int           `mapstructure:"max_dim"`
	GridSize int           `mapstructure:"grid_size"`
	Feather  float64       `mapstructure:"feather"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// BlurConfig holds the initial edit parameters
type BlurConfig struct {
	Variant   string  `mapstructure:"variant"`
	Intensity int     `mapstructure:"intensity"`
	Angle     float64 `mapstructure:"angle"`
	Invert    bool    `mapstructure:"invert"`
}

type BrushConfig struct {
	EraseRadius  int     `mapstructure:"erase_radius"`
	PaintRadius  int     `mapstructure:"paint_radius"`
	PaintBlur    float64 `mapstructure:"paint_blur"`
	EraseSpacing float64 `mapstructure:"erase_spacing"`
}

// CacheConfig configures the segmentation cache. An empty Redis.Addr keeps
// the cache in memory.
type CacheConfig struct {
	Enabled    bool        `mapstructure:"enabled"`
	MemorySize int         `mapstructure:"memory_size"`
	Redis      RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	Format   string `mapstructure:"format"`
	Quality  int    `mapstructure:"quality"`
	Lossless bool   `mapstructure:"lossless"`
	Prefix   string `mapstructure:"prefix"`
	Suffix   string `mapstructure:"suffix"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"` // release or debug
}

// Load reads a YAML (or JSON, by extension) file on top of the defaults.
// Environment variables override both.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	if ext := strings.TrimPrefix(filepath.Ext(configPath), "."); ext == "json" {
		v.SetConfigType("json")
	} else {
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// New loads the file at path, falling back to defaults (with environment
// overrides) when it cannot be read.
func New(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return fromEnv()
	}
	return cfg
}

// Default returns a configuration with default values
func Default() *Config {
	return getDefaultConfig()
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func fromEnv() *Config {
	var cfg Config
	if err := newViper().Unmarshal(&cfg); err != nil {
		return getDefaultConfig()
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	d := getDefaultConfig()

	v.SetDefault("segmentation.backend", d.Segmentation.Backend)
	v.SetDefault("segmentation.model", d.Segmentation.Model)
	v.SetDefault("segmentation.url", d.Segmentation.URL)
	v.SetDefault("segmentation.max_dim", d.Segmentation.MaxDim)
	v.SetDefault("segmentation.grid_size", d.Segmentation.GridSize)
	v.SetDefault("segmentation.feather", d.Segmentation.Feather)
	v.SetDefault("segmentation.timeout", d.Segmentation.Timeout)

	v.SetDefault("blur.variant", d.Blur.Variant)
	v.SetDefault("blur.intensity", d.Blur.Intensity)
	v.SetDefault("blur.angle", d.Blur.Angle)
	v.SetDefault("blur.invert", d.Blur.Invert)

	v.SetDefault("brush.erase_radius", d.Brush.EraseRadius)
	v.SetDefault("brush.paint_radius", d.Brush.PaintRadius)
	v.SetDefault("brush.paint_blur", d.Brush.PaintBlur)
	v.SetDefault("brush.erase_spacing", d.Brush.EraseSpacing)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.memory_size", d.Cache.MemorySize)
	v.SetDefault("cache.redis.addr", d.Cache.Redis.Addr)
	v.SetDefault("cache.redis.password", d.Cache.Redis.Password)
	v.SetDefault("cache.redis.db", d.Cache.Redis.DB)
	v.SetDefault("cache.redis.ttl", d.Cache.Redis.TTL)
	v.SetDefault("cache.redis.prefix", d.Cache.Redis.Prefix)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.quality", d.Output.Quality)
	v.SetDefault("output.lossless", d.Output.Lossless)
	v.SetDefault("output.prefix", d.Output.Prefix)
	v.SetDefault("output.suffix", d.Output.Suffix)

	v.SetDefault("log.mode", d.Log.Mode)
}

func getDefaultConfig() *Config {
	return &Config{
		Segmentation: SegmentationConfig{
			Backend:  "saliency",
			Model:    "llava:13b",
			URL:      "",
			MaxDim:   768,
			GridSize: 128,
			Feather:  0.08,
			Timeout:  5 * time.Minute,
		},
		Blur: BlurConfig{
			Variant:   "linear",
			Intensity: 50,
		},
		Brush: BrushConfig{
			EraseRadius:  40,
			PaintRadius:  30,
			PaintBlur:    50,
			EraseSpacing: 5,
		},
		Cache: CacheConfig{
			Enabled:    true,
			MemorySize: 16,
			Redis: RedisConfig{
				TTL:    24 * time.Hour,
				Prefix: "blurstudio:segment:",
			},
		},
		Output: OutputConfig{
			Dir:     "./output",
			Format:  "jpg",
			Quality: 90,
			Suffix:  "_blur",
		},
		Log: LogConfig{
			Mode: "debug",
		},
	}
}

// SaveToFile writes the configuration as YAML or JSON, chosen by extension
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("segmentation", map[string]any{
		"backend":   c.Segmentation.Backend,
		"model":     c.Segmentation.Model,
		"url":       c.Segmentation.URL,
		"max_dim":   c.Segmentation.MaxDim,
		"grid_size": c.Segmentation.GridSize,
		"feather":   c.Segmentation.Feather,
		"timeout":   c.Segmentation.Timeout.String(),
	})
	v.Set("blur", map[string]any{
		"variant":   c.Blur.Variant,
		"intensity": c.Blur.Intensity,
		"angle":     c.Blur.Angle,
		"invert":    c.Blur.Invert,
	})
	v.Set("brush", map[string]any{
		"erase_radius":  c.Brush.EraseRadius,
		"paint_radius":  c.Brush.PaintRadius,
		"paint_blur":    c.Brush.PaintBlur,
		"erase_spacing": c.Brush.EraseSpacing,
	})
	v.Set("cache", map[string]any{
		"enabled":     c.Cache.Enabled,
		"memory_size": c.Cache.MemorySize,
		"redis": map[string]any{
			"addr":     c.Cache.Redis.Addr,
			"password": c.Cache.Redis.Password,
			"db":       c.Cache.Redis.DB,
			"ttl":      c.Cache.Redis.TTL.String(),
			"prefix":   c.Cache.Redis.Prefix,
		},
	})
	v.Set("output", map[string]any{
		"dir":      c.Output.Dir,
		"format":   c.Output.Format,
		"quality":  c.Output.Quality,
		"lossless": c.Output.Lossless,
		"prefix":   c.Output.Prefix,
		"suffix":   c.Output.Suffix,
	})
	v.Set("log", map[string]any{"mode": c.Log.Mode})

	if err := v.WriteConfigAs(filename); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Segmentation.Backend {
	case "saliency", "ollama", "llamacpp":
	default:
		return fmt.Errorf("segmentation.backend must be saliency, ollama or llamacpp, got %q", c.Segmentation.Backend)
	}
	if c.Segmentation.Backend != "saliency" && c.Segmentation.Model == "" {
		return fmt.Errorf("segmentation.model is required for the %s backend", c.Segmentation.Backend)
	}
	if c.Segmentation.Feather < 0 || c.Segmentation.Feather > 1 {
		return fmt.Errorf("segmentation.feather must be between 0 and 1")
	}

	if _, err := blur.ParseVariant(c.Blur.Variant); err != nil {
		return fmt.Errorf("blur.variant: %w", err)
	}
	if c.Blur.Intensity < 0 || c.Blur.Intensity > 100 {
		return fmt.Errorf("blur.intensity must be between 0 and 100")
	}

	if c.Brush.EraseRadius <= 0 || c.Brush.PaintRadius <= 0 {
		return fmt.Errorf("brush radii must be positive")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}
	switch c.Output.Format {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("output.format must be jpg, png or webp, got %q", c.Output.Format)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "blur-studio", "config.yaml")
}
