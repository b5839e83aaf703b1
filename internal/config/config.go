package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Output    OutputConfig    `mapstructure:"output"`
	Visualise VisualiseConfig `mapstructure:"visualise"`
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

// ExtractConfig holds mask to polygon settings
type ExtractConfig struct {
	MinArea           int     `mapstructure:"min_area"`
	SimplifyTolerance float64 `mapstructure:"simplify_tolerance"`
}

type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	MaskFormat      string `mapstructure:"mask_format"`
	OverlayFormat   string `mapstructure:"overlay_format"`
	OverlayQuality  int    `mapstructure:"overlay_quality"`
	OverlayLossless bool   `mapstructure:"overlay_lossless"`
}

type VisualiseConfig struct {
	MaskAlpha   float64 `mapstructure:"mask_alpha"`
	StrokeWidth float64 `mapstructure:"stroke_width"`
}

type ServerConfig struct {
	Port          string        `mapstructure:"port"`
	Mode          string        `mapstructure:"mode"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	// Categories is the category file used by the convert endpoint.
	Categories string `mapstructure:"categories"`
}

type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.mode", "development")

	v.SetDefault("extract.min_area", 10)
	v.SetDefault("extract.simplify_tolerance", 0.25)

	v.SetDefault("pipeline.workers", 0)

	v.SetDefault("output.mask_format", "tif")
	v.SetDefault("output.overlay_format", "png")
	v.SetDefault("output.overlay_quality", 90)
	v.SetDefault("output.overlay_lossless", false)

	v.SetDefault("visualise.mask_alpha", 0.4)
	v.SetDefault("visualise.stroke_width", 2.0)

	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_upload_size", 32*1024*1024)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.categories", "categories.json")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.size", 256)
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("COCOMASK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration with default values
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads a YAML configuration file. An empty path means the default
// location. A missing file yields the defaults; COCOMASK_* environment
// variables override both.
func Load(path string) (*Config, error) {
	if path == "" {
		path = GetConfigPath()
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Extract.MinArea < 1 {
		return fmt.Errorf("extract.min_area must be at least 1")
	}

	if c.Extract.SimplifyTolerance < 0 {
		return fmt.Errorf("extract.simplify_tolerance cannot be negative")
	}

	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers cannot be negative")
	}

	switch strings.ToLower(c.Output.MaskFormat) {
	case "tif", "tiff", "png":
	default:
		return fmt.Errorf("output.mask_format must be tif or png")
	}

	switch strings.ToLower(c.Output.OverlayFormat) {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("output.overlay_format must be png, jpg or webp")
	}

	if c.Output.OverlayQuality < 1 || c.Output.OverlayQuality > 100 {
		return fmt.Errorf("output.overlay_quality must be between 1 and 100")
	}

	if c.Visualise.MaskAlpha < 0 || c.Visualise.MaskAlpha > 1 {
		return fmt.Errorf("visualise.mask_alpha must be between 0 and 1")
	}

	if c.Visualise.StrokeWidth < 0 {
		return fmt.Errorf("visualise.stroke_width cannot be negative")
	}

	if c.Server.MaxUploadSize < 1 {
		return fmt.Errorf("server.max_upload_size must be positive")
	}

	switch c.Cache.Backend {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be none, memory or redis")
	}

	if c.Cache.Backend == "memory" && c.Cache.Size < 1 {
		return fmt.Errorf("cache.size must be positive")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "cocomask", "config.yaml")
}
