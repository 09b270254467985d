package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/andresmejia3/depthbrush/internal/pipeline"
	"github.com/andresmejia3/depthbrush/internal/raster"
)

// Archive drivers.
const (
	ArchiveNone     = "none"
	ArchivePostgres = "postgres"
	ArchiveRedis    = "redis"
)

type Config struct {
	Backend   BackendConfig            `mapstructure:"backend"`
	Log       LogConfig                `mapstructure:"log"`
	Archive   ArchiveConfig            `mapstructure:"archive"`
	Brush     BrushConfig              `mapstructure:"brush"`
	Diffusion pipeline.DiffusionParams `mapstructure:"diffusion"`
	Focus     pipeline.FocusParams     `mapstructure:"focus"`
	Stub      StubConfig               `mapstructure:"stub"`
	Notify    NotifyConfig             `mapstructure:"notify"`
}

type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

type ArchiveConfig struct {
	Driver string        `mapstructure:"driver"`
	URL    string        `mapstructure:"url"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type BrushConfig struct {
	Size        int    `mapstructure:"size"`
	Depth       int    `mapstructure:"depth"`
	IgnoreColor string `mapstructure:"ignore_color"`
}

type StubConfig struct {
	Addr         string        `mapstructure:"addr"`
	UploadDir    string        `mapstructure:"upload_dir"`
	MaxSize      int64         `mapstructure:"max_size"`
	AllowedTypes []string      `mapstructure:"allowed_types"`
	Steps        int           `mapstructure:"steps"`
	StepDelay    time.Duration `mapstructure:"step_delay"`
}

type NotifyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Title   string `mapstructure:"title"`
}

// Load reads configuration from, in increasing priority: defaults, the YAML
// file, then DEPTHBRUSH_* environment variables. A .env file in the working
// directory is loaded first. An empty path looks for ./depthbrush.yaml and
// tolerates its absence.
func Load(path string) (*Config, error) {
	// Load .env if present (ignore the error when there is none)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DEPTHBRUSH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("depthbrush")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Archive.Driver = strings.ToLower(strings.TrimSpace(cfg.Archive.Driver))
	if cfg.Archive.Driver == ArchivePostgres && cfg.Archive.URL == "" {
		cfg.Archive.URL = PostgresURLFromEnv()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", "http://127.0.0.1:5000/api")
	v.SetDefault("backend.timeout", 2*time.Minute)

	v.SetDefault("log.mode", "debug")

	v.SetDefault("archive.driver", ArchiveNone)
	v.SetDefault("archive.url", "")
	v.SetDefault("archive.ttl", 24*time.Hour)

	v.SetDefault("brush.size", 5)
	v.SetDefault("brush.depth", 25)
	v.SetDefault("brush.ignore_color", "#00FF00")

	d := pipeline.DefaultDiffusionParams()
	v.SetDefault("diffusion.beta", d.Beta)
	v.SetDefault("diffusion.iterations", d.Iterations)

	f := pipeline.DefaultFocusParams()
	v.SetDefault("focus.depth_range", f.DepthRange)
	v.SetDefault("focus.kernel_size_gaus", f.KernelSizeGaus)
	v.SetDefault("focus.kernel_size_bf", f.KernelSizeBf)
	v.SetDefault("focus.sigma_color", f.SigmaColor)
	v.SetDefault("focus.sigma_space", f.SigmaSpace)
	v.SetDefault("focus.gaus_sigma", f.GausSigma)

	v.SetDefault("stub.addr", "127.0.0.1:5000")
	v.SetDefault("stub.upload_dir", "./uploads")
	v.SetDefault("stub.max_size", 10*1024*1024)
	v.SetDefault("stub.allowed_types", []string{"image/jpeg", "image/png", "image/jpg", "image/webp", "image/bmp"})
	v.SetDefault("stub.steps", 10)
	v.SetDefault("stub.step_delay", 50*time.Millisecond)

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.title", "depthbrush")
}

// PostgresURLFromEnv builds a connection string from POSTGRES_* variables,
// falling back to a local default when POSTGRES_HOST is unset.
func PostgresURLFromEnv() string {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return "postgres://localhost:5432/depthbrush"
	}
	user := os.Getenv("POSTGRES_USER")
	pass := os.Getenv("POSTGRES_PASSWORD")
	name := os.Getenv("POSTGRES_DB")
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
}

// Validate rejects values no command could run with.
func (c *Config) Validate() error {
	switch c.Archive.Driver {
	case ArchiveNone, ArchivePostgres, ArchiveRedis:
	default:
		return fmt.Errorf("archive.driver must be one of none, postgres, redis; got %q", c.Archive.Driver)
	}
	if c.Archive.Driver == ArchiveRedis && c.Archive.URL == "" {
		return errors.New("archive.url is required for the redis driver")
	}
	if c.Brush.Size < 1 {
		return fmt.Errorf("brush.size must be >= 1, got %d", c.Brush.Size)
	}
	if c.Brush.Depth < 0 || c.Brush.Depth > 255 {
		return fmt.Errorf("brush.depth must be within 0-255, got %d", c.Brush.Depth)
	}
	if _, err := raster.ParseColor(c.Brush.IgnoreColor); err != nil {
		return fmt.Errorf("brush.ignore_color: %w", err)
	}
	if err := c.Diffusion.Validate(); err != nil {
		return fmt.Errorf("diffusion: %w", err)
	}
	return nil
}

// IgnoreRGBA returns the parsed ignore pen colour.
func (c *Config) IgnoreRGBA() color.RGBA {
	col, err := raster.ParseColor(c.Brush.IgnoreColor)
	if err != nil {
		return raster.DefaultIgnoreColor
	}
	return col
}

// InitialBrush is the brush a fresh surface starts with.
func (c *Config) InitialBrush(mode raster.Mode) raster.Brush {
	return raster.BrushFor(mode, c.Brush.Depth, c.Brush.Size, c.IgnoreRGBA())
}
