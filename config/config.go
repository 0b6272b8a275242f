package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	apperrors "github.com/Skryldev/colorist/errors"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "COLORIST"

// Config is the top-level configuration struct.  Default() fills every field
// with a working value so callers can override only what they need.
type Config struct {
	// Bin is the path of the external executable.
	Bin string `mapstructure:"bin" toml:"bin" default:"colorist" validate:"required"`
	// Timeout bounds a single child process; 0 waits forever.
	Timeout time.Duration `mapstructure:"timeout" toml:"timeout" default:"2m" validate:"gte=0"`
	// Strict turns invalid and unknown option values into errors.
	Strict bool `mapstructure:"strict" toml:"strict"`
	// Identifier selects how source dimensions are read: "cli" runs
	// `identify --json`, "probe" decodes headers in-process and falls back to
	// cli, "vips" reads headers through libvips.
	Identifier string `mapstructure:"identifier" toml:"identifier" default:"cli" validate:"oneof=cli probe vips"`

	// Worker pool controls.
	WorkerCount int           `mapstructure:"worker_count" toml:"worker_count" validate:"gte=0"` // 0 = runtime.NumCPU()
	QueueSize   int           `mapstructure:"queue_size" toml:"queue_size" default:"256" validate:"gt=0"`
	JobTimeout  time.Duration `mapstructure:"job_timeout" toml:"job_timeout" default:"5m" validate:"gte=0"`

	// MaxImageSize rejects larger sources before spawning, e.g. "64M".  Empty = no limit.
	MaxImageSize string `mapstructure:"max_image_size" toml:"max_image_size"`
	// AspectTolerance is the epsilon used when comparing aspect ratios; 0 compares exactly.
	AspectTolerance float64 `mapstructure:"aspect_tolerance" toml:"aspect_tolerance" validate:"gte=0,lt=1"`
	// CleanupOnFailure removes a partially written destination after a failed conversion.
	CleanupOnFailure bool `mapstructure:"cleanup_on_failure" toml:"cleanup_on_failure" default:"true"`

	// Template names the presentation template used for converted files.
	Template string `mapstructure:"template" toml:"template" default:"image"`
	// Templates optionally maps output formats to templates.  When set, a
	// format without an entry is a missing template.
	Templates map[string]string `mapstructure:"templates" toml:"templates,omitempty"`
	Formats   []string          `mapstructure:"formats" toml:"formats" default:"[\"avif\",\"webp\"]" validate:"dive,oneof=avif bmp jpg jp2 j2k png tiff webp"`
	Sizes     []int             `mapstructure:"sizes" toml:"sizes" default:"[1920,1140,640,320]" validate:"dive,gt=0"`

	// ThumbsDir receives thumbnails; empty writes them next to the source.
	ThumbsDir string `mapstructure:"thumbs_dir" toml:"thumbs_dir"`
	// JobsDir is the job-file directory name, relative to each destination.
	JobsDir string `mapstructure:"jobs_dir" toml:"jobs_dir" default:".jobs" validate:"required"`

	// Defaults is the flat option name → value map merged under every request.
	Defaults map[string]any `mapstructure:"defaults" toml:"defaults"`

	Log    LogConfig    `mapstructure:"log" toml:"log"`
	Server ServerConfig `mapstructure:"server" toml:"server"`
	Watch  WatchConfig  `mapstructure:"watch" toml:"watch"`
}

// LogConfig configures the logger built by hooks.NewLogger.
type LogConfig struct {
	Level   string `mapstructure:"level" toml:"level" default:"info" validate:"oneof=debug info warn error"`
	Backend string `mapstructure:"backend" toml:"backend" default:"zap" validate:"oneof=zap slog"`
	// Encoding is "console" or "json".
	Encoding string `mapstructure:"encoding" toml:"encoding" default:"console" validate:"oneof=console json"`
	// File enables rotated file output in addition to stderr.
	File       string `mapstructure:"file" toml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb" default:"100" validate:"gt=0"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups" default:"3" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" toml:"max_age_days" default:"28" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress" toml:"compress"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" toml:"addr" default:":8080" validate:"required"`
	Root         string        `mapstructure:"root" toml:"root" default:"." validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" toml:"read_timeout" default:"30s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" toml:"write_timeout" default:"5m"`
}

// WatchConfig configures the upload-directory watcher.
type WatchConfig struct {
	Dirs     []string      `mapstructure:"dirs" toml:"dirs"`
	Formats  []string      `mapstructure:"formats" toml:"formats" default:"[\"avif\",\"webp\"]" validate:"dive,oneof=avif bmp jpg jp2 j2k png tiff webp"`
	Debounce time.Duration `mapstructure:"debounce" toml:"debounce" default:"500ms" validate:"gte=0"`
}

// envKeys are bound explicitly so viper.Unmarshal sees environment overrides
// for keys that are absent from the config file.
var envKeys = []string{
	"bin", "timeout", "strict", "identifier", "worker_count", "queue_size", "job_timeout",
	"max_image_size", "aspect_tolerance", "cleanup_on_failure", "template",
	"thumbs_dir", "jobs_dir",
	"log.level", "log.backend", "log.encoding", "log.file",
	"server.addr", "server.root",
	"watch.debounce",
}

// Default returns a Config populated with production defaults.
func Default() Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config: invalid default tag: %v", err))
	}
	c.Defaults = map[string]any{
		"speed":   0,
		"tonemap": "off",
		"yuv":     "420",
	}
	return c
}

// Load reads path (YAML, TOML or JSON, by extension) and COLORIST_* environment
// variables over Default().  An empty path reads the environment only.
func Load(path string) (Config, error) {
	c := Default()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return c, apperrors.Wrap(apperrors.CategoryConfig, "config.env", err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, apperrors.Wrap(apperrors.CategoryConfig, "config.read", err)
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, apperrors.Wrap(apperrors.CategoryConfig, "config.decode", err)
	}
	if err := Validate(c); err != nil {
		return c, err
	}
	return c, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if err := validate.Struct(c); err != nil {
		return apperrors.Wrap(apperrors.CategoryConfig, "config.validate", err)
	}
	if c.MaxImageSize != "" {
		if _, err := bytefmt.ToBytes(c.MaxImageSize); err != nil {
			return apperrors.Wrap(apperrors.CategoryConfig, "config.max_image_size", err)
		}
	}
	return nil
}

// MaxImageBytes returns MaxImageSize in bytes; 0 means no limit.
func (c Config) MaxImageBytes() int64 {
	if c.MaxImageSize == "" {
		return 0
	}
	n, err := bytefmt.ToBytes(c.MaxImageSize)
	if err != nil {
		return 0
	}
	return int64(n)
}

// Dump writes c as TOML.
func (c Config) Dump(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
