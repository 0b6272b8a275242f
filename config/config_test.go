package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/colorist/config"
	apperrors "github.com/Skryldev/colorist/errors"
)

func TestDefault(t *testing.T) {
	c := config.Default()
	assert.Equal(t, "colorist", c.Bin)
	assert.Equal(t, 2*time.Minute, c.Timeout)
	assert.Equal(t, 256, c.QueueSize)
	assert.Equal(t, ".jobs", c.JobsDir)
	assert.Equal(t, "image", c.Template)
	assert.Equal(t, []string{"avif", "webp"}, c.Formats)
	assert.Equal(t, []int{1920, 1140, 640, 320}, c.Sizes)
	assert.True(t, c.CleanupOnFailure)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "zap", c.Log.Backend)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, 500*time.Millisecond, c.Watch.Debounce)
	assert.Equal(t, map[string]any{"speed": 0, "tonemap": "off", "yuv": "420"}, c.Defaults)
	require.NoError(t, config.Validate(c))
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "colorist.yaml", `
bin: /usr/local/bin/colorist
timeout: 30s
strict: true
formats: [webp, png]
max_image_size: 64M
defaults:
  speed: 6
log:
  level: debug
  encoding: json
`)
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/colorist", c.Bin)
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.True(t, c.Strict)
	assert.Equal(t, []string{"webp", "png"}, c.Formats)
	assert.Equal(t, int64(64*1024*1024), c.MaxImageBytes())
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "json", c.Log.Encoding)
	assert.Equal(t, "zap", c.Log.Backend, "untouched keys keep their default")
	assert.EqualValues(t, 6, c.Defaults["speed"])
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "colorist.toml", `
bin = "colorist-1.0"
template = "picture"

[server]
addr = ":9090"
`)
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "colorist-1.0", c.Bin)
	assert.Equal(t, "picture", c.Template)
	assert.Equal(t, ":9090", c.Server.Addr)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("COLORIST_BIN", "/opt/colorist")
	t.Setenv("COLORIST_LOG_LEVEL", "warn")
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "/opt/colorist", c.Bin)
	assert.Equal(t, "warn", c.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfig))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*config.Config){
		"empty bin":          func(c *config.Config) { c.Bin = "" },
		"tolerance too wide": func(c *config.Config) { c.AspectTolerance = 1 },
		"unknown format":     func(c *config.Config) { c.Formats = []string{"gif"} },
		"bad size":           func(c *config.Config) { c.MaxImageSize = "lots" },
		"bad log level":      func(c *config.Config) { c.Log.Level = "chatty" },
		"zero queue":         func(c *config.Config) { c.QueueSize = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := config.Default()
			mutate(&c)
			err := config.Validate(c)
			require.Error(t, err)
			assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfig))
		})
	}
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, config.Default().Dump(&buf))
	out := buf.String()
	assert.Contains(t, out, `bin = "colorist"`)
	assert.Contains(t, out, `jobs_dir = ".jobs"`)
	assert.Contains(t, out, "[log]")
}
