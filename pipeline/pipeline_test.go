package pipeline_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/colorist/core"
	"github.com/Skryldev/colorist/geometry"
	"github.com/Skryldev/colorist/options"
	"github.com/Skryldev/colorist/pipeline"
)

type fixedIdentity struct{ w, h int }

func (f fixedIdentity) Identify(context.Context, string) (*core.Identity, error) {
	return &core.Identity{Width: f.w, Height: f.h}, nil
}

func compile(t *testing.T, src, dst string, opts map[string]any) []string {
	t.Helper()
	reg := options.NewRegistry()
	o, err := options.NewResolver(reg).Resolve(opts, nil)
	require.NoError(t, err)
	p := pipeline.Full("colorist", reg, fixedIdentity{1600, 900}, geometry.Engine{})
	cmd, err := p.Compile(context.Background(), core.CompileRequest{Source: src, Destination: dst, Options: o})
	require.NoError(t, err)
	assert.Equal(t, "colorist", cmd.Path)
	return cmd.Args
}

// ── Full pipeline ─────────────────────────────────────────────────────────────

func TestFull_ArgumentOrder(t *testing.T) {
	args := compile(t, "in.jpg", "out.avif", map[string]any{
		"width": 400, "height": 400, "crop": true,
		"speed": 5, "tonemap": "off", "yuv": "420",
		"cmm": "lcms", "iccin": "in.icc",
		"primaries": "bt2020", "autograde": true,
		"bpc": 10,
	})
	want := []string{
		"convert", "in.jpg",
		"--quality", "90",
		"--resize", "400,400",
		"--crop", "350,0,900,900",
		"--cmm", "lcms",
		"--iccin", "in.icc",
		"--autograde",
		"--primaries", "bt2020",
		"--bpc", "10",
		"--tonemap", "off",
		"--yuv", "420",
		"--speed", "5",
		"out.avif",
	}
	assert.Equal(t, want, args)
}

func TestFull_NoEmptyTokens(t *testing.T) {
	args := compile(t, "in.jpg", "out.avif", map[string]any{"autograde": true, "noprofile": true})
	for _, a := range args {
		assert.NotEmpty(t, a)
	}
	assert.Contains(t, args, "--autograde")
	assert.Contains(t, args, "--noprofile")
}

func TestFull_ResizeWithoutCrop(t *testing.T) {
	args := compile(t, "in.jpg", "out.webp", map[string]any{"width": 640})
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "--resize 640,0")
	assert.NotContains(t, joined, "--crop")
	assert.Equal(t, 1, strings.Count(joined, "--resize"))
}

func TestFull_QualityPerFormat(t *testing.T) {
	table := map[string]any{"quality": map[string]any{"avif": 60}}

	args := compile(t, "in.png", "out.avif", table)
	assert.Equal(t, []string{"convert", "in.png", "--quality", "60", "out.avif"}, args)

	args = compile(t, "in.png", "out.jpg", table)
	assert.NotContains(t, args, "--quality", "format missing from the table")

	table["format"] = "jpg"
	args = compile(t, "in.png", "out.avif", table)
	assert.NotContains(t, args, "--quality", "explicit format wins over the extension")
}

func TestFull_Idempotent(t *testing.T) {
	opts := map[string]any{"width": 400, "height": 300, "crop": true, "gamma": "pq"}
	first := compile(t, "in.jpg", "out.avif", opts)
	second := compile(t, "in.jpg", "out.avif", opts)
	assert.Equal(t, first, second)
}

func TestFull_EmptyPaths(t *testing.T) {
	p := pipeline.Full("colorist", options.NewRegistry(), nil, geometry.Engine{})
	_, err := p.Compile(context.Background(), core.CompileRequest{Source: "", Destination: "out.avif"})
	assert.Error(t, err)
}

func TestFull_Steps(t *testing.T) {
	p := pipeline.Full("colorist", options.NewRegistry(), nil, geometry.Engine{})
	assert.Equal(t, []string{
		"quality", "geometry",
		"options:basic", "options:input-profile", "options:output-profile", "options:output-format",
	}, p.Steps())
}

// ── Format and identify ───────────────────────────────────────────────────────

func TestFormat_OnlyFormatFlag(t *testing.T) {
	reg := options.NewRegistry()
	o, err := options.NewResolver(reg).Resolve(map[string]any{"format": "webp", "speed": 3, "width": 10}, nil)
	require.NoError(t, err)

	cmd, err := pipeline.Format("colorist", reg).Compile(context.Background(),
		core.CompileRequest{Source: "a.jpg", Destination: "a.webp", Options: o})
	require.NoError(t, err)
	assert.Equal(t, []string{"convert", "a.jpg", "--format", "webp", "a.webp"}, cmd.Args)
}

func TestIdentify(t *testing.T) {
	cmd := pipeline.Identify("/usr/bin/colorist", "a.jpg")
	assert.Equal(t, []string{"/usr/bin/colorist", "identify", "--json", "a.jpg"}, cmd.Argv())
}
