// Package probe identifies images from their headers in-process, without
// spawning the external tool.  Formats the standard library and
// golang.org/x/image cannot read (AVIF, JPEG 2000) are reported as
// unsupported; fall back to the cli identifier for those.
package probe

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Skryldev/colorist/core"
	apperrors "github.com/Skryldev/colorist/errors"
)

// Identifier implements core.Identifier with image.DecodeConfig.
type Identifier struct {
	// Fallback, when set, handles files the probe cannot read.
	Fallback core.Identifier
}

// NewIdentifier returns a probe that defers unknown formats to fallback,
// which may be nil.
func NewIdentifier(fallback core.Identifier) *Identifier {
	return &Identifier{Fallback: fallback}
}

func (p *Identifier) Identify(ctx context.Context, path string) (*core.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "probe.identify", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "probe.identify", err)
	}
	defer f.Close()

	cfg, name, err := image.DecodeConfig(f)
	if err != nil {
		if p.Fallback != nil {
			return p.Fallback.Identify(ctx, path)
		}
		return nil, apperrors.New(apperrors.CategoryUnsupportedFileType, "probe.identify",
			fmt.Errorf("%w: %v", apperrors.ErrUnsupportedFormat, err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, apperrors.New(apperrors.CategoryMalformedIdentify, "probe.identify", apperrors.ErrMissingDimensions)
	}
	return &core.Identity{
		Width:  cfg.Width,
		Height: cfg.Height,
		Depth:  depth(cfg.ColorModel),
		Format: string(core.ParseFormat(name)),
		Raw: map[string]any{
			"width":  cfg.Width,
			"height": cfg.Height,
			"format": name,
		},
	}, nil
}

// depth returns the bits per channel of a colour model.
func depth(m color.Model) int {
	switch m {
	case color.RGBA64Model, color.NRGBA64Model, color.Gray16Model, color.Alpha16Model:
		return 16
	}
	return 8
}
