// Package vips identifies images through libvips.  It reads headers for
// every format libvips was built with, AVIF and JPEG 2000 included.
package vips

import (
	"context"
	"sync"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/colorist/core"
	apperrors "github.com/Skryldev/colorist/errors"
)

// Config configures libvips start-up.
type Config struct {
	MaxCacheSize int
	MaxWorkers   int
	ReportLeaks  bool
}

// Identifier is a core.Identifier backed by libvips.
// Safe for concurrent use across goroutines.
type Identifier struct {
	cfg Config
}

var startOnce sync.Once

// NewIdentifier initialises libvips and returns a ready Identifier.
// Call Shutdown() when the process exits.
func NewIdentifier(cfg Config) *Identifier {
	startOnce.Do(func() {
		govips.LoggingSettings(nil, govips.LogLevelError)
		govips.Startup(&govips.Config{
			ConcurrencyLevel: cfg.MaxWorkers,
			MaxCacheSize:     cfg.MaxCacheSize,
			ReportLeaks:      cfg.ReportLeaks,
		})
	})
	return &Identifier{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (i *Identifier) Shutdown() {
	govips.Shutdown()
}

func (i *Identifier) Identify(ctx context.Context, path string) (*core.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "vips.identify", err)
	}
	ref, err := govips.NewImageFromFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryUnsupportedFileType, "vips.identify", err)
	}
	defer ref.Close()

	format := govips.ImageTypes[ref.Format()]
	id := &core.Identity{
		Width:  ref.Width(),
		Height: ref.Height(),
		Depth:  bandDepth(ref.BandFormat()),
		Format: string(core.ParseFormat(format)),
		Raw: map[string]any{
			"width":  ref.Width(),
			"height": ref.Height(),
			"bands":  ref.Bands(),
			"format": format,
		},
	}
	if id.Width <= 0 || id.Height <= 0 {
		return nil, apperrors.New(apperrors.CategoryMalformedIdentify, "vips.identify", apperrors.ErrMissingDimensions)
	}
	if ref.HasICCProfile() {
		id.ICC = &core.ICCProfile{}
	}
	return id, nil
}

func bandDepth(f govips.BandFormat) int {
	switch f {
	case govips.BandFormatUshort, govips.BandFormatShort:
		return 16
	case govips.BandFormatFloat, govips.BandFormatUint, govips.BandFormatInt:
		return 32
	}
	return 8
}
