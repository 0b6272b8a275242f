// Package geometry computes the resize target and crop rectangle of a
// conversion from the requested and the source dimensions.
package geometry

import (
	"context"
	"math"

	"github.com/Skryldev/colorist/core"
	apperrors "github.com/Skryldev/colorist/errors"
)

// Plan is the geometry of one conversion.  A nil Resize emits no resize
// argument; a nil Crop emits no crop argument.
type Plan struct {
	Resize   *core.Dimensions
	Crop     *core.CropRectangle
	Fit      core.Fit
	Strategy string
}

// Engine turns resolved options into a Plan.  The zero value compares aspect
// ratios exactly and picks its crop strategy from the options.
type Engine struct {
	// Tolerance is the largest aspect-ratio difference treated as equal.
	Tolerance float64
	// Strategy, when set, replaces the per-request strategy selection.
	Strategy core.CropStrategy
}

// Target applies the square fallback: when only one of width and height is
// given, the other takes the same value.  ok is false when neither is given.
func Target(opts *core.Options) (core.Dimensions, bool) {
	w, h := opts.Width, opts.Height
	switch {
	case w <= 0 && h <= 0:
		return core.Dimensions{}, false
	case w <= 0:
		w = h
	case h <= 0:
		h = w
	}
	return core.Dimensions{Width: w, Height: h}, true
}

// FitAxis returns the source axis kept in full when cropping a source of
// aspect ratio ar to a target of aspect ratio ar1.
func FitAxis(ar, ar1 float64) core.Fit {
	if ar < ar1 {
		return core.FitWidth
	}
	return core.FitHeight
}

// SameRatio reports whether a and b are equal within tolerance.  A zero
// tolerance compares exactly.
func SameRatio(a, b, tolerance float64) bool {
	if tolerance <= 0 {
		return a == b
	}
	return math.Abs(a-b) <= tolerance
}

// Plan computes the geometry for opts.  lookup is called once, and only when
// cropping with a target size.
func (e Engine) Plan(ctx context.Context, src string, opts *core.Options, lookup core.Identifier) (Plan, error) {
	if !opts.Crop {
		if opts.Width <= 0 && opts.Height <= 0 {
			return Plan{}, nil
		}
		return Plan{Resize: &core.Dimensions{Width: opts.Width, Height: opts.Height}}, nil
	}

	target, ok := Target(opts)
	if !ok {
		return Plan{}, nil
	}
	if lookup == nil {
		return Plan{}, apperrors.New(apperrors.CategoryPipeline, "geometry", apperrors.ErrMissingDimensions)
	}
	id, err := lookup.Identify(ctx, src)
	if err != nil {
		return Plan{}, err
	}
	return e.Compute(id.Dimensions(), target, e.strategyFor(opts))
}

// Compute is the pure part of Plan: it crops source to the aspect ratio of
// target with strategy, or resizes only when the ratios match.
func (e Engine) Compute(source, target core.Dimensions, strategy core.CropStrategy) (Plan, error) {
	if source.Width <= 0 || source.Height <= 0 {
		return Plan{}, apperrors.New(apperrors.CategoryMalformedIdentify, "geometry", apperrors.ErrMissingDimensions)
	}
	plan := Plan{Resize: &target}

	ar, ar1 := source.Ratio(), target.Ratio()
	if SameRatio(ar, ar1, e.Tolerance) {
		return plan, nil
	}

	if strategy == nil {
		strategy = Centered{}
	}
	fit := FitAxis(ar, ar1)
	rect := strategy.Crop(source, ar1, fit)
	plan.Crop = &rect
	plan.Fit = fit
	plan.Strategy = strategy.Name()
	return plan, nil
}

func (e Engine) strategyFor(opts *core.Options) core.CropStrategy {
	if e.Strategy != nil {
		return e.Strategy
	}
	if opts.Focus {
		return Focus{X: opts.FocusX, Y: opts.FocusY}
	}
	return Centered{}
}
