package geometry

import (
	"math"

	"github.com/Skryldev/colorist/core"
)

// span returns the crop size: the fit axis in full, the other axis derived
// from ratio and kept within 1..source.
func span(src core.Dimensions, ratio float64, fit core.Fit) (w, h int) {
	if fit == core.FitWidth {
		w = src.Width
		h = clamp(int(math.Floor(float64(w)/ratio)), 1, src.Height)
		return w, h
	}
	h = src.Height
	w = clamp(int(math.Floor(float64(h)*ratio)), 1, src.Width)
	return w, h
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Centered crops the middle of the source.
type Centered struct{}

func (Centered) Name() string { return "centered" }

func (Centered) Crop(src core.Dimensions, ratio float64, fit core.Fit) core.CropRectangle {
	w, h := span(src, ratio, fit)
	return core.CropRectangle{
		X:      (src.Width - w) / 2,
		Y:      (src.Height - h) / 2,
		Width:  w,
		Height: h,
	}
}

// Focus crops around a focal point given as fractions (0..1) of the source
// width and height.  The rectangle is shifted to stay inside the source.
type Focus struct {
	X, Y float64
}

func (Focus) Name() string { return "focus" }

func (f Focus) Crop(src core.Dimensions, ratio float64, fit core.Fit) core.CropRectangle {
	w, h := span(src, ratio, fit)
	cx := f.X * float64(src.Width)
	cy := f.Y * float64(src.Height)
	return core.CropRectangle{
		X:      clamp(int(math.Floor(cx-float64(w)/2)), 0, src.Width-w),
		Y:      clamp(int(math.Floor(cy-float64(h)/2)), 0, src.Height-h),
		Width:  w,
		Height: h,
	}
}
