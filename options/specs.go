// Package options defines the option table of the external tool and resolves
// caller input against it.
package options

import (
	"strconv"

	"github.com/Skryldev/colorist/core"
)

// Enumerations accepted by the tool.
var (
	CMMs      = []string{"colorist", "lcms"}
	Gammas    = []string{"pq", "hlg", "source"}
	Primaries = []string{"bt709", "bt2020", "p3"}
	Tonemaps  = []string{"on", "off"}
	YUVs      = []string{"444", "422", "420", "yv12"}
)

// DefaultQuality is applied when neither configuration nor caller set one.
const DefaultQuality = 90

func formatNames() []string {
	out := make([]string, 0, len(core.Formats))
	for _, f := range core.Formats {
		out = append(out, string(f))
	}
	return out
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func str(s string) (string, bool) { return s, s != "" }

func positive(n int) (string, bool) {
	if n > 0 {
		return itoa(n), true
	}
	return "", false
}

func flag(b bool) (string, bool) { return "", b }

// Builtin returns the option table in command order.
func Builtin() []core.OptionSpec {
	return []core.OptionSpec{
		// Geometry and quality, consumed by dedicated compiler steps.
		{Name: "width", Kind: core.KindGeometry, Normalize: Dimension()},
		{Name: "height", Kind: core.KindGeometry, Normalize: Dimension()},
		{Name: "crop", Kind: core.KindGeometry, Default: false, Normalize: Crop()},
		{Name: "focus", Kind: core.KindGeometry, Default: false, Normalize: Flag()},
		{Name: "focusx", Kind: core.KindGeometry, Min: 0, Max: 1, Default: 0.5, Normalize: Unit()},
		{Name: "focusy", Kind: core.KindGeometry, Min: 0, Max: 1, Default: 0.5, Normalize: Unit()},
		{Name: "quality", Flag: "--quality", Kind: core.KindQuality, Min: 0, Max: 100, Default: DefaultQuality, Normalize: QualityValue()},

		// Basic options.
		{
			Name: "jobs", Flag: "--jobs", Group: core.GroupBasic, Kind: core.KindPositive, Default: 0,
			Normalize: Positive(),
			Arg:       func(o *core.Options) (string, bool) { return positive(o.Jobs) },
		},
		{
			Name: "cmm", Flag: "--cmm", Group: core.GroupBasic, Kind: core.KindEnum, Values: CMMs,
			Normalize: Enum(CMMs...),
			Arg:       func(o *core.Options) (string, bool) { return str(o.CMM) },
		},
		{
			Name: "deflum", Flag: "--deflum", Group: core.GroupBasic, Kind: core.KindNumber,
			Normalize: Number(),
			Arg: func(o *core.Options) (string, bool) {
				if o.DefLum == nil {
					return "", false
				}
				return ftoa(*o.DefLum), true
			},
		},
		{
			Name: "hlglum", Flag: "--hlglum", Group: core.GroupBasic, Kind: core.KindNumber,
			Normalize: Number(),
			Arg: func(o *core.Options) (string, bool) {
				if o.HLGLum == nil {
					return "", false
				}
				return ftoa(*o.HLGLum), true
			},
		},

		// Input profile.
		{
			Name: "iccin", Flag: "--iccin", Group: core.GroupInputProfile, Kind: core.KindFree,
			Normalize: Free(),
			Arg:       func(o *core.Options) (string, bool) { return str(o.ICCIn) },
		},
		{
			Name: "frameindex", Flag: "--frameindex", Group: core.GroupInputProfile, Kind: core.KindPositive, Default: 0,
			Normalize: Positive(),
			Arg:       func(o *core.Options) (string, bool) { return positive(o.FrameIndex) },
		},

		// Output profile.
		{
			Name: "iccout", Flag: "--iccout", Group: core.GroupOutputProfile, Kind: core.KindFree,
			Normalize: Free(),
			Arg:       func(o *core.Options) (string, bool) { return str(o.ICCOut) },
		},
		{
			Name: "autograde", Flag: "--autograde", Group: core.GroupOutputProfile, Kind: core.KindFlag, Default: false,
			Normalize: Flag(),
			Arg:       func(o *core.Options) (string, bool) { return flag(o.Autograde) },
		},
		{
			Name: "copyright", Flag: "--copyright", Group: core.GroupOutputProfile, Kind: core.KindFree,
			Normalize: Free(),
			Arg:       func(o *core.Options) (string, bool) { return str(o.Copyright) },
		},
		{
			Name: "description", Flag: "--description", Group: core.GroupOutputProfile, Kind: core.KindFree,
			Normalize: Free(),
			Arg:       func(o *core.Options) (string, bool) { return str(o.Description) },
		},
		{
			Name: "gamma", Flag: "--gamma", Group: core.GroupOutputProfile, Kind: core.KindEnum, Values: Gammas,
			Normalize: Enum(Gammas...),
			Arg:       func(o *core.Options) (string, bool) { return str(o.Gamma) },
		},
		{
			Name: "luminance", Flag: "--luminance", Group: core.GroupOutputProfile, Kind: core.KindNumber,
			Normalize: Integer(),
			Arg: func(o *core.Options) (string, bool) {
				if o.Luminance == nil {
					return "", false
				}
				return itoa(*o.Luminance), true
			},
		},
		{
			Name: "primaries", Flag: "--primaries", Group: core.GroupOutputProfile, Kind: core.KindEnum, Values: Primaries,
			Normalize: Enum(Primaries...),
			Arg:       func(o *core.Options) (string, bool) { return str(o.Primaries) },
		},
		{
			Name: "noprofile", Flag: "--noprofile", Group: core.GroupOutputProfile, Kind: core.KindFlag, Default: false,
			Normalize: Flag(),
			Arg:       func(o *core.Options) (string, bool) { return flag(o.NoProfile) },
		},

		// Output format.
		{
			Name: "bpc", Flag: "--bpc", Group: core.GroupOutputFormat, Kind: core.KindIntRange, Min: 8, Max: 16,
			Normalize: IntRange(8, 16),
			Arg: func(o *core.Options) (string, bool) {
				if o.BPC == nil {
					return "", false
				}
				return itoa(*o.BPC), true
			},
		},
		{
			Name: "format", Flag: "--format", Group: core.GroupOutputFormat, Kind: core.KindEnum, Values: formatNames(),
			Normalize: OutputFormat(),
			Arg:       func(o *core.Options) (string, bool) { return str(string(o.Format)) },
		},
		{
			Name: "rate", Flag: "--rate", Group: core.GroupOutputFormat, Kind: core.KindPositive, Default: 0,
			Normalize: Positive(),
			Arg:       func(o *core.Options) (string, bool) { return positive(o.Rate) },
		},
		{
			Name: "tonemap", Flag: "--tonemap", Group: core.GroupOutputFormat, Kind: core.KindEnum, Values: Tonemaps,
			Normalize: Toggle(),
			Arg:       func(o *core.Options) (string, bool) { return str(o.Tonemap) },
		},
		{
			Name: "yuv", Flag: "--yuv", Group: core.GroupOutputFormat, Kind: core.KindEnum, Values: YUVs,
			Normalize: Enum(YUVs...),
			Arg:       func(o *core.Options) (string, bool) { return str(o.YUV) },
		},
		{
			Name: "speed", Flag: "--speed", Group: core.GroupOutputFormat, Kind: core.KindIntRange, Min: 0, Max: 10,
			Normalize: IntRange(0, 10),
			Arg: func(o *core.Options) (string, bool) {
				if o.Speed == nil {
					return "", false
				}
				return itoa(*o.Speed), true
			},
		},
		{
			Name: "nclx", Flag: "--nclx", Group: core.GroupOutputFormat, Kind: core.KindFree,
			Normalize: Tuple(),
			Arg:       func(o *core.Options) (string, bool) { return str(o.NCLX) },
		},
	}
}

// NewRegistry returns a registry holding the Builtin table.
func NewRegistry() *core.DefaultRegistry {
	reg := core.NewRegistry()
	for _, s := range Builtin() {
		reg.Register(s)
	}
	return reg
}
