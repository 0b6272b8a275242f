package core

import (
	"context"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Format identifies an output codec understood by the external tool.
type Format string

const (
	FormatAVIF    Format = "avif"
	FormatBMP     Format = "bmp"
	FormatJPG     Format = "jpg"
	FormatJP2     Format = "jp2"
	FormatJ2K     Format = "j2k"
	FormatPNG     Format = "png"
	FormatTIFF    Format = "tiff"
	FormatWebP    Format = "webp"
	FormatUnknown Format = ""
)

// Formats lists every format the tool can write, in its documented order.
var Formats = []Format{FormatAVIF, FormatBMP, FormatJPG, FormatJP2, FormatJ2K, FormatPNG, FormatTIFF, FormatWebP}

// ParseFormat maps a name or file extension onto a Format.
func ParseFormat(s string) Format {
	s = strings.ToLower(strings.TrimPrefix(s, "."))
	switch s {
	case "jpeg":
		return FormatJPG
	case "tif":
		return FormatTIFF
	}
	for _, f := range Formats {
		if string(f) == s {
			return f
		}
	}
	return FormatUnknown
}

// Quality is either a single value or a per-format table.
type Quality struct {
	Value     *int           `mapstructure:"value"`
	PerFormat map[string]int `mapstructure:"per_format"`
}

// For returns the quality to apply when writing format f.  A per-format
// table without an entry for f yields no quality at all.
func (q Quality) For(f Format) (int, bool) {
	if q.PerFormat != nil {
		v, ok := q.PerFormat[string(f)]
		return v, ok
	}
	if q.Value != nil {
		return *q.Value, true
	}
	return 0, false
}

// IsZero reports whether no quality was configured.
func (q Quality) IsZero() bool { return q.Value == nil && q.PerFormat == nil }

func (q Quality) MarshalJSON() ([]byte, error) {
	switch {
	case q.PerFormat != nil:
		return jsoniter.Marshal(q.PerFormat)
	case q.Value != nil:
		return jsoniter.Marshal(*q.Value)
	}
	return []byte("null"), nil
}

// Options is the resolved OptionBag for one conversion.  Zero values and nil
// pointers mean "omit; let the tool apply its own default".
type Options struct {
	// Geometry.
	Width  int     `mapstructure:"width" json:"width,omitempty"`
	Height int     `mapstructure:"height" json:"height,omitempty"`
	Crop   bool    `mapstructure:"crop" json:"crop,omitempty"`
	Focus  bool    `mapstructure:"focus" json:"focus,omitempty"`
	FocusX float64 `mapstructure:"focusx" json:"focusx,omitempty"`
	FocusY float64 `mapstructure:"focusy" json:"focusy,omitempty"`

	Quality Quality `mapstructure:"quality" json:"quality"`

	// Basic options.
	Jobs   int      `mapstructure:"jobs" json:"jobs,omitempty"`
	CMM    string   `mapstructure:"cmm" json:"cmm,omitempty"`
	DefLum *float64 `mapstructure:"deflum" json:"deflum,omitempty"`
	HLGLum *float64 `mapstructure:"hlglum" json:"hlglum,omitempty"`

	// Input profile.
	ICCIn      string `mapstructure:"iccin" json:"iccin,omitempty"`
	FrameIndex int    `mapstructure:"frameindex" json:"frameindex,omitempty"`

	// Output profile.
	ICCOut      string `mapstructure:"iccout" json:"iccout,omitempty"`
	Autograde   bool   `mapstructure:"autograde" json:"autograde,omitempty"`
	Copyright   string `mapstructure:"copyright" json:"copyright,omitempty"`
	Description string `mapstructure:"description" json:"description,omitempty"`
	Gamma       string `mapstructure:"gamma" json:"gamma,omitempty"`
	Luminance   *int   `mapstructure:"luminance" json:"luminance,omitempty"`
	Primaries   string `mapstructure:"primaries" json:"primaries,omitempty"`
	NoProfile   bool   `mapstructure:"noprofile" json:"noprofile,omitempty"`

	// Output format.
	BPC     *int   `mapstructure:"bpc" json:"bpc,omitempty"`
	Format  Format `mapstructure:"format" json:"format,omitempty"`
	Rate    int    `mapstructure:"rate" json:"rate,omitempty"`
	Tonemap string `mapstructure:"tonemap" json:"tonemap,omitempty"`
	YUV     string `mapstructure:"yuv" json:"yuv,omitempty"`
	Speed   *int   `mapstructure:"speed" json:"speed,omitempty"`
	NCLX    string `mapstructure:"nclx" json:"nclx,omitempty"`
}

// Dimensions are pixel sizes of a source image or a requested target.
type Dimensions struct {
	Width  int
	Height int
}

// Ratio returns width / height.
func (d Dimensions) Ratio() float64 { return float64(d.Width) / float64(d.Height) }

// CropRectangle is a region of the source image, in source pixels.
type CropRectangle struct {
	X, Y, Width, Height int
}

// Within reports whether r lies entirely inside d.
func (r CropRectangle) Within(d Dimensions) bool {
	return r.X >= 0 && r.Y >= 0 && r.Width > 0 && r.Height > 0 &&
		r.X+r.Width <= d.Width && r.Y+r.Height <= d.Height
}

// Fit names the axis preserved in full when cropping to a new aspect ratio.
type Fit string

const (
	FitWidth  Fit = "width"
	FitHeight Fit = "height"
)

// ICCProfile is the embedded profile summary reported by identify.
type ICCProfile struct {
	Description string    `json:"description,omitempty"`
	Primaries   []float64 `json:"primaries,omitempty"`
	Gamma       float64   `json:"gamma,omitempty"`
	Luminance   int       `json:"luminance,omitempty"`
}

// Identity describes an image without converting it.
type Identity struct {
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Depth  int         `json:"depth,omitempty"`
	Format string      `json:"format,omitempty"`
	ICC    *ICCProfile `json:"icc,omitempty"`
	// Raw keeps every field of the tool's report, including unknown ones.
	Raw map[string]any `json:"-"`
}

// Dimensions returns the pixel size of the identified image.
func (i *Identity) Dimensions() Dimensions { return Dimensions{Width: i.Width, Height: i.Height} }

// Command is an argument vector for the external tool.
type Command struct {
	Path string
	Args []string
}

// Argv returns the full vector including the program path.
func (c Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

// String renders c as a shell-quoted line for diagnostics.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	for _, a := range c.Argv() {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r == '-' || r == '_' || r == '.' || r == '/' || r == ',' || r == ':' || r == '=' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// RunResult is what a finished child process left behind.
type RunResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// CompileRequest is the input of a Compiler.
type CompileRequest struct {
	Source      string
	Destination string
	Options     *Options
}

// Mode selects which command shape a conversion compiles to.
type Mode int

const (
	// ModeFull applies the whole option set (quality, geometry, codec options).
	ModeFull Mode = iota
	// ModeFormat only transcodes to the requested format.
	ModeFormat
)

func (m Mode) String() string {
	if m == ModeFormat {
		return "format"
	}
	return "convert"
}

// Request describes one conversion.
type Request struct {
	Source      string
	Destination string
	Options     map[string]any
	Mode        Mode
	// Force converts even when Destination already exists.
	Force bool
	// WriteJob records the requested options in a job file before converting.
	WriteJob bool
}

// Result is returned to the caller after a conversion.
type Result struct {
	Source      string
	Destination string
	Options     *Options
	Command     Command
	Template    string
	// Skipped is true when the destination existed and nothing was run.
	Skipped  bool
	Bytes    int64
	Duration time.Duration
}

// JobFile is the side-channel record of the options requested for a
// destination, written before the conversion starts.
type JobFile struct {
	Destination string
	Source      string
	// Filename is the base name of Source.
	Filename string
	Options  map[string]any
}

// Job encapsulates a single unit of work for the worker pool.
type Job struct {
	ID      string
	Ctx     context.Context //nolint:containedctx // intentional for async jobs
	Request Request
	// Result channel; nil for fire-and-forget.
	ResultCh chan<- JobResult
}

// JobResult wraps the outcome of an async job.
type JobResult struct {
	JobID  string
	Result *Result
	Err    error
}
