package options

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/spf13/cast"

	"github.com/Skryldev/colorist/core"
	apperrors "github.com/Skryldev/colorist/errors"
)

// Normalizers return (nil, nil) when a value means "omit" and an error
// wrapping ErrInvalidOption when it falls outside the option's domain.

func invalid(v any, format string, args ...any) error {
	return fmt.Errorf("%w: %v: %s", apperrors.ErrInvalidOption, v, fmt.Sprintf(format, args...))
}

// Enum accepts members of values, compared case-insensitively.
func Enum(values ...string) func(any) (any, error) {
	return func(v any) (any, error) {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, invalid(v, "not a string")
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if !slices.Contains(values, s) {
			return nil, invalid(v, "must be one of %s", strings.Join(values, ", "))
		}
		return s, nil
	}
}

// Toggle is an on/off enum that also accepts booleans.
func Toggle() func(any) (any, error) {
	enum := Enum("on", "off")
	return func(v any) (any, error) {
		if b, ok := v.(bool); ok {
			if b {
				return "on", nil
			}
			return "off", nil
		}
		return enum(v)
	}
}

// OutputFormat accepts the names in core.Formats plus the jpeg and tif aliases.
func OutputFormat() func(any) (any, error) {
	return func(v any) (any, error) {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, invalid(v, "not a string")
		}
		f := core.ParseFormat(s)
		if f == core.FormatUnknown {
			return nil, invalid(v, "unsupported format")
		}
		return string(f), nil
	}
}

// IntRange accepts integers in [min, max].
func IntRange(lo, hi int) func(any) (any, error) {
	return func(v any) (any, error) {
		n, err := cast.ToIntE(v)
		if err != nil {
			return nil, invalid(v, "not an integer")
		}
		if n < lo || n > hi {
			return nil, invalid(v, "must be within %d..%d", lo, hi)
		}
		return n, nil
	}
}

// Positive accepts non-negative integers; zero means "omit".
func Positive() func(any) (any, error) {
	return func(v any) (any, error) {
		n, err := cast.ToIntE(v)
		if err != nil {
			return nil, invalid(v, "not an integer")
		}
		if n < 0 {
			return nil, invalid(v, "must not be negative")
		}
		if n == 0 {
			return nil, nil
		}
		return n, nil
	}
}

// Flag accepts anything cast understands as a boolean.
func Flag() func(any) (any, error) {
	return func(v any) (any, error) {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, invalid(v, "not a boolean")
		}
		return b, nil
	}
}

// Integer accepts any integer.
func Integer() func(any) (any, error) {
	return func(v any) (any, error) {
		n, err := cast.ToIntE(v)
		if err != nil {
			return nil, invalid(v, "not an integer")
		}
		return n, nil
	}
}

// Number accepts any float.
func Number() func(any) (any, error) {
	return func(v any) (any, error) {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, invalid(v, "not a number")
		}
		return f, nil
	}
}

// Unit accepts floats in [0, 1].
func Unit() func(any) (any, error) {
	return func(v any) (any, error) {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, invalid(v, "not a number")
		}
		if f < 0 || f > 1 {
			return nil, invalid(v, "must be within 0..1")
		}
		return f, nil
	}
}

// Free accepts any scalar and renders it as a string.  An empty string omits
// the option.
func Free() func(any) (any, error) {
	return func(v any) (any, error) {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, invalid(v, "not a string")
		}
		if s == "" {
			return nil, nil
		}
		return s, nil
	}
}

// Tuple accepts a string or a list, joined with commas.
func Tuple() func(any) (any, error) {
	free := Free()
	return func(v any) (any, error) {
		switch v.(type) {
		case []any, []string:
			parts, err := cast.ToStringSliceE(v)
			if err != nil {
				return nil, invalid(v, "not a list")
			}
			if len(parts) == 0 {
				return nil, nil
			}
			return strings.Join(parts, ","), nil
		}
		return free(v)
	}
}

// Dimension accepts non-negative pixel sizes; zero means "not given".
func Dimension() func(any) (any, error) {
	return Positive()
}

// cropPositions are the named crop anchors a caller may pass instead of true.
var cropPositions = []string{
	"center", "top", "bottom", "left", "right",
	"top left", "top right", "bottom left", "bottom right",
}

// Crop accepts a boolean or a named position, which enables cropping.
func Crop() func(any) (any, error) {
	return func(v any) (any, error) {
		if s, ok := v.(string); ok {
			s = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", " ")))
			if slices.Contains(cropPositions, s) {
				return true, nil
			}
		}
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, invalid(v, "not a boolean or crop position")
		}
		return b, nil
	}
}

// QualityValue accepts an integer in 0..100 or a map of format → integer.
func QualityValue() func(any) (any, error) {
	return func(v any) (any, error) {
		if q, ok := v.(core.Quality); ok {
			return q, nil
		}
		if reflect.ValueOf(v).Kind() == reflect.Map {
			m, err := toStringMap(v)
			if err != nil {
				return nil, invalid(v, "not a format map")
			}
			table := make(map[string]int, len(m))
			for k, raw := range m {
				q, err := cast.ToIntE(raw)
				if err != nil || q < 0 || q > 100 {
					return nil, invalid(v, "quality for %s must be within 0..100", k)
				}
				key := strings.ToLower(k)
				if f := core.ParseFormat(key); f != core.FormatUnknown {
					key = string(f)
				}
				table[key] = q
			}
			return core.Quality{PerFormat: table}, nil
		}
		q, err := cast.ToIntE(v)
		if err != nil {
			return nil, invalid(v, "not an integer or format map")
		}
		if q < 0 || q > 100 {
			return nil, invalid(v, "must be within 0..100")
		}
		return core.Quality{Value: &q}, nil
	}
}

func toStringMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]int); ok {
		out := make(map[string]any, len(m))
		for k, q := range m {
			out[k] = q
		}
		return out, nil
	}
	return cast.ToStringMapE(v)
}
