package options

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/Skryldev/colorist/core"
	apperrors "github.com/Skryldev/colorist/errors"
)

// Resolver implements core.Resolver over a Registry.
//
// Lenient (the default): values outside their domain are dropped so the
// tool's own default applies, and unknown keys are ignored.  Strict: both
// are reported as a single InvalidOption error.
type Resolver struct {
	reg    core.Registry
	strict bool
}

// NewResolver returns a lenient Resolver.
func NewResolver(reg core.Registry) *Resolver { return &Resolver{reg: reg} }

// NewStrictResolver returns a Resolver that fails on invalid input.
func NewStrictResolver(reg core.Registry) *Resolver { return &Resolver{reg: reg, strict: true} }

// Strict reports whether r rejects invalid input.
func (r *Resolver) Strict() bool { return r.strict }

// Resolve layers spec defaults, then defaults, then requested.  Keys are
// case-insensitive; an explicit nil in a later layer clears the value.
func (r *Resolver) Resolve(requested, defaults map[string]any) (*core.Options, error) {
	specs := r.reg.Specs()
	merged := make(map[string]any, len(specs))
	for _, s := range specs {
		if s.Default != nil {
			merged[s.Name] = s.Default
		}
	}

	var problems []error
	for _, layer := range []map[string]any{defaults, requested} {
		for _, k := range sortedKeys(layer) {
			name := strings.ToLower(k)
			if _, ok := r.reg.Lookup(name); !ok {
				if r.strict {
					problems = append(problems, fmt.Errorf("%w: %q", apperrors.ErrUnknownOption, k))
				}
				continue
			}
			if v := layer[k]; v == nil {
				delete(merged, name)
			} else {
				merged[name] = v
			}
		}
	}

	bag := make(map[string]any, len(merged))
	for _, s := range specs {
		raw, ok := merged[s.Name]
		if !ok {
			continue
		}
		if s.Normalize == nil {
			bag[s.Name] = raw
			continue
		}
		v, err := s.Normalize(raw)
		if err != nil {
			if r.strict {
				problems = append(problems, fmt.Errorf("%s: %w", s.Name, err))
			}
			continue
		}
		if v != nil {
			bag[s.Name] = v
		}
	}

	if len(problems) > 0 {
		return nil, apperrors.New(apperrors.CategoryInvalidOption, "resolve", errors.Join(problems...))
	}
	return Decode(bag)
}

// Decode maps a normalised bag onto core.Options.
func Decode(bag map[string]any) (*core.Options, error) {
	var out core.Options
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  &out,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInvalidOption, "decode", err)
	}
	if err := dec.Decode(bag); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInvalidOption, "decode", err)
	}
	return &out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
