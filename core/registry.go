package core

import (
	"strings"
	"sync"
)

// Group is the position of an option inside the compiled command.
type Group int

const (
	// GroupNone options are consumed by dedicated steps (quality, geometry).
	GroupNone Group = iota
	GroupBasic
	GroupInputProfile
	GroupOutputProfile
	GroupOutputFormat
)

func (g Group) String() string {
	switch g {
	case GroupBasic:
		return "basic"
	case GroupInputProfile:
		return "input-profile"
	case GroupOutputProfile:
		return "output-profile"
	case GroupOutputFormat:
		return "output-format"
	}
	return "none"
}

// Kind describes the validation domain of an option.
type Kind string

const (
	KindEnum     Kind = "enum"
	KindIntRange Kind = "intRange"
	KindPositive Kind = "positive"
	KindFlag     Kind = "flag"
	KindFree     Kind = "free"
	KindNumber   Kind = "number"
	KindQuality  Kind = "formatConditionalMap"
	KindGeometry Kind = "geometry"
)

// OptionSpec is a named, typed option definition.
type OptionSpec struct {
	Name  string
	Flag  string // command-line flag, e.g. "--bpc"
	Group Group
	Kind  Kind

	Values   []string // enum members
	Min, Max float64  // range bounds

	Default any

	// Normalize validates a raw value.  A nil result omits the option; an
	// error marks the value invalid.
	Normalize func(v any) (any, error)
	// Arg renders the resolved value.  ok=false emits nothing; an empty
	// value with ok=true emits the bare flag.
	Arg func(o *Options) (value string, ok bool)
}

// DefaultRegistry is a thread-safe implementation of Registry.
type DefaultRegistry struct {
	mu    sync.RWMutex
	order []string
	specs map[string]OptionSpec
}

// NewRegistry returns an empty DefaultRegistry.
func NewRegistry() *DefaultRegistry {
	return &DefaultRegistry{specs: make(map[string]OptionSpec)}
}

// Register adds spec, or replaces an existing spec of the same name in place.
func (r *DefaultRegistry) Register(spec OptionSpec) {
	spec.Name = strings.ToLower(spec.Name)
	r.mu.Lock()
	if _, ok := r.specs[spec.Name]; !ok {
		r.order = append(r.order, spec.Name)
	}
	r.specs[spec.Name] = spec
	r.mu.Unlock()
}

func (r *DefaultRegistry) Lookup(name string) (OptionSpec, bool) {
	r.mu.RLock()
	s, ok := r.specs[strings.ToLower(name)]
	r.mu.RUnlock()
	return s, ok
}

func (r *DefaultRegistry) Specs() []OptionSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]OptionSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}

func (r *DefaultRegistry) Group(g Group) []OptionSpec {
	var out []OptionSpec
	for _, s := range r.Specs() {
		if s.Group == g {
			out = append(out, s)
		}
	}
	return out
}
