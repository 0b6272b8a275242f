// Package pipeline compiles resolved options into an argument vector for the
// external tool.
package pipeline

import (
	"context"

	"github.com/Skryldev/colorist/core"
	apperrors "github.com/Skryldev/colorist/errors"
	"github.com/Skryldev/colorist/geometry"
)

// Sub-commands of the external tool.
const (
	SubConvert  = "convert"
	SubIdentify = "identify"
)

// Pipeline builds `bin convert SRC <step args...> DST`.  Steps contribute
// their arguments in the order they were added.
type Pipeline struct {
	bin   string
	steps []core.Step
}

// New returns an empty Pipeline for the executable at bin.
func New(bin string) *Pipeline { return &Pipeline{bin: bin} }

// Use appends steps to the pipeline.  Returns the same Pipeline for chaining.
func (p *Pipeline) Use(s ...core.Step) *Pipeline {
	p.steps = append(p.steps, s...)
	return p
}

// Steps returns the step names in order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Compile implements core.Compiler.  Empty tokens are dropped so omitted
// options never leave gaps.
func (p *Pipeline) Compile(ctx context.Context, req core.CompileRequest) (core.Command, error) {
	if req.Source == "" || req.Destination == "" {
		return core.Command{}, apperrors.New(apperrors.CategoryPipeline, "compile", apperrors.ErrEmptyInput)
	}
	if req.Options == nil {
		req.Options = &core.Options{}
	}

	args := []string{SubConvert, req.Source}
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return core.Command{}, apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), err)
		}
		toks, err := step.Args(ctx, req)
		if err != nil {
			return core.Command{}, err
		}
		for _, t := range toks {
			if t != "" {
				args = append(args, t)
			}
		}
	}
	args = append(args, req.Destination)
	return core.Command{Path: p.bin, Args: args}, nil
}

// Full is the complete conversion: quality, resize/crop, then every option
// group in command order.
func Full(bin string, reg core.Registry, lookup core.Identifier, engine geometry.Engine) *Pipeline {
	return New(bin).Use(
		QualityStep{},
		GeometryStep{Engine: engine, Lookup: lookup},
		OptionStep{Registry: reg, Group: core.GroupBasic},
		OptionStep{Registry: reg, Group: core.GroupInputProfile},
		OptionStep{Registry: reg, Group: core.GroupOutputProfile},
		OptionStep{Registry: reg, Group: core.GroupOutputFormat},
	)
}

// Format transcodes only: `bin convert SRC --format F DST`.
func Format(bin string, reg core.Registry) *Pipeline {
	return New(bin).Use(OptionStep{Registry: reg, Names: []string{"format"}})
}

// Identify returns `bin identify --json PATH`.
func Identify(bin, path string) core.Command {
	return core.Command{Path: bin, Args: []string{SubIdentify, "--json", path}}
}
