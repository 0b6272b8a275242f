package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/Skryldev/colorist/core"
	"github.com/Skryldev/colorist/geometry"
)

// ── Quality ───────────────────────────────────────────────────────────────────

// QualityStep emits --quality.  With a per-format table the active format is
// the format option, else the destination extension; a format missing from
// the table emits nothing.
type QualityStep struct{}

func (QualityStep) Name() string { return "quality" }

func (QualityStep) Args(_ context.Context, req core.CompileRequest) ([]string, error) {
	q, ok := req.Options.Quality.For(ActiveFormat(req))
	if !ok {
		return nil, nil
	}
	return []string{"--quality", strconv.Itoa(q)}, nil
}

// ActiveFormat is the output format of req.
func ActiveFormat(req core.CompileRequest) core.Format {
	if req.Options != nil && req.Options.Format != core.FormatUnknown {
		return req.Options.Format
	}
	return core.ParseFormat(filepath.Ext(req.Destination))
}

// ── Resize / crop ─────────────────────────────────────────────────────────────

// GeometryStep emits --resize W,H and, when the aspect ratio changes,
// --crop X,Y,W,H.
type GeometryStep struct {
	Engine geometry.Engine
	Lookup core.Identifier
}

func (GeometryStep) Name() string { return "geometry" }

func (s GeometryStep) Args(ctx context.Context, req core.CompileRequest) ([]string, error) {
	plan, err := s.Engine.Plan(ctx, req.Source, req.Options, s.Lookup)
	if err != nil {
		return nil, err
	}
	return GeometryArgs(plan), nil
}

// GeometryArgs renders plan as command tokens.
func GeometryArgs(plan geometry.Plan) []string {
	var out []string
	if r := plan.Resize; r != nil {
		out = append(out, "--resize", fmt.Sprintf("%d,%d", r.Width, r.Height))
	}
	if c := plan.Crop; c != nil {
		out = append(out, "--crop", fmt.Sprintf("%d,%d,%d,%d", c.X, c.Y, c.Width, c.Height))
	}
	return out
}

// ── Registry-driven options ───────────────────────────────────────────────────

// OptionStep emits the options of one group, or the named options when Names
// is set, in registry order.
type OptionStep struct {
	Registry core.Registry
	Group    core.Group
	Names    []string
}

func (s OptionStep) Name() string {
	if len(s.Names) > 0 {
		return "options:" + fmt.Sprint(s.Names)
	}
	return "options:" + s.Group.String()
}

func (s OptionStep) Args(_ context.Context, req core.CompileRequest) ([]string, error) {
	var out []string
	for _, spec := range s.Registry.Specs() {
		if spec.Arg == nil || spec.Flag == "" {
			continue
		}
		if len(s.Names) > 0 {
			if !slices.Contains(s.Names, spec.Name) {
				continue
			}
		} else if spec.Group != s.Group {
			continue
		}
		v, ok := spec.Arg(req.Options)
		if !ok {
			continue
		}
		out = append(out, spec.Flag, v)
	}
	return out, nil
}
