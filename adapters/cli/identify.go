// Package cli identifies images by running `identify --json` on the external
// tool.
package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"

	"github.com/Skryldev/colorist/core"
	apperrors "github.com/Skryldev/colorist/errors"
	"github.com/Skryldev/colorist/pipeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Identifier implements core.Identifier on top of a core.Runner.
type Identifier struct {
	bin    string
	runner core.Runner
}

// NewIdentifier returns an Identifier running bin through runner.
func NewIdentifier(bin string, runner core.Runner) *Identifier {
	return &Identifier{bin: bin, runner: runner}
}

func (i *Identifier) Identify(ctx context.Context, path string) (*core.Identity, error) {
	res, err := i.runner.Run(ctx, pipeline.Identify(i.bin, path))
	if err != nil {
		return nil, err
	}
	return Parse(res.Stdout)
}

// Parse decodes the first line of identify output.  Unknown fields are kept
// in Identity.Raw.
func Parse(stdout []byte) (*core.Identity, error) {
	line := firstLine(stdout)
	if len(line) == 0 {
		return nil, apperrors.New(apperrors.CategoryMalformedIdentify, "identify.parse",
			fmt.Errorf("%w: empty output", apperrors.ErrMissingDimensions))
	}

	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryMalformedIdentify, "identify.parse", err)
	}
	id := &core.Identity{
		Width:  cast.ToInt(raw["width"]),
		Height: cast.ToInt(raw["height"]),
		Depth:  cast.ToInt(raw["depth"]),
		Format: cast.ToString(raw["format"]),
		Raw:    raw,
	}
	if id.Width <= 0 || id.Height <= 0 {
		return nil, apperrors.New(apperrors.CategoryMalformedIdentify, "identify.parse", apperrors.ErrMissingDimensions)
	}
	if icc, ok := raw["icc"].(map[string]any); ok {
		id.ICC = parseICC(icc)
	}
	return id, nil
}

// parseICC keeps the profile fields it understands and ignores the rest.
func parseICC(m map[string]any) *core.ICCProfile {
	p := &core.ICCProfile{
		Description: cast.ToString(m["description"]),
		Gamma:       cast.ToFloat64(m["gamma"]),
		Luminance:   cast.ToInt(m["luminance"]),
	}
	if prim, err := cast.ToSliceE(m["primaries"]); err == nil {
		for _, v := range prim {
			p.Primaries = append(p.Primaries, cast.ToFloat64(v))
		}
	}
	return p
}

func firstLine(b []byte) []byte {
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if l := bytes.TrimSpace(sc.Bytes()); len(l) > 0 {
			return append([]byte(nil), l...)
		}
	}
	return nil
}
