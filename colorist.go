// Package colorist converts images with the colorist command-line tool.  It
// compiles declarative option sets into argument vectors, computes crop
// geometry, runs the tool and keeps track of what was generated.
package colorist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Skryldev/colorist/adapters/cli"
	"github.com/Skryldev/colorist/adapters/exec"
	"github.com/Skryldev/colorist/adapters/probe"
	"github.com/Skryldev/colorist/adapters/storage"
	"github.com/Skryldev/colorist/config"
	"github.com/Skryldev/colorist/core"
	apperrors "github.com/Skryldev/colorist/errors"
	"github.com/Skryldev/colorist/geometry"
	"github.com/Skryldev/colorist/options"
	"github.com/Skryldev/colorist/pipeline"
	"github.com/Skryldev/colorist/utils"
)

// Re-export Format constants for convenience.
const (
	AVIF = core.FormatAVIF
	BMP  = core.FormatBMP
	JPG  = core.FormatJPG
	JP2  = core.FormatJP2
	J2K  = core.FormatJ2K
	PNG  = core.FormatPNG
	TIFF = core.FormatTIFF
	WebP = core.FormatWebP
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Processor is the primary entry point.
type Processor struct {
	inner *core.Processor
	reg   *core.DefaultRegistry
	store core.Store
	cfg   config.Config
}

type settings struct {
	runner     core.Runner
	identifier func(core.Runner) core.Identifier
	strategy   core.CropStrategy
	store      core.Store
	logger     core.Logger
}

// Option customises New.
type Option func(*settings)

// WithRunner replaces the os/exec runner.
func WithRunner(r core.Runner) Option { return func(s *settings) { s.runner = r } }

// WithIdentifier replaces the `identify --json` dimension lookup.
func WithIdentifier(id core.Identifier) Option {
	return func(s *settings) { s.identifier = func(core.Runner) core.Identifier { return id } }
}

// WithCropStrategy fixes the crop strategy for every request.
func WithCropStrategy(cs core.CropStrategy) Option { return func(s *settings) { s.strategy = cs } }

// WithStore replaces the local job-file store.
func WithStore(st core.Store) Option { return func(s *settings) { s.store = st } }

// WithLogger attaches a structured logger.
func WithLogger(l core.Logger) Option { return func(s *settings) { s.logger = l } }

// New creates a fully wired Processor.  Pass a custom config.Config to
// override defaults.
func New(cfg config.Config, opts ...Option) (*Processor, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	var s settings
	for _, o := range opts {
		o(&s)
	}

	reg := options.NewRegistry()
	runner := s.runner
	if runner == nil {
		runner = exec.NewRunner(cfg.Timeout)
	}
	inner := core.New(cfg, reg, runner)
	if s.logger != nil {
		inner.SetLogger(s.logger)
	}

	var id core.Identifier
	switch {
	case s.identifier != nil:
		id = s.identifier(inner.Runner())
	case cfg.Identifier == "probe":
		id = probe.NewIdentifier(cli.NewIdentifier(cfg.Bin, inner.Runner()))
	case cfg.Identifier == "vips":
		// libvips needs cgo; callers wire adapters/vips through WithIdentifier.
		return nil, apperrors.New(apperrors.CategoryConfig, "new",
			fmt.Errorf("identifier %q requires WithIdentifier", cfg.Identifier))
	default:
		id = cli.NewIdentifier(cfg.Bin, inner.Runner())
	}
	inner.SetIdentifier(id)

	if cfg.Strict {
		inner.SetResolver(options.NewStrictResolver(reg))
	} else {
		inner.SetResolver(options.NewResolver(reg))
	}

	engine := geometry.Engine{Tolerance: cfg.AspectTolerance, Strategy: s.strategy}
	inner.SetCompiler(core.ModeFull, pipeline.Full(cfg.Bin, reg, id, engine))
	inner.SetCompiler(core.ModeFormat, pipeline.Format(cfg.Bin, reg))

	store := s.store
	if store == nil {
		store = storage.NewLocal(cfg.JobsDir, 0)
	}
	inner.SetStore(store)

	return &Processor{inner: inner, reg: reg, store: store, cfg: cfg}, nil
}

// SetMetrics attaches a metrics collector.
func (p *Processor) SetMetrics(m core.MetricsCollector) { p.inner.SetMetrics(m) }

// AddHook registers an observer for child-process events.
func (p *Processor) AddHook(h core.Hook) { p.inner.AddHook(h) }

// Registry returns the option table.  Registering a spec with an existing
// name replaces it in place.
func (p *Processor) Registry() core.Registry { return p.reg }

// Config returns the configuration in use.
func (p *Processor) Config() config.Config { return p.cfg }

// Start starts the background worker pool.
func (p *Processor) Start() { p.inner.Start() }

// Stop shuts down the worker pool.
func (p *Processor) Stop() { p.inner.Stop() }

// Submit enqueues an async job for the worker pool.
func (p *Processor) Submit(job core.Job) error { return p.inner.Submit(job) }

// Stats returns lightweight processing statistics.
func (p *Processor) Stats() core.Stats { return p.inner.Stats() }

// Resolve returns the options a request would be converted with.
func (p *Processor) Resolve(opts map[string]any) (*core.Options, error) {
	return p.inner.Resolve(opts)
}

// Identify reports dimensions, bit depth and embedded profile of an image.
func (p *Processor) Identify(ctx context.Context, path string) (*core.Identity, error) {
	return p.inner.Identify(ctx, path)
}

// Template returns the presentation template for files of format.
func (p *Processor) Template(format string) (string, error) {
	f := core.ParseFormat(format)
	if len(p.cfg.Templates) > 0 {
		if t, ok := p.cfg.Templates[string(f)]; ok && t != "" {
			return t, nil
		}
		return "", apperrors.New(apperrors.CategoryMissingTemplate, "template",
			fmt.Errorf("%w: %s", apperrors.ErrMissingTemplate, format))
	}
	if p.cfg.Template == "" {
		return "", apperrors.New(apperrors.CategoryMissingTemplate, "template",
			fmt.Errorf("%w: %s", apperrors.ErrMissingTemplate, format))
	}
	return p.cfg.Template, nil
}

// ToFormat writes the sibling of src in format (photo.jpg → photo.avif).  An
// existing sibling is returned as skipped without running the tool.
func (p *Processor) ToFormat(ctx context.Context, src, format string) (*core.Result, error) {
	req, tmpl, err := p.formatRequest(src, format)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return &core.Result{Source: src, Destination: src, Template: tmpl, Skipped: true}, nil
	}
	res, err := p.inner.Convert(ctx, *req)
	if err != nil {
		return nil, err
	}
	res.Template = tmpl
	return res, nil
}

// ToFormats writes one sibling per format, concurrently.  With no formats the
// configured list is used.  Results are index-aligned with formats; the
// error joins every failure.
func (p *Processor) ToFormats(ctx context.Context, src string, formats ...string) ([]*core.Result, error) {
	if len(formats) == 0 {
		formats = p.cfg.Formats
	}
	results := make([]*core.Result, len(formats))
	templates := make([]string, len(formats))
	var (
		reqs    []core.Request
		indices []int
		errs    []error
	)
	for i, f := range formats {
		req, tmpl, err := p.formatRequest(src, f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		templates[i] = tmpl
		if req == nil {
			results[i] = &core.Result{Source: src, Destination: src, Template: tmpl, Skipped: true}
			continue
		}
		reqs = append(reqs, *req)
		indices = append(indices, i)
	}

	out, batchErrs := p.inner.Batch(ctx, reqs)
	for j, i := range indices {
		if batchErrs[j] != nil {
			errs = append(errs, batchErrs[j])
			continue
		}
		out[j].Template = templates[i]
		results[i] = out[j]
	}
	return results, errors.Join(errs...)
}

// formatRequest returns a nil request when src already is in format.
func (p *Processor) formatRequest(src, format string) (*core.Request, string, error) {
	f := core.ParseFormat(format)
	if f == core.FormatUnknown {
		return nil, "", apperrors.New(apperrors.CategoryInvalidOption, "to-format",
			fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, format))
	}
	tmpl, err := p.Template(string(f))
	if err != nil {
		return nil, "", err
	}
	if IsFormat(src, string(f)) {
		return nil, tmpl, nil
	}
	return &core.Request{
		Source:      src,
		Destination: utils.SiblingPath(src, string(f)),
		Options:     map[string]any{"format": string(f)},
		Mode:        core.ModeFormat,
	}, tmpl, nil
}

// Transcode writes src to dst in format without resizing or quality shaping.
func (p *Processor) Transcode(ctx context.Context, src, dst, format string) (*core.Result, error) {
	f := core.ParseFormat(format)
	if f == core.FormatUnknown {
		return nil, apperrors.New(apperrors.CategoryInvalidOption, "transcode",
			fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, format))
	}
	return p.inner.Convert(ctx, core.Request{
		Source:      src,
		Destination: dst,
		Options:     map[string]any{"format": string(f)},
		Mode:        core.ModeFormat,
	})
}

// Process applies the whole option set to path in place and returns the
// options that were applied.
func (p *Processor) Process(ctx context.Context, path string, opts map[string]any) (*core.Options, error) {
	res, err := p.inner.Convert(ctx, core.Request{Source: path, Destination: path, Options: opts})
	if err != nil {
		return nil, err
	}
	return res.Options, nil
}

// Convert writes src to dst with the whole option set.  An existing dst is
// skipped.
func (p *Processor) Convert(ctx context.Context, src, dst string, opts map[string]any) (*core.Result, error) {
	return p.inner.Convert(ctx, core.Request{Source: src, Destination: dst, Options: opts})
}

// ThumbPath returns the destination Thumb would write for src and opts.
func (p *Processor) ThumbPath(src string, opts map[string]any) (string, error) {
	o, err := p.inner.Resolve(opts)
	if err != nil {
		return "", err
	}
	spec := utils.ThumbSpec{Width: o.Width, Height: o.Height, Crop: o.Crop, Format: string(o.Format)}
	if hasKey(opts, "quality") {
		if q, ok := o.Quality.For(pipeline.ActiveFormat(core.CompileRequest{Destination: src, Options: o})); ok {
			spec.Quality = q
		}
	}
	dir := p.cfg.ThumbsDir
	if dir == "" {
		dir = filepath.Dir(src)
	}
	return filepath.Join(dir, utils.ThumbName(src, spec)), nil
}

func hasKey(opts map[string]any, name string) bool {
	for k := range opts {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// Thumb writes a thumbnail of src named after its options, recording the
// request in a job file first.  An existing thumbnail is skipped.
func (p *Processor) Thumb(ctx context.Context, src string, opts map[string]any) (*core.Result, error) {
	dst, err := p.ThumbPath(src, opts)
	if err != nil {
		return nil, err
	}
	return p.inner.Convert(ctx, core.Request{
		Source:      src,
		Destination: dst,
		Options:     opts,
		WriteJob:    true,
	})
}

// Generate runs the job recorded for dst and removes the job file on success.
func (p *Processor) Generate(ctx context.Context, dst string) (*core.Result, error) {
	job, err := p.store.ReadJob(ctx, dst)
	if err != nil {
		return nil, err
	}
	if job.Source == "" {
		return nil, apperrors.New(apperrors.CategoryStorage, "generate",
			fmt.Errorf("%w: job for %s names no source", apperrors.ErrJobNotFound, dst))
	}
	res, err := p.inner.Convert(ctx, core.Request{Source: job.Source, Destination: dst, Options: job.Options})
	if err != nil {
		return nil, err
	}
	if err := p.store.RemoveJob(ctx, dst); err != nil {
		return res, err
	}
	return res, nil
}

// HasFormat reports whether the sibling of src in format exists.
func HasFormat(src, format string) bool {
	fi, err := os.Stat(utils.SiblingPath(src, format))
	return err == nil && fi.Mode().IsRegular()
}

// IsFormat reports whether src has the extension of format.
func IsFormat(src, format string) bool {
	f := core.ParseFormat(format)
	return f != core.FormatUnknown && core.ParseFormat(utils.Extension(src)) == f
}
