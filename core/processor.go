package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Skryldev/colorist/config"
	apperrors "github.com/Skryldev/colorist/errors"
	"github.com/Skryldev/colorist/utils"
)

// Processor is the central orchestrator.  It is safe for concurrent use once
// configured; the Set* methods must be called before the first conversion.
type Processor struct {
	cfg        config.Config
	registry   Registry
	runner     Runner
	resolver   Resolver
	identifier Identifier
	compilers  map[Mode]Compiler
	store      Store
	hooks      []Hook
	logger     Logger
	metrics    MetricsCollector

	// Worker pool.
	jobQueue chan Job
	wg       sync.WaitGroup
	once     sync.Once
	stopOnce sync.Once
	shutdown chan struct{}

	// Atomic counters for lightweight internal metrics.
	processedCount int64
	skippedCount   int64
	errorCount     int64
}

// New creates a Processor with the given config.  Call Start() before
// submitting jobs; call Stop() when done.
func New(cfg config.Config, reg Registry, runner Runner) *Processor {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Processor{
		cfg:       cfg,
		registry:  reg,
		runner:    runner,
		compilers: make(map[Mode]Compiler, 2),
		jobQueue:  make(chan Job, queueSize),
		shutdown:  make(chan struct{}),
	}
}

func (p *Processor) SetResolver(r Resolver)            { p.resolver = r }
func (p *Processor) SetIdentifier(i Identifier)        { p.identifier = i }
func (p *Processor) SetCompiler(mode Mode, c Compiler) { p.compilers[mode] = c }
func (p *Processor) SetStore(s Store)                  { p.store = s }

// SetLogger attaches a structured logger.
func (p *Processor) SetLogger(l Logger) { p.logger = l }

// SetMetrics attaches a metrics collector.
func (p *Processor) SetMetrics(m MetricsCollector) { p.metrics = m }

// AddHook registers a command hook.
func (p *Processor) AddHook(h Hook) { p.hooks = append(p.hooks, h) }

// Registry returns the option registry so callers can override specs after
// construction.
func (p *Processor) Registry() Registry { return p.registry }

// Config returns the configuration the processor was built with.
func (p *Processor) Config() config.Config { return p.cfg }

// Runner returns the configured runner wrapped with the registered hooks.
// Identifiers built on the tool itself should run through it.
func (p *Processor) Runner() Runner { return hookedRunner{p: p} }

// Identifier returns the configured dimension lookup.
func (p *Processor) Identifier() Identifier { return p.identifier }

// Start launches the worker pool.  It is idempotent.
func (p *Processor) Start() {
	p.once.Do(func() {
		for i := 0; i < p.workerCount(); i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

// Stop shuts down all workers and waits for in-flight jobs.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() { close(p.shutdown) })
	p.wg.Wait()
}

// Identify reports the dimensions and profile of the image at path.  A path
// that does not exist is handed to the identifier so the tool reports it.
func (p *Processor) Identify(ctx context.Context, path string) (*Identity, error) {
	if err := p.checkSource("identify", path); err != nil && (path == "" || !errors.Is(err, fs.ErrNotExist)) {
		return nil, err
	}
	if p.identifier == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, "identify", apperrors.ErrUnsupportedFormat)
	}
	start := time.Now()
	id, err := p.identifier.Identify(ctx, path)
	p.observe("identify", start, 0, err)
	return id, err
}

// Resolve merges requested over the configured defaults.
func (p *Processor) Resolve(requested map[string]any) (*Options, error) {
	if p.resolver == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, "resolve", apperrors.ErrInvalidOption)
	}
	return p.resolver.Resolve(requested, p.cfg.Defaults)
}

// Convert is the primary synchronous API.  It resolves the request options,
// skips an existing destination, compiles one command and runs it.
func (p *Processor) Convert(ctx context.Context, req Request) (*Result, error) {
	op := req.Mode.String()
	start := time.Now()

	if req.Destination == "" {
		req.Destination = req.Source
	}
	if err := p.checkSource(op, req.Source); err != nil {
		p.observe(op, start, 0, err)
		return nil, err
	}

	opts, err := p.Resolve(req.Options)
	if err != nil {
		p.observe(op, start, 0, err)
		return nil, err
	}
	res := &Result{Source: req.Source, Destination: req.Destination, Options: opts}

	inPlace := samePath(req.Source, req.Destination)
	if !inPlace && !req.Force && p.store != nil {
		exists, err := p.store.Exists(ctx, req.Destination)
		if err != nil {
			p.observe(op, start, 0, err)
			return nil, err
		}
		if exists {
			res.Skipped = true
			atomic.AddInt64(&p.skippedCount, 1)
			if p.metrics != nil {
				p.metrics.RecordSkip(op)
			}
			p.debug("convert.skip", "destination", req.Destination)
			return res, nil
		}
	}

	if req.WriteJob && p.store != nil {
		job := JobFile{
			Destination: req.Destination,
			Source:      req.Source,
			Filename:    filepath.Base(req.Source),
			Options:     req.Options,
		}
		if err := p.store.WriteJob(ctx, job); err != nil {
			p.observe(op, start, 0, err)
			return nil, err
		}
	}

	compiler, ok := p.compilers[req.Mode]
	if !ok {
		err := apperrors.New(apperrors.CategoryPipeline, op, apperrors.ErrUnsupportedFormat)
		p.observe(op, start, 0, err)
		return nil, err
	}
	cmd, err := compiler.Compile(ctx, CompileRequest{
		Source:      req.Source,
		Destination: req.Destination,
		Options:     opts,
	})
	if err != nil {
		p.observe(op, start, 0, err)
		return nil, err
	}
	res.Command = cmd

	if _, err := p.Runner().Run(ctx, cmd); err != nil {
		if !inPlace && p.cfg.CleanupOnFailure && p.store != nil {
			if rmErr := p.store.Remove(context.WithoutCancel(ctx), req.Destination); rmErr != nil {
				p.warn("convert.cleanup", "destination", req.Destination, "error", rmErr.Error())
			}
		}
		p.observe(op, start, 0, err)
		return nil, err
	}

	if fi, err := os.Stat(req.Destination); err == nil {
		res.Bytes = fi.Size()
	}
	res.Duration = time.Since(start)
	atomic.AddInt64(&p.processedCount, 1)
	p.observe(op, start, res.Bytes, nil)
	return res, nil
}

// Submit enqueues an async job.  A job without an ID gets a random one.
// Returns ErrWorkerPoolFull if the queue is full.
func (p *Processor) Submit(job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	select {
	case p.jobQueue <- job:
		return nil
	default:
		return apperrors.New(apperrors.CategoryPipeline, "submit", apperrors.ErrWorkerPoolFull)
	}
}

// Batch converts several requests concurrently, at most WorkerCount at a time
// (fan-out / fan-in).  Results and errors are index-aligned with reqs.
func (p *Processor) Batch(ctx context.Context, reqs []Request) ([]*Result, []error) {
	results := make([]*Result, len(reqs))
	errs := make([]error, len(reqs))
	sem := make(chan struct{}, p.workerCount())
	var wg sync.WaitGroup

	for i, r := range reqs {
		wg.Add(1)
		go func(idx int, req Request) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[idx] = apperrors.Wrap(apperrors.CategoryPipeline, "batch", ctx.Err())
				return
			}
			defer func() { <-sem }()
			results[idx], errs[idx] = p.Convert(ctx, req)
		}(i, r)
	}
	wg.Wait()
	return results, errs
}

// ── worker pool internals ──────────────────────────────────────────────────────

func (p *Processor) workerCount() int {
	if p.cfg.WorkerCount > 0 {
		return p.cfg.WorkerCount
	}
	return runtime.NumCPU()
}

func (p *Processor) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.shutdown:
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.processJob(job)
		}
	}
}

func (p *Processor) processJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			err := apperrors.New(apperrors.CategoryPipeline, "job", fmt.Errorf("panic: %v", r))
			p.warn("job.panic", "job", job.ID, "error", err.Error())
			atomic.AddInt64(&p.errorCount, 1)
			if job.ResultCh != nil {
				job.ResultCh <- JobResult{JobID: job.ID, Err: err}
			}
		}
	}()

	ctx := job.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if p.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.JobTimeout)
		defer cancel()
	}

	result, err := p.Convert(ctx, job.Request)
	if err != nil {
		p.warn("job.failed", "job", job.ID, "error", err.Error())
	}
	if job.ResultCh != nil {
		job.ResultCh <- JobResult{JobID: job.ID, Result: result, Err: err}
	}
}

// checkSource rejects missing, oversized and non-image sources before any
// process is spawned.
func (p *Processor) checkSource(op, path string) error {
	if path == "" {
		return apperrors.New(apperrors.CategoryInput, op, apperrors.ErrEmptyInput)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryInput, op, err)
	}
	if limit := p.cfg.MaxImageBytes(); limit > 0 && fi.Size() > limit {
		return apperrors.New(apperrors.CategoryInput, op, apperrors.ErrSourceTooLarge)
	}
	ok, err := utils.IsImage(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryInput, op, err)
	}
	if !ok {
		return apperrors.New(apperrors.CategoryUnsupportedFileType, op, apperrors.ErrNotAnImage)
	}
	return nil
}

func (p *Processor) observe(op string, start time.Time, bytes int64, err error) {
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
	}
	if p.metrics == nil {
		return
	}
	p.metrics.RecordProcessingTime(op, time.Since(start))
	if err != nil {
		p.metrics.RecordError(op, string(apperrors.CategoryOf(err)))
		return
	}
	if bytes > 0 {
		p.metrics.RecordThroughput(bytes)
	}
}

func (p *Processor) debug(msg string, fields ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(msg, fields...)
	}
}

func (p *Processor) warn(msg string, fields ...interface{}) {
	if p.logger != nil {
		p.logger.Warn(msg, fields...)
	}
}

// hookedRunner notifies the processor's hooks around every child process.
type hookedRunner struct{ p *Processor }

func (r hookedRunner) Run(ctx context.Context, cmd Command) (*RunResult, error) {
	op := "exec"
	if len(cmd.Args) > 0 {
		op = cmd.Args[0]
	}
	for _, h := range r.p.hooks {
		h.BeforeRun(ctx, op, cmd)
	}
	start := time.Now()
	res, err := r.p.runner.Run(ctx, cmd)
	d := time.Since(start)
	for _, h := range r.p.hooks {
		h.AfterRun(ctx, op, cmd, res, d, err)
	}
	return res, err
}

func samePath(a, b string) bool {
	if a == b {
		return true
	}
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

// Stats is a point-in-time copy of the processor counters.
type Stats struct {
	Processed int64 `json:"processed"`
	Skipped   int64 `json:"skipped"`
	Errors    int64 `json:"errors"`
}

// ProcessedCount returns the total number of completed conversions.
func (p *Processor) ProcessedCount() int64 { return atomic.LoadInt64(&p.processedCount) }

// ErrorCount returns the total number of failed operations.
func (p *Processor) ErrorCount() int64 { return atomic.LoadInt64(&p.errorCount) }

// Stats returns all counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Processed: atomic.LoadInt64(&p.processedCount),
		Skipped:   atomic.LoadInt64(&p.skippedCount),
		Errors:    atomic.LoadInt64(&p.errorCount),
	}
}
