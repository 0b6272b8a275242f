// Package watch converts images as they land in watched directories.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Skryldev/colorist"
	"github.com/Skryldev/colorist/config"
	"github.com/Skryldev/colorist/core"
	apperrors "github.com/Skryldev/colorist/errors"
	"github.com/Skryldev/colorist/hooks"
	"github.com/Skryldev/colorist/utils"
)

// Converter writes format siblings of a source image.
type Converter interface {
	ToFormats(ctx context.Context, src string, formats ...string) ([]*core.Result, error)
}

// Event reports the conversions run for one file.
type Event struct {
	Path    string
	Results []*core.Result
	Err     error
}

// Watcher feeds created or modified images to a Converter.
type Watcher struct {
	conv     Converter
	cfg      config.WatchConfig
	logger   core.Logger
	fs       *fsnotify.Watcher
	events   chan Event
	debounce map[string]*time.Timer
	mu       sync.Mutex
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Watcher.  logger may be nil.
func New(conv Converter, cfg config.WatchConfig, logger core.Logger) (*Watcher, error) {
	if logger == nil {
		logger = hooks.Nop{}
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "watch.new", err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	return &Watcher{
		conv:     conv,
		cfg:      cfg,
		logger:   logger,
		fs:       fsw,
		events:   make(chan Event, 100),
		debounce: make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}, nil
}

// Events returns the channel of finished conversions.  Events are dropped
// when nobody reads them.
func (w *Watcher) Events() <-chan Event { return w.events }

// Start watches every configured directory until Stop is called or ctx ends.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.cfg.Dirs {
		if err := w.fs.Add(dir); err != nil {
			return apperrors.Wrap(apperrors.CategoryInput, "watch.add", err)
		}
		w.logger.Info("watch.dir", "dir", dir, "formats", w.cfg.Formats)
	}
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop closes the watcher and waits for pending conversions.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.mu.Lock()
		for p, t := range w.debounce {
			if t.Stop() {
				w.wg.Done()
			}
			delete(w.debounce, p)
		}
		w.mu.Unlock()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !w.Wants(ev.Name) {
				continue
			}
			w.schedule(ctx, ev.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch.error", "error", err.Error())
		}
	}
}

// Wants reports whether path names a file the watcher converts: not hidden
// and not already in one of the target formats.
func (w *Watcher) Wants(path string) bool {
	base := filepath.Base(path)
	if base == "" || strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") {
		return false
	}
	for _, f := range w.cfg.Formats {
		if colorist.IsFormat(path, f) {
			return false
		}
	}
	return true
}

// schedule (re)arms the debounce timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.arm(ctx, path)
}

// arm replaces the timer for path.  w.mu must be held.
func (w *Watcher) arm(ctx context.Context, path string) {
	if t, ok := w.debounce[path]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.cfg.Debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.debounce[path] == t {
			delete(w.debounce, path)
		}
		w.mu.Unlock()
		w.handle(ctx, path)
	})
	w.debounce[path] = t
}

func (w *Watcher) handle(ctx context.Context, path string) {
	select {
	case <-w.done:
		return
	default:
	}
	ok, err := utils.IsImage(path)
	if err != nil || !ok {
		w.logger.Debug("watch.skip", "path", path)
		return
	}
	start := time.Now()
	results, err := w.conv.ToFormats(ctx, path, w.cfg.Formats...)
	if err != nil {
		w.logger.Error("watch.convert", "path", path, "error", err.Error())
	} else {
		w.logger.Info("watch.convert", "path", path, "duration_ms", time.Since(start).Milliseconds())
	}
	select {
	case w.events <- Event{Path: path, Results: results, Err: err}:
	default:
	}
}
