// Package server exposes conversions over HTTP.  Files are addressed by their
// path below a root directory:
//
//	GET /{identifier}/info.json        identify
//	GET /{identifier}/to/{format}      format sibling
//	GET /{identifier}/thumb?width=…    thumbnail
//	GET /debug/metrics                 metrics snapshot
package server

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/golang/groupcache/singleflight"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"

	"github.com/Skryldev/colorist"
	"github.com/Skryldev/colorist/core"
	apperrors "github.com/Skryldev/colorist/errors"
	"github.com/Skryldev/colorist/hooks"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server serves files below Root through a colorist.Processor.
type Server struct {
	proc    *colorist.Processor
	root    string
	logger  core.Logger
	metrics *hooks.InMemoryMetrics

	// flight runs at most one conversion per destination at a time.
	flight singleflight.Group
}

// New returns a Server rooted at root.  metrics may be nil.
func New(proc *colorist.Processor, root string, logger core.Logger, metrics *hooks.InMemoryMetrics) *Server {
	if logger == nil {
		logger = hooks.Nop{}
	}
	return &Server{proc: proc, root: root, logger: logger, metrics: metrics}
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/debug/metrics", s.MetricsHandler).Methods(http.MethodGet)
	router.HandleFunc("/{identifier:.*}/info.json", s.InfoHandler).Methods(http.MethodGet)
	router.HandleFunc("/{identifier:.*}/to/{format}", s.FormatHandler).Methods(http.MethodGet)
	router.HandleFunc("/{identifier:.*}/thumb", s.ThumbHandler).Methods(http.MethodGet)
	return s.withRequestLog(router)
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("server.listen", "addr", addr, "root", s.root)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// resolve maps an identifier onto a path confined to the root.
func (s *Server) resolve(r *http.Request) string {
	id := mux.Vars(r)["identifier"]
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+id)))
}

// InfoHandler responds with the identify report of the image.  Unknown
// identifiers are answered without running the tool.
func (s *Server) InfoHandler(w http.ResponseWriter, r *http.Request) {
	src := s.resolve(r)
	if _, err := os.Stat(src); err != nil {
		s.fail(w, r, apperrors.Wrap(apperrors.CategoryInput, "info", err))
		return
	}
	id, err := s.proc.Identify(r.Context(), src)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(id)
}

// FormatHandler serves the sibling of the image in the requested format.
func (s *Server) FormatHandler(w http.ResponseWriter, r *http.Request) {
	src := s.resolve(r)
	format := mux.Vars(r)["format"]
	v, err := s.flight.Do(src+"→"+format, func() (interface{}, error) {
		return s.proc.ToFormat(r.Context(), src, format)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.serve(w, r, v.(*core.Result))
}

// ThumbHandler serves a thumbnail built from the query options.  Query keys
// that are not option names are ignored.
func (s *Server) ThumbHandler(w http.ResponseWriter, r *http.Request) {
	src := s.resolve(r)
	opts := make(map[string]any)
	reg := s.proc.Registry()
	for k, vals := range r.URL.Query() {
		if _, ok := reg.Lookup(k); ok && len(vals) > 0 {
			opts[k] = vals[0]
		}
	}

	dst, err := s.proc.ThumbPath(src, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.flight.Do(dst, func() (interface{}, error) {
		return s.proc.Thumb(r.Context(), src, opts)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.serve(w, r, v.(*core.Result))
}

// MetricsHandler responds with the metrics snapshot and processor counters.
func (s *Server) MetricsHandler(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"stats": s.proc.Stats()}
	if s.metrics != nil {
		body["metrics"] = s.metrics.Snapshot()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, res *core.Result) {
	if res.Skipped {
		w.Header().Set("X-Colorist-Cache", "hit")
	} else {
		w.Header().Set("X-Colorist-Cache", "miss")
	}
	http.ServeFile(w, r, res.Destination)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	s.logger.Warn("http.error",
		"path", r.URL.Path,
		"status", status,
		"category", string(apperrors.CategoryOf(err)),
		"error", err.Error(),
	)
	http.Error(w, err.Error(), status)
}

// StatusFor maps an error onto an HTTP status code.
func StatusFor(err error) int {
	switch apperrors.CategoryOf(err) {
	case apperrors.CategoryInvalidOption:
		return http.StatusBadRequest
	case apperrors.CategoryUnsupportedFileType:
		return http.StatusUnsupportedMediaType
	case apperrors.CategoryMissingTemplate:
		return http.StatusInternalServerError
	case apperrors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case apperrors.CategoryExternalTool, apperrors.CategoryMalformedIdentify:
		return http.StatusBadGateway
	case apperrors.CategoryInput:
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return http.StatusNotFound
		case errors.Is(err, apperrors.ErrSourceTooLarge):
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case apperrors.CategoryStorage:
		if errors.Is(err, apperrors.ErrJobNotFound) {
			return http.StatusNotFound
		}
	}
	return http.StatusInternalServerError
}

// ── middleware ────────────────────────────────────────────────────────────────

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withRequestLog tags every request with an X-Request-Id and logs its outcome.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		s.logger.Info("http.request",
			"id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
