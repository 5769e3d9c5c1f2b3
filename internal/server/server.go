// Package server implements the HTTP render service. It exposes the
// pipeline over a small query-parameter API: GET /render returns a PNG,
// GET /legend returns the categorical color key, and GET /colormaps
// lists the built-in colormaps.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tyrasd/datashader/pkg/cache"
	"github.com/tyrasd/datashader/pkg/errors"
	"github.com/tyrasd/datashader/pkg/pipeline"
	"github.com/tyrasd/datashader/pkg/shade"
	"github.com/tyrasd/datashader/pkg/source"
)

// Server is the HTTP render service.
type Server struct {
	cfg    Config
	runner *pipeline.Runner
	logger *log.Logger

	mu      sync.Mutex
	sources map[string]source.Source
}

// New builds a server from the configuration, opening the configured
// cache backend.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}

	var c cache.Cache
	var err error
	switch cfg.Cache.Backend {
	case "redis":
		c, err = cache.NewRedisCache(ctx, cfg.Cache.Redis)
	case "none":
		c = cache.NewNullCache()
	default:
		c, err = cache.NewFileCache(cfg.Cache.Dir)
	}
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:     cfg,
		runner:  pipeline.NewRunner(c, nil, logger),
		logger:  logger,
		sources: make(map[string]source.Source),
	}, nil
}

// Close releases the cache backend.
func (s *Server) Close() error {
	return s.runner.Close()
}

// Handler returns the service's routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/colormaps", s.handleColormaps)
	r.Get("/render", s.handleRender)
	r.Get("/legend", s.handleLegend)
	return r
}

// ListenAndServe runs the service until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("render service listening", "addr", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleColormaps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"colormaps": shade.Names()})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	opts, err := s.requestOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	src, err := s.openSource(r.Context(), opts.Source)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.runner.Execute(r.Context(), src, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", fmt.Sprint(len(res.PNG)))
	if res.CacheInfo.ImageHit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	w.Write(res.PNG)
}

// handleLegend returns the category-to-color key a categorical render of
// the same request would use.
func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	opts, err := s.requestOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	names := opts.Categories
	if len(names) == 0 {
		err := errors.New(errors.ErrCodeInvalidConfig, "legend requires a cats parameter")
		s.writeError(w, r, err)
		return
	}

	key := pipeline.ColorKeyFor(names)
	entries := make(map[string]string, len(key))
	for name, c := range key {
		entries[name] = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	writeJSON(w, http.StatusOK, map[string]any{"legend": entries})
}

func (s *Server) requestOptions(r *http.Request) (pipeline.Options, error) {
	var preset *Preset
	if name := r.URL.Query().Get("preset"); name != "" {
		p, ok := s.cfg.Presets[name]
		if !ok {
			return pipeline.Options{}, errors.New(errors.ErrCodeInvalidConfig, "unknown preset %q", name)
		}
		preset = &p
	}
	opts, err := optionsFromQuery(r.URL.Query(), preset)
	if err != nil {
		return opts, err
	}
	if opts.Source == "" {
		return opts, errors.New(errors.ErrCodeInvalidConfig, "missing source parameter")
	}
	return opts, nil
}

// openSource resolves a feed name to a CSV under the data directory.
// Sources are opened once and reused; the underlying files are assumed
// immutable while the service runs.
func (s *Server) openSource(ctx context.Context, name string) (source.Source, error) {
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return nil, errors.New(errors.ErrCodeUnknownFeed, "invalid source name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.sources[name]; ok {
		return src, nil
	}

	path := filepath.Join(s.cfg.DataDir, name+".csv")
	src, err := source.OpenCSV(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnknownFeed, err, "opening feed %q", name)
	}
	s.sources[name] = src
	return src, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{
		"error": errors.UserMessage(err),
		"code":  string(errors.GetCode(err)),
	})
}

// statusFor maps the error code taxonomy onto HTTP statuses. Every
// configuration and lookup failure is the caller's fault.
func statusFor(err error) int {
	code := errors.GetCode(err)
	switch {
	case code == errors.ErrCodeUnknownFeed:
		return http.StatusNotFound
	case strings.HasPrefix(string(code), "INVALID_"),
		strings.HasPrefix(string(code), "UNKNOWN_"),
		strings.HasPrefix(string(code), "INCOMPATIBLE_"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// requestID tags every request with a UUID, echoed in the response for
// correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request's correlation ID, if set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", RequestID(r.Context()),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
