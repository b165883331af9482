// Package server exposes an open project over HTTP.
//
// The service lets a browser or script inspect layers, move them, render
// previews and download export archives:
//
//	GET    /healthz
//	GET    /api/v1/canvas
//	GET    /api/v1/layers
//	POST   /api/v1/layers             multipart upload, field "file"
//	PATCH  /api/v1/layers/{id}        JSON: x, y, scale, visible, name, z
//	DELETE /api/v1/layers/{id}
//	GET    /api/v1/preview.png        zoom, pan_x, pan_y, width, height
//	POST   /api/v1/export             scale; responds with a ZIP archive
//
// The server is the only mutator of its project. Handlers take the project
// lock for edits and for taking export snapshots; rasterization runs
// without the lock, so slow exports never block edits.
package server

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/kitbash/pkg/export"
	"github.com/matzehuels/kitbash/pkg/observability"
	"github.com/matzehuels/kitbash/pkg/project"
)

// DefaultMaxUploadBytes bounds uploaded images.
const DefaultMaxUploadBytes = 32 << 20

// Options configures a Server.
type Options struct {
	Runner         *export.Runner
	Logger         *log.Logger
	Limits         export.Limits
	MaxUploadBytes int64
	// Autosave writes the project file after every successful edit.
	Autosave bool
}

// Server serves one project.
type Server struct {
	mu      sync.Mutex
	project *project.Project

	runner    *export.Runner
	logger    *log.Logger
	limits    export.Limits
	maxUpload int64
	autosave  bool
	router    chi.Router
}

// New creates a server for p.
func New(p *project.Project, opts Options) *Server {
	s := &Server{
		project:   p,
		runner:    opts.Runner,
		logger:    opts.Logger,
		limits:    opts.Limits,
		maxUpload: opts.MaxUploadBytes,
		autosave:  opts.Autosave,
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	if s.runner == nil {
		s.runner = export.NewRunner(nil, nil, s.logger)
	}
	if s.limits.MaxArtifactSide <= 0 {
		s.limits = export.DefaultLimits()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(hooks)
	s.RegisterHTTP(r)
	s.router = r
	return s
}

// RegisterHTTP mounts the routes on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/canvas", s.handleCanvas)
		r.Get("/layers", s.handleListLayers)
		r.Post("/layers", s.handleUpload)
		r.Patch("/layers/{id}", s.handlePatchLayer)
		r.Delete("/layers/{id}", s.handleDeleteLayer)
		r.Get("/preview.png", s.handlePreview)
		r.Post("/export", s.handleExport)
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// hooks reports requests to the registered HTTP hooks, labelled with the
// matched route pattern.
func hooks(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h := observability.HTTP()
		h.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.OnResponse(r.Context(), r.Method, route, status, time.Since(start))
	})
}

// edit runs fn under the project lock and autosaves on success.
func (s *Server) edit(fn func(p *project.Project) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.project); err != nil {
		return err
	}
	if s.autosave {
		return s.project.Save()
	}
	return nil
}
