// Package server exposes a verification session over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/config"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/session"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// defaultOrigins are the local dev servers allowed when CORS_ORIGINS is
// unset.
var defaultOrigins = []string{
	"http://localhost:5173",
	"http://localhost:4173",
	"http://localhost:3000",
}

// Server serves one session.
type Server struct {
	sess *session.Session
	cfg  *config.Config
	log  logger.Logger
}

// New returns a server for sess.
func New(sess *session.Session, cfg *config.Config, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{sess: sess, cfg: cfg, log: log}
}

// Handler returns the routed handler wrapped in CORS.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "visu-pdf-pages"})
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.logRequests)

	api.HandleFunc("/session", s.startSession).Methods(http.MethodPost)
	api.HandleFunc("/session", s.getSession).Methods(http.MethodGet)
	api.HandleFunc("/session", s.deleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/session/page", s.setPage).Methods(http.MethodPut)
	api.HandleFunc("/session/width", s.setWidth).Methods(http.MethodPut)
	api.HandleFunc("/session/frame.png", s.getFrame).Methods(http.MethodGet)
	api.HandleFunc("/session/overlay", s.getOverlay).Methods(http.MethodGet)
	api.HandleFunc("/session/search", s.search).Methods(http.MethodPost)

	api.HandleFunc("/entries", s.listEntries).Methods(http.MethodGet)
	api.HandleFunc("/entries", s.addEntry).Methods(http.MethodPost)
	api.HandleFunc("/entries/{id}", s.updateEntry).Methods(http.MethodPut)
	api.HandleFunc("/entries/{id}", s.deleteEntry).Methods(http.MethodDelete)
	api.HandleFunc("/entries/{id}/duplicate", s.duplicateEntry).Methods(http.MethodPost)
	api.HandleFunc("/entries/{id}/reclassify", s.reclassifyEntry).Methods(http.MethodPost)
	api.HandleFunc("/entries/{id}/jump", s.jumpToEntry).Methods(http.MethodPost)
	api.HandleFunc("/export", s.export).Methods(http.MethodGet)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "X-Page", "X-Stale"},
		MaxAge:         300,
	})
	return c.Handler(router)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// Run serves on the configured address until ctx is done, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("server listening", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.log.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
