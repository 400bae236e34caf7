package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/secmon-lab/riskmatrix/pkg/service/metrics"
	"github.com/secmon-lab/riskmatrix/pkg/service/worker"
	"github.com/secmon-lab/riskmatrix/pkg/usecase"
)

// DefaultAllowedOrigins are the development origins of the dashboard
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

type Server struct {
	router         *chi.Mux
	uc             *usecase.UseCases
	metrics        *metrics.Recorder
	snapshots      SnapshotSource
	allowedOrigins []string
}

// SnapshotSource provides the latest register snapshot, or nil before the first one exists
type SnapshotSource interface {
	Snapshot() *worker.Snapshot
}

type Options func(*Server)

// WithMetrics exposes /metrics and counts served requests
func WithMetrics(recorder *metrics.Recorder) Options {
	return func(s *Server) {
		s.metrics = recorder
	}
}

// WithSnapshot serves /matrix and /dashboard from src. Until src has a snapshot
// both endpoints read the repository directly.
func WithSnapshot(src SnapshotSource) Options {
	return func(s *Server) {
		s.snapshots = src
	}
}

// WithAllowedOrigins sets the CORS allow-list
func WithAllowedOrigins(origins []string) Options {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:         r,
		uc:             uc,
		allowedOrigins: DefaultAllowedOrigins,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))
	if s.metrics != nil {
		r.Use(requestCounter(s.metrics))
	}

	r.Get("/", s.indexHandler)
	r.Post("/assess-risk", s.assessRiskHandler)
	r.Post("/preview", s.previewHandler)
	r.Route("/risks", func(r chi.Router) {
		r.Get("/", s.listRisksHandler)
		r.Get("/export", s.exportHandler)
		r.Get("/{id}", s.getRiskHandler)
	})
	r.Get("/matrix", s.matrixHandler)
	r.Get("/dashboard", s.dashboardHandler)
	r.Get("/compliance-hint/{level}", s.complianceHintHandler)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) latestSnapshot() *worker.Snapshot {
	if s.snapshots == nil {
		return nil
	}
	return s.snapshots.Snapshot()
}
