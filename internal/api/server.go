// Package api exposes the catalogue over HTTP.
//
// Records travel as flat JSON objects, read-only keys included, exactly as
// ir.Building.Attributes renders them. A client edits the object it fetched
// and posts it back; the revision_id it carries is the expected revision.
// The acting principal is taken from the X-User-ID header. Authenticating
// that header is the job of whatever sits in front of this server.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/brickbook/internal/ir"
)

// PrincipalHeader carries the acting user's UUID on mutating requests.
const PrincipalHeader = "X-User-ID"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Catalogue is the service the handlers call. *catalogue.Service implements it.
type Catalogue interface {
	Building(ctx context.Context, id int64) (ir.Building, error)
	BuildingAt(ctx context.Context, id, revision int64) (ir.Building, error)
	History(ctx context.Context, id int64) ([]ir.LogEntry, error)
	FindByReference(ctx context.Context, kind ir.ReferenceKind, value string) ([]ir.Building, error)
	FindNear(ctx context.Context, p ir.Point) ([]ir.Building, error)
	SaveBuilding(ctx context.Context, id int64, proposed ir.Object, principal ir.Principal) (ir.Building, error)
	LikeBuilding(ctx context.Context, id int64, principal ir.Principal) (ir.Building, error)
	RevertChange(ctx context.Context, id, logID, expectedRevision int64, principal ir.Principal) (ir.Building, error)
}

// HealthChecker reports whether the backing store is reachable.
// *store.Store implements it.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type server struct {
	catalogue Catalogue
	health    HealthChecker
	logger    *slog.Logger
}

// NewServer wires the catalogue handlers into a router and exposes health
// and Prometheus endpoints.
func NewServer(c Catalogue, health HealthChecker, logger *slog.Logger) http.Handler {
	s := &server{catalogue: c, health: health, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/buildings", func(r chi.Router) {
		r.Get("/", s.handleFindByReference)
		r.Get("/near", s.handleFindNear)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetBuilding)
			r.Post("/", s.handleSaveBuilding)
			r.Post("/like", s.handleLikeBuilding)
			r.Get("/history", s.handleHistory)
			r.Post("/history/{logID}/revert", s.handleRevert)
		})
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// logRequests logs one line per request at debug level, or warn for 5xx.
func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
