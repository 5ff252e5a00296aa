package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"PoolLedger/internal/observability"
	"PoolLedger/internal/query"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SnapshotTrigger lets the admin endpoint request a snapshot from the
// orchestrator without the server knowing about the engine.
type SnapshotTrigger interface {
	TakeSnapshot(ctx context.Context) (*query.SnapshotInfo, error)
}

// Server is the read-only HTTP surface: bank and group queries, derived
// stats, health endpoints and the snapshot admin hook. All writes flow
// through NATS, never through HTTP.
type Server struct {
	query     *query.Service
	snapshots SnapshotTrigger
	health    *observability.HealthChecker
	metrics   *observability.Metrics
	log       zerolog.Logger

	router http.Handler
}

func New(qs *query.Service, snapshots SnapshotTrigger, health *observability.HealthChecker, metrics *observability.Metrics) *Server {
	s := &Server{
		query:     qs,
		snapshots: snapshots,
		health:    health,
		metrics:   metrics,
		log:       observability.NewLogger("http"),
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)

	r.Route("/v1", func(api chi.Router) {
		api.Get("/banks", s.listBanks)
		api.Get("/banks/{asset}", s.getBank)
		api.Get("/banks/{asset}/stats", s.getBankStats)
		api.Get("/group", s.getGroup)
		api.Post("/admin/snapshot", s.takeSnapshot)
	})

	return r
}

// instrument records per-endpoint request counts and latency using the chi
// route pattern so path parameters don't explode label cardinality.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		if s.metrics == nil {
			return
		}
		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		s.metrics.QueryRequests.WithLabelValues(endpoint).Inc()
		s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) listBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := s.query.ListBanks(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, banks)
}

func (s *Server) getBank(w http.ResponseWriter, r *http.Request) {
	assetID, ok := s.assetParam(w, r)
	if !ok {
		return
	}

	bank, err := s.query.GetBank(r.Context(), assetID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, bank)
}

func (s *Server) getBankStats(w http.ResponseWriter, r *http.Request) {
	assetID, ok := s.assetParam(w, r)
	if !ok {
		return
	}

	stats, err := s.query.GetBankStats(r.Context(), assetID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, stats)
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.query.GetGroup(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, group)
}

func (s *Server) takeSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		s.respondError(w, http.StatusNotImplemented, "snapshots disabled")
		return
	}

	info, err := s.snapshots.TakeSnapshot(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusAccepted, info)
}

func (s *Server) assetParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	assetID, err := uuid.Parse(chi.URLParam(r, "asset"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "asset must be a UUID")
		return uuid.UUID{}, false
	}
	return assetID, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if s.metrics != nil {
		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		s.metrics.QueryErrors.WithLabelValues(endpoint).Inc()
	}

	if errors.Is(err, query.ErrBankNotFound) {
		s.respondError(w, http.StatusNotFound, "no bank for asset")
		return
	}

	s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	s.respondError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) respond(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("response encode failed")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respond(w, status, map[string]string{"error": msg})
}
