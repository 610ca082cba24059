// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/FelixJx/fupan-game/internal/adapters/ws"
	"github.com/FelixJx/fupan-game/internal/app"
	"github.com/FelixJx/fupan-game/internal/domain/model"
	"github.com/FelixJx/fupan-game/internal/market"
	"github.com/FelixJx/fupan-game/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StartSession(ctx context.Context, userID string) (model.Session, error)
	GetSession(ctx context.Context, sessionID string) (model.Session, error)
	SubmitStep(ctx context.Context, sessionID string, step int, fields map[string]string) (app.StepResult, error)
	SubmitPredictions(ctx context.Context, sessionID string, bundle model.PredictionBundle) (app.PredictionReceipt, error)
	ScoreReport(ctx context.Context, sessionID string) (model.ScoreReport, error)
	Leaderboard(ctx context.Context, n int) ([]model.LeaderboardEntry, error)
	MarketSnapshot(ctx context.Context) (market.Snapshot, error)
	Stats(ctx context.Context) map[string]interface{}
	Hub() *ws.Hub
}

// Server wires HTTP routes for the business API.
type Server struct {
	sessionsHandler    *SessionsHandler
	leaderboardHandler *LeaderboardHandler
	marketHandler      *MarketHandler
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	wsHandler          *WSHandler

	maxLeaderboardLimit int
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxLeaderboardLimit caps the leaderboard query limit.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLeaderboardLimit = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		maxLeaderboardLimit: 100,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.sessionsHandler = NewSessionsHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLeaderboardLimit)
	s.marketHandler = NewMarketHandler(deps)
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.wsHandler = NewWSHandler(deps)

	return s
}

// Router builds the chi router with middleware and all routes attached.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", metricsMiddleware(s.sessionsHandler.HandleStartSession, "start_session"))
		r.Get("/sessions/{sessionID}", metricsMiddleware(s.sessionsHandler.HandleGetSession, "get_session"))
		r.Post("/sessions/{sessionID}/steps/{step}", metricsMiddleware(s.sessionsHandler.HandleSubmitStep, "submit_step"))
		r.Post("/sessions/{sessionID}/predictions", metricsMiddleware(s.sessionsHandler.HandleSubmitPredictions, "submit_predictions"))
		r.Get("/sessions/{sessionID}/score", metricsMiddleware(s.sessionsHandler.HandleGetScore, "get_score"))
		r.Get("/leaderboard", metricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
		r.Get("/market", metricsMiddleware(s.marketHandler.HandleGetMarket, "market"))
	})

	r.Get("/ws/{sessionID}", s.wsHandler.HandleSubscribe)
	r.Get("/healthz", metricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", metricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
