// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/FelixJx/fupan-game/internal/app"
	"github.com/FelixJx/fupan-game/internal/domain/model"
)

// SessionDependencies defines the interface for session handler dependencies.
type SessionDependencies interface {
	StartSession(ctx context.Context, userID string) (model.Session, error)
	GetSession(ctx context.Context, sessionID string) (model.Session, error)
	SubmitStep(ctx context.Context, sessionID string, step int, fields map[string]string) (app.StepResult, error)
	SubmitPredictions(ctx context.Context, sessionID string, bundle model.PredictionBundle) (app.PredictionReceipt, error)
	ScoreReport(ctx context.Context, sessionID string) (model.ScoreReport, error)
}

// SessionsHandler handles the session lifecycle routes.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// startSessionRequest mirrors the schema for POST /api/sessions.
type startSessionRequest struct {
	UserID string `json:"user_id"`
}

// stepRequest mirrors the schema for POST /api/sessions/{id}/steps/{step}.
type stepRequest struct {
	Fields map[string]string `json:"fields"`
}

// predictionRequest mirrors the schema for POST /api/sessions/{id}/predictions.
type predictionRequest struct {
	Sectors   []string `json:"sectors"`
	Stocks    []string `json:"stocks"`
	Direction string   `json:"direction"`
	Sentiment string   `json:"sentiment"`
}

// HandleStartSession handles POST /api/sessions requests.
func (h *SessionsHandler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	// An empty body starts a guest session.
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
	}

	session, err := h.deps.StartSession(r.Context(), req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// HandleGetSession handles GET /api/sessions/{sessionID} requests.
func (h *SessionsHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.deps.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// HandleSubmitStep handles POST /api/sessions/{sessionID}/steps/{step} requests.
func (h *SessionsHandler) HandleSubmitStep(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil || step < 1 || step > model.StepCount {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	var req stepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	result, err := h.deps.SubmitStep(r.Context(), chi.URLParam(r, "sessionID"), step, req.Fields)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleSubmitPredictions handles POST /api/sessions/{sessionID}/predictions
// requests.
func (h *SessionsHandler) HandleSubmitPredictions(w http.ResponseWriter, r *http.Request) {
	var req predictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	bundle := model.PredictionBundle{
		Sectors:         req.Sectors,
		Stocks:          req.Stocks,
		MarketDirection: model.Direction(req.Direction),
		FundSentiment:   model.Sentiment(req.Sentiment),
	}
	receipt, err := h.deps.SubmitPredictions(r.Context(), chi.URLParam(r, "sessionID"), bundle)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

// HandleGetScore handles GET /api/sessions/{sessionID}/score requests.
func (h *SessionsHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.ScoreReport(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
