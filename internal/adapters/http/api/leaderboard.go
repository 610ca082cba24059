// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/FelixJx/fupan-game/internal/domain/model"
)

const defaultLeaderboardLimit = 10

// LeaderboardDependencies defines the interface for leaderboard queries.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, n int) ([]model.LeaderboardEntry, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, maxLimit: maxLimit}
}

type leaderboardResponse struct {
	Entries []model.LeaderboardEntry `json:"entries"`
}

// HandleGetLeaderboard handles GET /api/leaderboard requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", ErrBadRequest)
			return
		}
		limit = n
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	entries, err := h.deps.Leaderboard(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Entries: entries})
}
