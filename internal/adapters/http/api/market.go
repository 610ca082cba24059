// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/FelixJx/fupan-game/internal/market"
)

// MarketDependencies defines the interface for market snapshot queries.
type MarketDependencies interface {
	MarketSnapshot(ctx context.Context) (market.Snapshot, error)
}

// MarketHandler handles market overview requests.
type MarketHandler struct {
	deps MarketDependencies
}

// NewMarketHandler creates a new market handler.
func NewMarketHandler(deps MarketDependencies) *MarketHandler {
	return &MarketHandler{deps: deps}
}

// HandleGetMarket handles GET /api/market requests.
func (h *MarketHandler) HandleGetMarket(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.deps.MarketSnapshot(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}
