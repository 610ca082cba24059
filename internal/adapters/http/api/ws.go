// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/FelixJx/fupan-game/internal/adapters/ws"
	"github.com/FelixJx/fupan-game/internal/domain/model"
	"github.com/FelixJx/fupan-game/pkg/logger"
)

// WSDependencies defines the interface for live channel dependencies.
type WSDependencies interface {
	GetSession(ctx context.Context, sessionID string) (model.Session, error)
	Hub() *ws.Hub
}

// WSHandler upgrades GET /ws/{sessionID} requests to websocket subscribers.
type WSHandler struct {
	deps     WSDependencies
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(deps WSDependencies) *WSHandler {
	return &WSHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The channel only pushes hints scoped to one session, so any
			// origin may subscribe.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.Named("api"),
	}
}

// HandleSubscribe handles GET /ws/{sessionID} requests. The session must
// exist; the subscription outlives state transitions within it.
func (h *WSHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.deps.GetSession(r.Context(), sessionID); err != nil {
		writeDomainError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug(r.Context(), "websocket upgrade failed",
			logger.String("sessionID", sessionID), logger.Error(err))
		return
	}

	h.deps.Hub().Subscribe(r.Context(), sessionID, conn)
}
