package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/markethub/internal/domain"
	"github.com/alanyoungcy/markethub/internal/hub"
)

// broadcastTypes are the envelope types external collaborators (order
// services, notification jobs, ops tooling) may publish through the API.
var broadcastTypes = map[domain.MessageType]bool{
	domain.TypeOrderUpdate: true,
	domain.TypeMarketNews:  true,
	domain.TypeSystemAlert: true,
}

// broadcastRequest is the POST /api/broadcast body.
type broadcastRequest struct {
	Type    domain.MessageType `json:"type"`
	Channel string             `json:"channel"`
	Data    json.RawMessage    `json:"data"`
}

// BroadcastHandler lets authenticated collaborators publish envelopes to a
// channel through the hub.
type BroadcastHandler struct {
	hub    *hub.Hub
	logger *slog.Logger
}

// NewBroadcastHandler creates a BroadcastHandler for the given hub.
func NewBroadcastHandler(h *hub.Hub, logger *slog.Logger) *BroadcastHandler {
	return &BroadcastHandler{hub: h, logger: logger}
}

// Publish validates the request and fans the payload out to the channel's
// current subscribers.
// POST /api/broadcast
func (h *BroadcastHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !broadcastTypes[req.Type] {
		writeError(w, http.StatusBadRequest, "unsupported message type "+string(req.Type))
		return
	}
	if req.Channel == "" {
		writeError(w, http.StatusBadRequest, "channel is required")
		return
	}

	h.hub.Broadcast(req.Type, req.Channel, req.Data)

	h.logger.InfoContext(r.Context(), "broadcast published",
		slog.String("type", string(req.Type)),
		slog.String("channel", req.Channel),
	)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "published"})
}
