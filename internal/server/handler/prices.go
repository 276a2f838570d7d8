package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/markethub/internal/cache"
)

// PricesHandler serves read-only views over the snapshot cache.
type PricesHandler struct {
	cache  *cache.Snapshots
	logger *slog.Logger
}

// NewPricesHandler creates a PricesHandler backed by the given snapshot store.
func NewPricesHandler(snapshots *cache.Snapshots, logger *slog.Logger) *PricesHandler {
	return &PricesHandler{cache: snapshots, logger: logger}
}

// ListPrices returns every current snapshot.
// GET /api/prices
func (h *PricesHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	prices := h.cache.GetAll()
	writeJSON(w, http.StatusOK, map[string]any{
		"prices": prices,
		"count":  len(prices),
	})
}

// GetPrice returns the snapshot for one symbol.
// GET /api/prices/{symbol}
func (h *PricesHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	snap, ok := h.cache.Get(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
