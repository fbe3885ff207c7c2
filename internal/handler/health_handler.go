package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/eventhub/internal/repository"
)

const healthCheckTimeout = 3 * time.Second

type healthResponse struct {
	Status string `json:"status"`
}

// HealthHandler はストレージの疎通を確認するヘルスチェックハンドラー。
type HealthHandler struct {
	pinger repository.Pinger
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(pinger repository.Pinger) *HealthHandler {
	return &HealthHandler{pinger: pinger}
}

// Check はストレージに疎通できれば200、できなければ503を返す。
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.pinger.PingContext(ctx); err != nil {
		slog.WarnContext(r.Context(), "health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
