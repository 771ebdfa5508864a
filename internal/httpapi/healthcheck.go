package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrCodingRobot/EmergencyStations/internal/utils"
)

// PingFunc checks store connectivity, e.g. (*sql.DB).PingContext or
// (*pgxpool.Pool).Ping.
type PingFunc func(ctx context.Context) error

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	ping PingFunc
}

func NewHealthchecker(ping PingFunc) healthchecker {
	return &healthcheckerImpl{ping: ping}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.ping(ctx); err != nil {
		slog.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to check database connectivity")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func registerHealthcheck(mux *http.ServeMux, ping PingFunc) {
	healthchecker := NewHealthchecker(ping)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
