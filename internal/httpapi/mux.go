package httpapi

import (
	"net/http"

	"github.com/MrCodingRobot/EmergencyStations/internal/metrics"
)

func NewMux(ping PingFunc) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, ping)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}
