package controller

import (
	"context"
	"net/http"

	"github.com/MrCodingRobot/EmergencyStations/internal/modules/stations/types"
)

// StationService is the read side of the stations service.
type StationService interface {
	Stations() []types.Station
	Status(ctx context.Context, number int) (types.Status, error)
	Statuses(ctx context.Context) ([]types.Status, error)
	Samples(ctx context.Context, number int, limit int) ([]types.Sample, error)
}

type StationController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type stationControllerImpl struct {
	service StationService
}

func NewStationController(service StationService) StationController {
	return &stationControllerImpl{service: service}
}

func (c *stationControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/stations", c.handleStations)
	mux.HandleFunc("GET /api/v1/stations/{id}/status", c.handleStatus)
	mux.HandleFunc("GET /api/v1/stations/{id}/samples", c.handleSamples)
	mux.HandleFunc("GET /api/v1/status", c.handleStatuses)
}
