package stations

import (
	"net/http"

	"github.com/MrCodingRobot/EmergencyStations/internal/modules/stations/controller"
)

func RegisterFeature(mux *http.ServeMux, svc controller.StationService) {
	stationController := controller.NewStationController(svc)
	stationController.RegisterRoutes(mux)
}
