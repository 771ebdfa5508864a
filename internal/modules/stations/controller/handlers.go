package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrCodingRobot/EmergencyStations/internal/modules/stations/service"
	"github.com/MrCodingRobot/EmergencyStations/internal/utils"
)

func (c *stationControllerImpl) handleStations(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, c.service.Stations())
}

func (c *stationControllerImpl) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseStationID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := c.service.Status(r.Context(), id)
	if err != nil {
		writeServiceError(w, "status", id, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, status)
}

func (c *stationControllerImpl) handleSamples(w http.ResponseWriter, r *http.Request) {
	id, err := parseStationID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseSamplesQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	samples, err := c.service.Samples(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, "samples", id, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, samples)
}

func (c *stationControllerImpl) handleStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := c.service.Statuses(r.Context())
	if err != nil {
		slog.Error("statuses: load failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load statuses")
		return
	}
	utils.WriteJSON(w, http.StatusOK, statuses)
}

func writeServiceError(w http.ResponseWriter, op string, id int, err error) {
	if errors.Is(err, service.ErrUnknownStation) {
		utils.WriteStationError(w, http.StatusNotFound, id, "unknown station")
		return
	}
	slog.Error(op+": load failed", "station_id", id, "error", err)
	utils.WriteStationError(w, http.StatusInternalServerError, id, "failed to load "+op)
}
