package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrCodingRobot/EmergencyStations/internal/modules/stations/service"
	"github.com/MrCodingRobot/EmergencyStations/internal/modules/stations/types"
)

type mockService struct {
	stations    []types.Station
	status      types.Status
	statusErr   error
	statuses    []types.Status
	statusesErr error
	samples     []types.Sample
	samplesErr  error

	gotID    int
	gotLimit int
}

func (m *mockService) Stations() []types.Station { return m.stations }

func (m *mockService) Status(_ context.Context, number int) (types.Status, error) {
	m.gotID = number
	return m.status, m.statusErr
}

func (m *mockService) Statuses(context.Context) ([]types.Status, error) {
	return m.statuses, m.statusesErr
}

func (m *mockService) Samples(_ context.Context, number int, limit int) ([]types.Sample, error) {
	m.gotID = number
	m.gotLimit = limit
	return m.samples, m.samplesErr
}

func serve(t *testing.T, svc StationService, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewStationController(svc).RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func Test_handleStations(t *testing.T) {
	svc := &mockService{stations: []types.Station{
		{Number: 3, Name: "Station 3", Generation: "gen2"},
		{Number: 7, Name: "Station 7", Generation: "gen1"},
	}}
	rec := serve(t, svc, "/api/v1/stations")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q; want application/json", ct)
	}
	var got []types.Station
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[1].Generation != "gen1" {
		t.Errorf("stations = %+v", got)
	}
}

func Test_handleStatus(t *testing.T) {
	t.Run("returns status on success", func(t *testing.T) {
		svc := &mockService{status: types.Status{Station: 3, Name: "Station 3", Jugs: 12, Stale: true}}
		rec := serve(t, svc, "/api/v1/stations/3/status")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if svc.gotID != 3 {
			t.Errorf("service got station %d; want 3", svc.gotID)
		}
		body := rec.Body.String()
		if !strings.Contains(body, `"jugs":12`) || !strings.Contains(body, `"stale":true`) {
			t.Errorf("body = %q; expected status JSON", body)
		}
	})

	t.Run("returns 400 when id is not a number", func(t *testing.T) {
		rec := serve(t, &mockService{}, "/api/v1/stations/abc/status")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusBadRequest)
		}
		if !strings.Contains(rec.Body.String(), "invalid station id") {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("returns 404 for unknown station", func(t *testing.T) {
		rec := serve(t, &mockService{statusErr: service.ErrUnknownStation}, "/api/v1/stations/99/status")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusNotFound)
		}
		if !strings.Contains(rec.Body.String(), `"station":99`) {
			t.Errorf("body = %q; expected the station number", rec.Body.String())
		}
	})

	t.Run("returns 500 when service fails", func(t *testing.T) {
		rec := serve(t, &mockService{statusErr: errors.New("db error")}, "/api/v1/stations/3/status")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
		if strings.Contains(rec.Body.String(), "db error") {
			t.Errorf("body leaks internal error: %q", rec.Body.String())
		}
	})
}

func Test_handleSamples(t *testing.T) {
	t.Run("uses default limit", func(t *testing.T) {
		svc := &mockService{samples: []types.Sample{{
			Time:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			Slot:   2,
			Values: map[string]float64{"weight_lbs": 101},
		}}}
		rec := serve(t, svc, "/api/v1/stations/3/samples")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if svc.gotLimit != defaultSamplesLimit {
			t.Errorf("limit = %d; want %d", svc.gotLimit, defaultSamplesLimit)
		}
		if !strings.Contains(rec.Body.String(), `"weight_lbs":101`) {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("passes limit through", func(t *testing.T) {
		svc := &mockService{}
		rec := serve(t, svc, "/api/v1/stations/3/samples?limit=25")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if svc.gotLimit != 25 {
			t.Errorf("limit = %d; want 25", svc.gotLimit)
		}
	})

	t.Run("returns 400 when limit is invalid", func(t *testing.T) {
		for _, q := range []string{"abc", "0", "-1", "5001"} {
			rec := serve(t, &mockService{}, "/api/v1/stations/3/samples?limit="+q)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("limit=%s: status = %d; want %d", q, rec.Code, http.StatusBadRequest)
			}
		}
	})

	t.Run("returns 404 for unknown station", func(t *testing.T) {
		rec := serve(t, &mockService{samplesErr: service.ErrUnknownStation}, "/api/v1/stations/99/samples")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusNotFound)
		}
	})
}

func Test_handleStatuses(t *testing.T) {
	t.Run("returns all statuses", func(t *testing.T) {
		svc := &mockService{statuses: []types.Status{{Station: 3}, {Station: 7}}}
		rec := serve(t, svc, "/api/v1/status")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		var got []types.Status
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("got %d statuses; want 2", len(got))
		}
	})

	t.Run("returns 500 when service fails", func(t *testing.T) {
		rec := serve(t, &mockService{statusesErr: errors.New("redis down")}, "/api/v1/status")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
	})
}
