package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseStationID(t *testing.T) {
	tests := []struct {
		id      string
		want    int
		wantErr bool
	}{
		{id: "3", want: 3},
		{id: "", wantErr: true},
		{id: "0", wantErr: true},
		{id: "-4", wantErr: true},
		{id: "three", wantErr: true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.SetPathValue("id", tt.id)
		got, err := parseStationID(req)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseStationID(%q) err = %v; wantErr %v", tt.id, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseStationID(%q) = %d; want %d", tt.id, got, tt.want)
		}
	}
}

func TestParseSamplesQuery(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "", want: defaultSamplesLimit},
		{query: "?limit=1", want: 1},
		{query: "?limit=5000", want: 5000},
		{query: "?limit=5001", wantErr: true},
		{query: "?limit=0", wantErr: true},
		{query: "?limit=x", wantErr: true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stations/3/samples"+tt.query, nil)
		got, err := parseSamplesQuery(req)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSamplesQuery(%q) err = %v; wantErr %v", tt.query, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSamplesQuery(%q) = %d; want %d", tt.query, got, tt.want)
		}
	}
}
