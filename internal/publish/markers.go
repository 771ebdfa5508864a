package publish

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/MrCodingRobot/EmergencyStations/internal/telemetry"
)

// mapID is the map the marker rows belong to in the site's map plugin.
const mapID = 81

var markerHeader = []string{
	"id", "map_id", "address", "description", "pic", "link", "lat", "lng",
	"icon", "anim", "title", "infoopen", "category", "approved", "retina",
	"type", "did", "other_data",
}

// Marker is one map pin. Stations reporting the same position share a pin.
type Marker struct {
	ID        string
	Latitude  string
	Longitude string
	Stations  []int
}

func (m Marker) Title() string {
	names := make([]string, len(m.Stations))
	for i, n := range m.Stations {
		names[i] = "Station " + strconv.Itoa(n)
	}
	return strings.Join(names, ", ")
}

// BuildMarkers groups stations by identical latitude and longitude text.
// Pins appear in order of their first station, and a shared pin's ID is
// the concatenation of its station numbers.
func BuildMarkers(statuses []telemetry.LatestStatus) []Marker {
	type position struct{ lat, lng string }
	index := make(map[position]int)
	var out []Marker
	for _, st := range statuses {
		pos := position{st.Latitude, st.Longitude}
		i, ok := index[pos]
		if !ok {
			index[pos] = len(out)
			out = append(out, Marker{Latitude: pos.lat, Longitude: pos.lng})
			i = len(out) - 1
		}
		out[i].Stations = append(out[i].Stations, st.Station.Number)
		out[i].ID += strconv.Itoa(st.Station.Number)
	}
	return out
}

func WriteMarkers(w io.Writer, markers []Marker) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(markerHeader); err != nil {
		return err
	}
	for _, m := range markers {
		row := []string{
			m.ID, strconv.Itoa(mapID), m.Latitude + ", " + m.Longitude, "", "", "",
			m.Latitude, m.Longitude, "", "0", m.Title(), "0", "0", "1", "0",
			"0", "", "",
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
