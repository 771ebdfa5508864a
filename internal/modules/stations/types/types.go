package types

import (
	"time"

	"github.com/MrCodingRobot/EmergencyStations/internal/telemetry"
)

type Station struct {
	Number     int    `json:"number"`
	Name       string `json:"name"`
	Generation string `json:"generation"`
	IMEI       string `json:"imei"`
	Latitude   string `json:"latitude"`
	Longitude  string `json:"longitude"`
}

type Sample struct {
	Time   time.Time          `json:"time"`
	Slot   int                `json:"slot"`
	Values map[string]float64 `json:"values"`
}

// Status is the JSON and MQTT form of telemetry.LatestStatus. LastSample
// is nil for a station that has never sent a payload; CurrentA and VoltageV
// are nil for generations without power channels.
type Status struct {
	Station    int       `json:"station"`
	Name       string    `json:"name"`
	Latitude   string    `json:"latitude"`
	Longitude  string    `json:"longitude"`
	CEP        string    `json:"cep,omitempty"`
	Jugs       int       `json:"jugs"`
	Stale      bool      `json:"stale"`
	Alarm      int       `json:"alarm"`
	AlarmText  string    `json:"alarmText"`
	CurrentA   *float64  `json:"currentA,omitempty"`
	VoltageV   *float64  `json:"voltageV,omitempty"`
	LastSample *Sample   `json:"lastSample,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func StationFrom(s telemetry.Station) Station {
	return Station{
		Number:     s.Number,
		Name:       s.Name(),
		Generation: s.Generation.String(),
		IMEI:       s.IMEI(),
		Latitude:   s.Latitude,
		Longitude:  s.Longitude,
	}
}

// SampleFrom renders the sample time in the station display zone.
func SampleFrom(s telemetry.Sample) Sample {
	values := make(map[string]float64, len(s.Values))
	for ch, v := range s.Values {
		values[string(ch)] = v
	}
	return Sample{Time: s.Time.In(telemetry.Local), Slot: s.Slot, Values: values}
}

func SamplesFrom(in []telemetry.Sample) []Sample {
	out := make([]Sample, 0, len(in))
	for _, s := range in {
		out = append(out, SampleFrom(s))
	}
	return out
}

func StatusFrom(st telemetry.LatestStatus, now time.Time) Status {
	out := Status{
		Station:   st.Station.Number,
		Name:      st.Station.Name(),
		Latitude:  st.Latitude,
		Longitude: st.Longitude,
		CEP:       st.CEP,
		Jugs:      st.Jugs,
		Stale:     st.Stale,
		Alarm:     st.Alarm,
		AlarmText: st.AlarmText,
		UpdatedAt: now.In(telemetry.Local),
	}
	if st.HasPower {
		current, voltage := st.CurrentA, st.VoltageV
		out.CurrentA = &current
		out.VoltageV = &voltage
	}
	if st.HasSample {
		s := SampleFrom(st.Sample)
		out.LastSample = &s
	}
	return out
}
