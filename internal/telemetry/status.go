package telemetry

import (
	"fmt"
	"math"
	"slices"
)

// JugWeightLbs is the weight of one filled water jug.
const JugWeightLbs = 8.34

// Jugs converts a weight in pounds to a rounded jug count.
func Jugs(weightLbs float64) int {
	return int(math.Round(weightLbs / JugWeightLbs))
}

// LatestStatus is the newest known state of a station.
type LatestStatus struct {
	Station   Station
	Sample    Sample
	HasSample bool

	// Position as last reported by the satellite network, falling back to
	// the provisioned one.
	Latitude  string
	Longitude string
	CEP       string

	Jugs int
	// Stale is set when the most recent transmission carried no payload.
	Stale bool

	// Alarm is the latest transmission's code and AlarmText its label, or
	// NoDataLabel when that transmission carried no payload.
	Alarm     int
	AlarmText string

	// CurrentA and VoltageV are only reported by generations that carry
	// them (HasPower), smoothed like the jug count and rounded to 0.01.
	HasPower bool
	CurrentA float64
	VoltageV float64
}

// NoDataLabel is shown for the alarm of a station whose latest transmission
// carried no payload.
const NoDataLabel = "No Data"

// AlarmLabel returns the display text for an alarm code.
func AlarmLabel(code int) string {
	if code == 0 {
		return "None"
	}
	return fmt.Sprintf("Alarm %d", code)
}

// NewLatestStatus derives a station's status from its series and its most
// recent transmission, which may be nil.
//
// For circular generations the jug count, current and voltage average the
// newest slot with the one written one step earlier, smoothing out a single
// noisy reading.
func NewLatestStatus(station Station, series Series, last *ParsedTransmission) LatestStatus {
	st := LatestStatus{
		Station:   station,
		Latitude:  station.Latitude,
		Longitude: station.Longitude,
		CEP:       station.CEP,
		AlarmText: NoDataLabel,
	}
	if last != nil {
		if last.Latitude != "" && last.Longitude != "" {
			st.Latitude = last.Latitude
			st.Longitude = last.Longitude
		}
		if last.CEP != "" {
			st.CEP = last.CEP
		}
		st.Stale = !last.HasPayload()
		if last.HasPayload() {
			st.Alarm = last.Alarm
			st.AlarmText = AlarmLabel(last.Alarm)
		}
	}

	newest, ok := series.Latest()
	if !ok {
		return st
	}
	st.Sample = newest
	st.HasSample = true

	layout := station.Generation.Layout()
	smoothed := func(ch Channel) float64 { return newest.Values[ch] }
	if layout.Circular() && len(series) > 1 {
		prev := series[len(series)-2]
		if newest.Time.Sub(prev.Time) == layout.Step {
			smoothed = func(ch Channel) float64 { return (newest.Values[ch] + prev.Values[ch]) / 2 }
		}
	}
	st.Jugs = Jugs(smoothed(ChannelWeight))
	if slices.Contains(layout.Channels, ChannelCurrent) && slices.Contains(layout.Channels, ChannelVoltage) {
		st.HasPower = true
		st.CurrentA = round2(smoothed(ChannelCurrent))
		st.VoltageV = round2(smoothed(ChannelVoltage))
	}
	return st
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
