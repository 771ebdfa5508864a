package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// Local is the fixed station display zone, six hours behind UTC with no
// daylight saving adjustment.
var Local = time.FixedZone("CST", -6*60*60)

// Station is a provisioned transmitter. Number is the canonical key;
// Address is only used to look a station up from inbound mail.
type Station struct {
	Number     int        `yaml:"number" json:"number"`
	Generation Generation `yaml:"generation" json:"generation"`
	Address    string     `yaml:"address" json:"address"`
	Latitude   string     `yaml:"latitude" json:"latitude"`
	Longitude  string     `yaml:"longitude" json:"longitude"`
	CEP        string     `yaml:"cep" json:"cep,omitempty"`
}

// Name is the display name used in titles and sheet names.
func (s Station) Name() string { return fmt.Sprintf("Station %d", s.Number) }

// IMEI is the local part of the station's RockBLOCK address.
func (s Station) IMEI() string {
	local, _, _ := strings.Cut(s.Address, "@")
	return local
}

func (s Station) Validate() error {
	if s.Number <= 0 {
		return fmt.Errorf("station number must be > 0, got %d", s.Number)
	}
	if !s.Generation.Valid() {
		return fmt.Errorf("station %d: generation is required", s.Number)
	}
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("station %d: address is required", s.Number)
	}
	return nil
}

// Values maps each channel of a sample to its scaled value.
type Values map[Channel]float64

func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

func (v Values) Equal(o Values) bool {
	if len(v) != len(o) {
		return false
	}
	for k, x := range v {
		y, ok := o[k]
		if !ok || x != y {
			return false
		}
	}
	return true
}

// Sample is one reading at an absolute time. Slot is the 1-based position
// in the payload history, or 0 for a snapshot-only sample.
type Sample struct {
	Slot   int
	Time   time.Time
	Values Values
}

// Weight returns the sample's weight channel in pounds.
func (s Sample) Weight() float64 { return s.Values[ChannelWeight] }
