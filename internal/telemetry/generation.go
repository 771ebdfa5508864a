package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// Generation identifies a transmitter hardware generation. Each generation
// has a fixed payload layout described by its Layout.
type Generation int

const (
	Gen1 Generation = iota + 1
	Gen2
)

// Channel names one numeric value carried by a sample.
type Channel string

const (
	ChannelSensor1   Channel = "sensor_1"
	ChannelSensor2   Channel = "sensor_2"
	ChannelSensor3   Channel = "sensor_3"
	ChannelReference Channel = "reference"
	ChannelWeight    Channel = "weight_lbs"
	ChannelCurrent   Channel = "current_a"
	ChannelVoltage   Channel = "voltage_v"
)

// Layout holds the byte offsets and cadence of a generation's payload.
type Layout struct {
	// Size is the exact decoded payload length in bytes.
	Size int
	// HistoryOffset is the offset of the first history slot.
	HistoryOffset int
	SlotCount     int
	// Channels lists the slot fields in storage order; Scale holds the
	// divisor applied to each raw byte.
	Channels []Channel
	Scale    []float64
	// Step is the time between consecutive history slots.
	Step time.Duration
	// WriteIndexOffset and SnapshotOffset are zero when the generation has
	// no circular write index.
	WriteIndexOffset int
	SnapshotOffset   int
}

// SlotWidth is the number of bytes per history slot.
func (l Layout) SlotWidth() int { return len(l.Channels) }

// Circular reports whether the history is a wraparound log with a write index.
func (l Layout) Circular() bool { return l.WriteIndexOffset > 0 }

var (
	gen1Layout = Layout{
		Size:          42,
		HistoryOffset: 2,
		SlotCount:     8,
		Channels:      []Channel{ChannelSensor1, ChannelSensor2, ChannelSensor3, ChannelReference, ChannelWeight},
		Scale:         []float64{1, 1, 1, 1, 1},
		Step:          90 * time.Minute,
	}
	gen2Layout = Layout{
		Size:             48,
		HistoryOffset:    2,
		SlotCount:        14,
		Channels:         []Channel{ChannelWeight, ChannelCurrent, ChannelVoltage},
		Scale:            []float64{1, 100, 10},
		Step:             50 * time.Minute,
		WriteIndexOffset: 44,
		SnapshotOffset:   45,
	}
)

// Layout returns the payload layout for g. It panics on an unknown generation,
// which can only be constructed by converting an arbitrary int.
func (g Generation) Layout() Layout {
	switch g {
	case Gen1:
		return gen1Layout
	case Gen2:
		return gen2Layout
	default:
		panic(fmt.Sprintf("telemetry: unknown generation %d", int(g)))
	}
}

func (g Generation) Valid() bool { return g == Gen1 || g == Gen2 }

func (g Generation) String() string {
	switch g {
	case Gen1:
		return "gen1"
	case Gen2:
		return "gen2"
	default:
		return fmt.Sprintf("generation(%d)", int(g))
	}
}

// ParseGeneration accepts "gen1"/"gen2" as well as "1"/"2" and the
// "phase1"/"phase2" names used on older station sheets.
func ParseGeneration(s string) (Generation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gen1", "1", "phase1":
		return Gen1, nil
	case "gen2", "2", "phase2":
		return Gen2, nil
	default:
		return 0, fmt.Errorf("invalid generation %q (allowed: gen1, gen2)", s)
	}
}

func (g Generation) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("invalid generation %d", int(g))
	}
	return []byte(g.String()), nil
}

func (g *Generation) UnmarshalText(b []byte) error {
	v, err := ParseGeneration(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}
