package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrCodingRobot/EmergencyStations/internal/telemetry"
)

type stationsFile struct {
	Stations []telemetry.Station `yaml:"stations"`
}

// LoadStations reads the station registry from a YAML file.
func LoadStations(path string) ([]telemetry.Station, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stations file: %w", err)
	}
	stations, err := ParseStations(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return stations, nil
}

// ParseStations decodes and validates a registry. Stations are returned
// ordered by number; numbers and addresses must be unique.
func ParseStations(b []byte) ([]telemetry.Station, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var f stationsFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode stations: %w", err)
	}
	if len(f.Stations) == 0 {
		return nil, fmt.Errorf("no stations configured")
	}

	numbers := make(map[int]bool, len(f.Stations))
	addresses := make(map[string]bool, len(f.Stations))
	for i := range f.Stations {
		s := &f.Stations[i]
		s.Address = strings.ToLower(strings.TrimSpace(s.Address))
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if numbers[s.Number] {
			return nil, fmt.Errorf("duplicate station number %d", s.Number)
		}
		if addresses[s.Address] {
			return nil, fmt.Errorf("duplicate station address %q", s.Address)
		}
		numbers[s.Number] = true
		addresses[s.Address] = true
	}

	sort.Slice(f.Stations, func(i, j int) bool { return f.Stations[i].Number < f.Stations[j].Number })
	return f.Stations, nil
}
