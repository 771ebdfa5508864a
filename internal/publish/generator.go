package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MrCodingRobot/EmergencyStations/internal/telemetry"
)

const (
	TableFile    = "station_table.csv"
	MarkersFile  = "station_markers.csv"
	PlotsFile    = "station_plots.pdf"
	WorkbookFile = "station_history.xlsx"
)

// Generator writes every artifact into Dir.
type Generator struct {
	Dir string
	// PlotSamples bounds each station's plotted history; 0 plots everything.
	PlotSamples int
}

// Generate writes the table, markers, plots and workbook for reports and
// returns them in that order. Each file is replaced atomically.
func (g Generator) Generate(ctx context.Context, reports []Report) ([]Artifact, error) {
	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", g.Dir, err)
	}

	statuses := make([]telemetry.LatestStatus, len(reports))
	for i, r := range reports {
		statuses[i] = r.Status
	}

	steps := []struct {
		category Category
		name     string
		write    func(io.Writer) error
	}{
		{CategoryTable, TableFile, func(w io.Writer) error { return WriteTable(w, reports) }},
		{CategoryMarkers, MarkersFile, func(w io.Writer) error { return WriteMarkers(w, BuildMarkers(statuses)) }},
		{CategoryPlots, PlotsFile, func(w io.Writer) error { return WritePlots(w, reports, g.PlotSamples) }},
		{CategoryWorkbook, WorkbookFile, func(w io.Writer) error { return WriteWorkbook(w, reports) }},
	}

	out := make([]Artifact, 0, len(steps))
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		path := filepath.Join(g.Dir, step.name)
		if err := writeFile(path, step.write); err != nil {
			return out, fmt.Errorf("write %s: %w", step.name, err)
		}
		out = append(out, Artifact{Category: step.category, Path: path})
	}
	return out, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
