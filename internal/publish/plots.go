package publish

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgpdf"

	"github.com/MrCodingRobot/EmergencyStations/internal/telemetry"
)

const (
	pageWidth  = 11 * vg.Inch
	pageHeight = 8.5 * vg.Inch
)

// WritePlots writes a landscape PDF with one page per station plotting
// every channel of its last maxSamples samples.
func WritePlots(w io.Writer, reports []Report, maxSamples int) error {
	c := vgpdf.New(pageWidth, pageHeight)
	for i, r := range reports {
		if i > 0 {
			c.NextPage()
		}
		p, err := stationPlot(r, maxSamples)
		if err != nil {
			return fmt.Errorf("plot %s: %w", r.Status.Station.Name(), err)
		}
		p.Draw(draw.New(c))
	}
	_, err := c.WriteTo(w)
	return err
}

func stationPlot(r Report, maxSamples int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = r.Status.Station.Name()
	p.X.Label.Text = "Time (" + telemetry.Local.String() + ")"
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02\n15:04", Time: plot.UnixTimeIn(telemetry.Local)}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	history := r.History.Tail(maxSamples)
	if len(history) == 0 {
		p.Title.Text += " (" + noData + ")"
		return p, nil
	}

	for i, ch := range channelsFor(r.Status.Station.Generation) {
		pts := make(plotter.XYs, 0, len(history))
		for _, s := range history {
			v, ok := s.Values[ch]
			if !ok {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(s.Time.Unix()), Y: v})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(string(ch), line)
	}
	return p, nil
}
