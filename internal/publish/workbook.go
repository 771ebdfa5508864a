package publish

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/MrCodingRobot/EmergencyStations/internal/telemetry"
)

const defaultSheet = "Sheet1"

func sheetName(s telemetry.Station) string {
	return fmt.Sprintf("%s (%s)", s.Name(), s.IMEI())
}

// WriteWorkbook writes one sheet per station holding its full history,
// oldest first.
func WriteWorkbook(w io.Writer, reports []Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, r := range reports {
		name := sheetName(r.Status.Station)
		idx, err := f.NewSheet(name)
		if err != nil {
			return fmt.Errorf("sheet %q: %w", name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}

		channels := channelsFor(r.Status.Station.Generation)
		header := []any{"Time", "Slot"}
		for _, ch := range channels {
			header = append(header, string(ch))
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return err
		}

		for j, s := range r.History {
			row := []any{s.Time.In(telemetry.Local).Format(UploadTimeLayout), s.Slot}
			for _, ch := range channels {
				if v, ok := s.Values[ch]; ok {
					row = append(row, v)
				} else {
					row = append(row, nil)
				}
			}
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return err
			}
		}
	}

	if len(reports) > 0 {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return err
		}
	}
	return f.Write(w)
}
