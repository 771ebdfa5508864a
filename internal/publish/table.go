package publish

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/MrCodingRobot/EmergencyStations/internal/telemetry"
)

var tableHeader = []string{"Station #", "Upload Time", "Jugs", "Latitude", "Longitude"}

// WriteTable writes one row per station, in the order given. Stations that
// never reported a sample show "No Data" for time and jugs.
func WriteTable(w io.Writer, reports []Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tableHeader); err != nil {
		return err
	}
	for _, r := range reports {
		st := r.Status
		uploaded, jugs := noData, noData
		if st.HasSample {
			uploaded = st.Sample.Time.In(telemetry.Local).Format(UploadTimeLayout)
			jugs = strconv.Itoa(st.Jugs)
		}
		row := []string{strconv.Itoa(st.Station.Number), uploaded, jugs, st.Latitude, st.Longitude}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
