// Package publish renders the public artifacts: the status table and map
// markers as CSV, per-station plots as PDF and the full history as XLSX.
package publish

import (
	"github.com/MrCodingRobot/EmergencyStations/internal/telemetry"
)

// Category selects the remote directory an artifact is uploaded to.
type Category string

const (
	CategoryTable    Category = "table"
	CategoryMarkers  Category = "markers"
	CategoryPlots    Category = "plots"
	CategoryWorkbook Category = "workbook"
)

// Artifact is a generated file on local disk.
type Artifact struct {
	Category Category
	Path     string
}

// Report is everything published for one station.
type Report struct {
	Status  telemetry.LatestStatus
	History telemetry.Series
}

// UploadTimeLayout renders sample times in the status table.
const UploadTimeLayout = "2006-01-02 15:04:05 MST"

const noData = "No Data"

// channelsFor returns the channels plotted and exported for a generation.
func channelsFor(g telemetry.Generation) []telemetry.Channel {
	return g.Layout().Channels
}
