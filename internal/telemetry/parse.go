package telemetry

import (
	"strconv"
	"strings"
	"time"
)

// RawTransmission is one inbound message body as delivered by the mail
// collaborator. Handle is the mailbox-specific reference used to delete it.
type RawTransmission struct {
	ID         string
	Handle     string
	Body       string
	ReceivedAt time.Time
}

// ParsedTransmission holds the fields extracted from a message body.
// Payload is empty when the transmitter reported no data.
type ParsedTransmission struct {
	TransmissionID string
	Payload        string
	Latitude       string
	Longitude      string
	CEP            string
	// TransmitTime is in Local; zero when absent.
	TransmitTime time.Time
	IMEI         string
	MOMSN        int
	ReceivedAt   time.Time
	// Alarm is the payload's alarm byte, filled in by Process.
	Alarm int
}

func (p ParsedTransmission) HasPayload() bool { return p.Payload != "" }

const (
	prefixData      = "Data:"
	prefixNoData    = "No Data"
	prefixLatitude  = "Iridium Latitude:"
	prefixLongitude = "Iridium Longitude:"
	prefixCEP       = "Iridium CEP:"
	prefixTransmit  = "Transmit Time:"
	prefixIMEI      = "IMEI:"
	prefixMOMSN     = "MOMSN:"

	transmitLayout = "2006-01-02T15:04:05Z"
)

// ParseTransmission extracts the payload, position and transmit time from a
// RockBLOCK message body. A body whose data line reads "No Data" parses
// without error and without a payload.
func ParseTransmission(raw RawTransmission, station Station) (ParsedTransmission, error) {
	p := ParsedTransmission{TransmissionID: raw.ID, ReceivedAt: raw.ReceivedAt}

	for _, line := range strings.Split(raw.Body, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		switch {
		case strings.HasPrefix(line, prefixNoData):
			p.Payload = ""
		case strings.HasPrefix(line, prefixData):
			p.Payload = payloadField(fieldValue(line, prefixData))
		case strings.HasPrefix(line, prefixLatitude):
			p.Latitude = firstField(fieldValue(line, prefixLatitude))
		case strings.HasPrefix(line, prefixLongitude):
			p.Longitude = firstField(fieldValue(line, prefixLongitude))
		case strings.HasPrefix(line, prefixCEP):
			p.CEP = firstField(fieldValue(line, prefixCEP))
		case strings.HasPrefix(line, prefixTransmit):
			if t, ok := parseTransmitTime(fieldValue(line, prefixTransmit)); ok {
				p.TransmitTime = t
			}
		case strings.HasPrefix(line, prefixIMEI):
			p.IMEI = firstField(fieldValue(line, prefixIMEI))
		case strings.HasPrefix(line, prefixMOMSN):
			if n, err := strconv.Atoi(firstField(fieldValue(line, prefixMOMSN))); err == nil {
				p.MOMSN = n
			}
		}
	}

	if !p.HasPayload() {
		return p, nil
	}

	var missing []string
	if p.TransmitTime.IsZero() {
		missing = append(missing, "transmit time")
	}
	if p.Latitude == "" {
		missing = append(missing, "latitude")
	}
	if p.Longitude == "" {
		missing = append(missing, "longitude")
	}
	if len(missing) > 0 {
		return ParsedTransmission{}, &ParseError{TransmissionID: raw.ID, Station: station.Number, Missing: missing}
	}
	return p, nil
}

func fieldValue(line, prefix string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, prefix))
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func payloadField(s string) string {
	v := firstField(s)
	if strings.EqualFold(s, prefixNoData) {
		return ""
	}
	return v
}

// parseTransmitTime reads "2019-06-04T18:23:45Z UTC" and returns it in Local.
func parseTransmitTime(s string) (time.Time, bool) {
	t, err := time.ParseInLocation(transmitLayout, firstField(s), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.In(Local), true
}
