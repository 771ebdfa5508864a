package telemetry

// Update is the result of processing one transmission for a station.
type Update struct {
	Station      Station
	Transmission ParsedTransmission
	Samples      []Sample

	TransmittedNumber int
	// Discrepancy mirrors RawBuffer.Discrepancy.
	Discrepancy bool
}

// NumberMismatch reports whether the payload carried a station number other
// than the provisioned one.
func (u Update) NumberMismatch() bool {
	return u.Transmission.HasPayload() && u.TransmittedNumber != u.Station.Number
}

// Process parses, decodes and reconstructs one transmission. A message
// without a payload yields an Update with no samples and a nil error.
func Process(raw RawTransmission, station Station) (Update, error) {
	parsed, err := ParseTransmission(raw, station)
	if err != nil {
		return Update{}, err
	}
	u := Update{Station: station, Transmission: parsed}
	if !parsed.HasPayload() {
		return u, nil
	}

	buf, err := Decode(parsed.Payload, station.Generation)
	if err != nil {
		return Update{}, err
	}
	u.Samples = Reconstruct(buf, parsed.TransmitTime)
	u.Transmission.Alarm = buf.Alarm
	u.TransmittedNumber = buf.StationNumber
	u.Discrepancy = buf.Discrepancy
	return u, nil
}
