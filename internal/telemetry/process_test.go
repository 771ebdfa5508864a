package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_Gen2(t *testing.T) {
	var slots [14][3]byte
	for i := range slots {
		slots[i] = [3]byte{byte(80 + i), 20, 125}
	}
	raw := RawTransmission{
		ID: "m1",
		Body: messageBody(
			"Transmit Time: 2023-06-01T12:00:00Z UTC",
			"Iridium Latitude: 29.1",
			"Iridium Longitude: -98.2",
			"Iridium CEP: 4.0",
			"Data: "+gen2Hex(3, 1, slots, 6, slots[5]),
		),
	}

	u, err := Process(raw, testStation)
	require.NoError(t, err)

	require.Len(t, u.Samples, 14)
	assert.Equal(t, 1, u.Transmission.Alarm)
	assert.Equal(t, 3, u.TransmittedNumber)
	assert.False(t, u.NumberMismatch())
	assert.False(t, u.Discrepancy)

	last := u.Samples[13]
	assert.Equal(t, 6, last.Slot)
	assert.Equal(t, 85.0, last.Weight())
	assert.True(t, last.Time.Equal(time.Date(2023, 6, 1, 6, 0, 0, 0, Local)))
}

func TestProcess_NoPayloadYieldsNoSamples(t *testing.T) {
	raw := RawTransmission{ID: "m2", Body: messageBody("Transmit Time: 2023-06-01T12:00:00Z UTC", "No Data")}
	u, err := Process(raw, testStation)
	require.NoError(t, err)
	assert.Empty(t, u.Samples)
	assert.False(t, u.Transmission.HasPayload())
	assert.False(t, u.NumberMismatch())
}

func TestProcess_DecodeErrorPropagates(t *testing.T) {
	raw := RawTransmission{ID: "m3", Body: messageBody(
		"Transmit Time: 2023-06-01T12:00:00Z UTC",
		"Iridium Latitude: 29.1",
		"Iridium Longitude: -98.2",
		"Data: 0001",
	)}
	_, err := Process(raw, testStation)
	assert.ErrorIs(t, err, ErrWrongLength)
}

func TestProcess_NumberMismatch(t *testing.T) {
	var slots [14][3]byte
	raw := RawTransmission{ID: "m4", Body: messageBody(
		"Transmit Time: 2023-06-01T12:00:00Z UTC",
		"Iridium Latitude: 29.1",
		"Iridium Longitude: -98.2",
		"Data: "+gen2Hex(8, 0, slots, 0, [3]byte{50, 0, 0}),
	)}
	u, err := Process(raw, testStation)
	require.NoError(t, err)
	assert.True(t, u.NumberMismatch())
	require.Len(t, u.Samples, 1)
}

// Slot times come from each transmission's own transmit time, so repeated
// slots only collapse when the two transmit times are a whole number of
// steps apart.
func TestProcess_RepeatedSlotsAcrossTransmissions(t *testing.T) {
	var slots [14][3]byte
	for i := range slots {
		slots[i] = [3]byte{byte(80 + i), 20, 125}
	}
	transmission := func(id, at string, writeIndex byte) Update {
		t.Helper()
		u, err := Process(RawTransmission{ID: id, Body: messageBody(
			"Transmit Time: "+at+" UTC",
			"Iridium Latitude: 29.1",
			"Iridium Longitude: -98.2",
			"Data: "+gen2Hex(3, 0, slots, writeIndex, slots[writeIndex-1]),
		)}, testStation)
		require.NoError(t, err)
		require.Len(t, u.Samples, 14)
		return u
	}

	first := transmission("a", "2023-06-01T12:00:00Z", 6)

	aligned := transmission("b", "2023-06-01T12:50:00Z", 7)
	merged := Merge(first.Samples, aligned.Samples)
	assert.Len(t, merged, 15, "one new slot on the 50 minute grid")

	late := transmission("c", "2023-06-01T12:50:30Z", 7)
	merged = Merge(first.Samples, late.Samples)
	assert.Len(t, merged, 28, "every repeated slot is stored again 30s off")
	assert.True(t, merged.Ordered())
}
