package telemetry

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Gen2Fields(t *testing.T) {
	var slots [14][3]byte
	slots[2] = [3]byte{100, 150, 125}
	payload := gen2Hex(5, 2, slots, 3, [3]byte{100, 150, 125})

	buf, err := Decode(payload, Gen2)
	require.NoError(t, err)

	assert.Equal(t, Gen2, buf.Generation)
	assert.Equal(t, 5, buf.StationNumber)
	assert.Equal(t, 2, buf.Alarm)
	assert.Equal(t, 3, buf.WriteIndex)
	require.Len(t, buf.Slots, 14)
	assert.Equal(t, Values{ChannelWeight: 100, ChannelCurrent: 1.5, ChannelVoltage: 12.5}, buf.Slots[2])
	assert.Equal(t, Values{ChannelWeight: 100, ChannelCurrent: 1.5, ChannelVoltage: 12.5}, buf.Snapshot)
	assert.False(t, buf.Discrepancy)
}

func TestDecode_Gen2SnapshotDiscrepancy(t *testing.T) {
	var slots [14][3]byte
	slots[6] = [3]byte{90, 10, 120}
	buf, err := Decode(gen2Hex(1, 0, slots, 7, [3]byte{95, 10, 120}), Gen2)
	require.NoError(t, err)

	assert.True(t, buf.Discrepancy)
	assert.Equal(t, 95.0, buf.Snapshot[ChannelWeight])
	assert.Equal(t, 90.0, buf.Slots[6][ChannelWeight])
}

func TestDecode_Gen2UnsetIndexHasNoDiscrepancy(t *testing.T) {
	var slots [14][3]byte
	buf, err := Decode(gen2Hex(1, 0, slots, 0, [3]byte{40, 0, 0}), Gen2)
	require.NoError(t, err)
	assert.Equal(t, 0, buf.WriteIndex)
	assert.False(t, buf.Discrepancy)
}

func TestDecode_Gen1ReversesStorageOrder(t *testing.T) {
	var quints [8][5]byte
	for i := range quints {
		quints[i] = [5]byte{byte(i + 1), byte(i + 11), byte(i + 21), 200, byte(80 + i)}
	}
	buf, err := Decode(gen1Hex(9, quints), Gen1)
	require.NoError(t, err)

	assert.Equal(t, 9, buf.StationNumber)
	assert.Equal(t, 0, buf.WriteIndex)
	require.Len(t, buf.Slots, 8)
	assert.Equal(t, Values{
		ChannelSensor1:   8,
		ChannelSensor2:   18,
		ChannelSensor3:   28,
		ChannelReference: 200,
		ChannelWeight:    87,
	}, buf.Slots[0])
	assert.Equal(t, 1.0, buf.Slots[7][ChannelSensor1])
}

func TestDecode_Errors(t *testing.T) {
	var slots [14][3]byte
	valid := gen2Hex(1, 0, slots, 1, [3]byte{})

	tests := []struct {
		name     string
		payload  string
		gen      Generation
		wantKind DecodeErrorKind
		wantIs   error
	}{
		{name: "odd length", payload: valid[:len(valid)-1], gen: Gen2, wantKind: Malformed, wantIs: ErrMalformed},
		{name: "not hex", payload: "zz" + valid[2:], gen: Gen2, wantKind: Malformed, wantIs: ErrMalformed},
		{name: "gen1 size for gen2", payload: strings.Repeat("00", 42), gen: Gen2, wantKind: WrongLength, wantIs: ErrWrongLength},
		{name: "gen2 size for gen1", payload: valid, gen: Gen1, wantKind: WrongLength, wantIs: ErrWrongLength},
		{name: "empty", payload: "", gen: Gen1, wantKind: WrongLength, wantIs: ErrWrongLength},
		{name: "write index out of range", payload: gen2Hex(1, 0, slots, 15, [3]byte{}), gen: Gen2, wantKind: Malformed, wantIs: ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.payload, tt.gen)
			require.Error(t, err)

			var de *DecodeError
			require.True(t, errors.As(err, &de), "error %v is not a *DecodeError", err)
			assert.Equal(t, tt.wantKind, de.Kind)
			assert.ErrorIs(t, err, tt.wantIs)
		})
	}
}

func TestDecode_LowercaseAndWhitespace(t *testing.T) {
	var slots [14][3]byte
	payload := "  " + strings.ToLower(gen2Hex(2, 0, slots, 0, [3]byte{})) + "\r"
	_, err := Decode(payload, Gen2)
	assert.NoError(t, err)
}
