package telemetry

import (
	"encoding/hex"
	"strings"
)

// gen2Bytes builds a Gen2 payload. slots[i] is slot i+1.
func gen2Bytes(station, alarm byte, slots [14][3]byte, writeIndex byte, snapshot [3]byte) []byte {
	b := make([]byte, 48)
	b[0] = station
	b[1] = alarm
	for i, s := range slots {
		copy(b[2+i*3:], s[:])
	}
	b[44] = writeIndex
	copy(b[45:], snapshot[:])
	return b
}

func gen2Hex(station, alarm byte, slots [14][3]byte, writeIndex byte, snapshot [3]byte) string {
	return strings.ToUpper(hex.EncodeToString(gen2Bytes(station, alarm, slots, writeIndex, snapshot)))
}

// gen1Hex builds a Gen1 payload. quints are in storage order, oldest first.
func gen1Hex(station byte, quints [8][5]byte) string {
	b := make([]byte, 42)
	b[0] = station
	for i, q := range quints {
		copy(b[2+i*5:], q[:])
	}
	return hex.EncodeToString(b)
}

func messageBody(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}
