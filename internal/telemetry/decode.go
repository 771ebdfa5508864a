package telemetry

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// RawBuffer is a decoded payload with its fixed-offset fields extracted.
type RawBuffer struct {
	Generation Generation
	Bytes      []byte

	// StationNumber is the label the transmitter believes it has.
	StationNumber int
	Alarm         int

	// Slots holds the history. For Gen2, Slots[i-1] is slot i in storage
	// order. For Gen1, Slots[0] is the most recent reading.
	Slots []Values

	// WriteIndex is the 1-based most recently written Gen2 slot, 0 if unset.
	WriteIndex int
	Snapshot   Values
	// Discrepancy is set when the snapshot disagrees with the slot at
	// WriteIndex. The snapshot is authoritative.
	Discrepancy bool
}

// Decode converts a hex payload into a RawBuffer for the given generation.
// Callers handle the no-payload case before calling Decode.
func Decode(payload string, gen Generation) (RawBuffer, error) {
	payload = strings.TrimSpace(payload)
	if len(payload)%2 != 0 {
		return RawBuffer{}, &DecodeError{Kind: Malformed, Generation: gen,
			Detail: fmt.Sprintf("odd hex length %d", len(payload))}
	}
	b, err := hex.DecodeString(payload)
	if err != nil {
		return RawBuffer{}, &DecodeError{Kind: Malformed, Generation: gen, Detail: "invalid hex", Err: err}
	}

	layout := gen.Layout()
	if len(b) != layout.Size {
		return RawBuffer{}, &DecodeError{Kind: WrongLength, Generation: gen,
			Detail: fmt.Sprintf("got %d bytes, want %d", len(b), layout.Size)}
	}

	buf := RawBuffer{
		Generation:    gen,
		Bytes:         b,
		StationNumber: int(b[0]),
		Alarm:         int(b[1]),
		Slots:         make([]Values, layout.SlotCount),
	}
	for i := 0; i < layout.SlotCount; i++ {
		buf.Slots[i] = readValues(b, layout.HistoryOffset+i*layout.SlotWidth(), layout)
	}

	if !layout.Circular() {
		// Stored oldest to newest.
		for i, j := 0, len(buf.Slots)-1; i < j; i, j = i+1, j-1 {
			buf.Slots[i], buf.Slots[j] = buf.Slots[j], buf.Slots[i]
		}
		return buf, nil
	}

	buf.WriteIndex = int(b[layout.WriteIndexOffset])
	if buf.WriteIndex > layout.SlotCount {
		return RawBuffer{}, &DecodeError{Kind: Malformed, Generation: gen,
			Detail: fmt.Sprintf("write index %d out of range 0..%d", buf.WriteIndex, layout.SlotCount)}
	}
	buf.Snapshot = readValues(b, layout.SnapshotOffset, layout)
	if buf.WriteIndex > 0 && !buf.Slots[buf.WriteIndex-1].Equal(buf.Snapshot) {
		buf.Discrepancy = true
	}
	return buf, nil
}

func readValues(b []byte, off int, layout Layout) Values {
	v := make(Values, len(layout.Channels))
	for i, ch := range layout.Channels {
		v[ch] = float64(b[off+i]) / layout.Scale[i]
	}
	return v
}

// emptySlot reports whether every raw byte of the slot is zero, which is
// how the firmware leaves slots it has not written yet.
func emptySlot(v Values) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
