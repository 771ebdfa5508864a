package telemetry

import (
	"slices"
	"time"
)

// Reconstruct assigns absolute times to the history in buf, taking transmit
// as the time of the most recent slot. Samples are returned oldest first.
func Reconstruct(buf RawBuffer, transmit time.Time) []Sample {
	layout := buf.Generation.Layout()
	var out []Sample
	if layout.Circular() {
		out = reconstructCircular(buf, layout, transmit)
	} else {
		out = reconstructLinear(buf, layout, transmit)
	}
	slices.Reverse(out)
	return out
}

// reconstructLinear returns newest first.
func reconstructLinear(buf RawBuffer, layout Layout, transmit time.Time) []Sample {
	out := make([]Sample, 0, len(buf.Slots))
	for k, v := range buf.Slots {
		out = append(out, Sample{
			Slot:   layout.SlotCount - k,
			Time:   transmit.Add(-time.Duration(k) * layout.Step),
			Values: v.Clone(),
		})
	}
	return out
}

// reconstructCircular walks backward from the write index, wrapping from
// slot 1 to the last slot, and returns newest first.
func reconstructCircular(buf RawBuffer, layout Layout, transmit time.Time) []Sample {
	if buf.WriteIndex == 0 {
		return []Sample{{Slot: 0, Time: transmit, Values: buf.Snapshot.Clone()}}
	}

	out := make([]Sample, 0, layout.SlotCount)
	out = append(out, Sample{Slot: buf.WriteIndex, Time: transmit, Values: buf.Snapshot.Clone()})

	step := 1
	for slot := prevSlot(buf.WriteIndex, layout.SlotCount); slot != buf.WriteIndex; slot = prevSlot(slot, layout.SlotCount) {
		v := buf.Slots[slot-1]
		t := transmit.Add(-time.Duration(step) * layout.Step)
		step++
		if emptySlot(v) {
			continue
		}
		out = append(out, Sample{Slot: slot, Time: t, Values: v.Clone()})
	}
	return out
}

// prevSlot returns the 1-based slot written before i in a log of n slots.
func prevSlot(i, n int) int {
	return (i-2+n)%n + 1
}
