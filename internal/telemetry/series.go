package telemetry

import (
	"cmp"
	"slices"
)

// Series is a station's history ordered by strictly increasing time.
type Series []Sample

// Merge returns the union of existing and incoming keyed by timestamp.
// Incoming samples replace existing ones at the same instant, and a later
// element of incoming replaces an earlier one. The result owns its Values
// maps, so neither input is modified or aliased.
func Merge(existing Series, incoming []Sample) Series {
	byTime := make(map[int64]Sample, len(existing)+len(incoming))
	for _, s := range existing {
		byTime[s.Time.UnixNano()] = s
	}
	for _, s := range incoming {
		byTime[s.Time.UnixNano()] = s
	}

	out := make(Series, 0, len(byTime))
	for _, s := range byTime {
		s.Values = s.Values.Clone()
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Sample) int {
		return cmp.Compare(a.Time.UnixNano(), b.Time.UnixNano())
	})
	return out
}

// Latest returns the most recent sample.
func (s Series) Latest() (Sample, bool) {
	if len(s) == 0 {
		return Sample{}, false
	}
	return s[len(s)-1], true
}

// Tail returns the last n samples, or all of them when n <= 0.
func (s Series) Tail(n int) Series {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Ordered reports whether timestamps are strictly increasing.
func (s Series) Ordered() bool {
	for i := 1; i < len(s); i++ {
		if !s[i].Time.After(s[i-1].Time) {
			return false
		}
	}
	return true
}
