package model

import "sort"

// Hint thresholds. Codes at or above HighHint emit "high:<code>", at or
// below LowHint emit "low:<code>"; everything in between emits nothing.
const (
	HighHint = 0.75
	LowHint  = 0.25
)

// SelectHints derives the behavior hint tags for a vector. Pure and
// deterministic: same vector, same sorted tag list. All phrasing decisions
// belong to the consumer; this is the only behavioral surface the core
// exposes.
func SelectHints(v *BehavioralStateVector) []string {
	if v == nil {
		return nil
	}
	var hints []string
	for code, val := range v.Intensities {
		switch {
		case val >= HighHint:
			hints = append(hints, "high:"+code)
		case val <= LowHint:
			hints = append(hints, "low:"+code)
		}
	}
	sort.Strings(hints)
	return hints
}
