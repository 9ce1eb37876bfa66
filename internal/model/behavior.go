package model

import (
	"fmt"
	"sort"
)

// DefaultCodes is the built-in behavioral code set (cardinality 27). The set
// is closed once a vector is created; a different set can be configured at
// setup time.
var DefaultCodes = []string{
	"joy", "trust", "curiosity", "gratitude", "hope", "love", "loyalty",
	"resilience", "empathy", "courage", "serenity", "wonder", "compassion",
	"patience", "humility", "playfulness", "determination", "tenderness",
	"vigilance", "melancholy", "longing", "pride", "awe", "calm", "warmth",
	"caution", "devotion",
}

// seedIntensities are the starting values for the codes that have them;
// every other code starts at 0.5.
var seedIntensities = map[string]float64{
	"joy":        0.7,
	"trust":      0.8,
	"curiosity":  0.85,
	"gratitude":  0.75,
	"hope":       0.8,
	"love":       0.7,
	"loyalty":    0.9,
	"resilience": 0.8,
}

// BehavioralStateVector is the protected-layer entity: a fixed-size mapping
// from behavioral code name to an intensity in [0, 1].
type BehavioralStateVector struct {
	Intensities map[string]float64 `json:"intensities"`
}

// DefaultVector returns a vector covering exactly the given codes, seeded
// with the default intensities.
func DefaultVector(codes []string) *BehavioralStateVector {
	v := &BehavioralStateVector{Intensities: make(map[string]float64, len(codes))}
	for _, code := range codes {
		val, ok := seedIntensities[code]
		if !ok {
			val = 0.5
		}
		v.Intensities[code] = val
	}
	return v
}

// Set updates one code's intensity. The code must already exist in the
// vector and the value must be within [0, 1].
func (v *BehavioralStateVector) Set(code string, intensity float64) error {
	if _, ok := v.Intensities[code]; !ok {
		return fmt.Errorf("unknown behavioral code %q", code)
	}
	if intensity < 0 || intensity > 1 {
		return fmt.Errorf("intensity %v for %q outside [0, 1]", intensity, code)
	}
	v.Intensities[code] = intensity
	return nil
}

// Validate checks that the vector covers exactly the configured code set and
// that every intensity is within [0, 1].
func (v *BehavioralStateVector) Validate(codes []string) error {
	if len(v.Intensities) != len(codes) {
		return fmt.Errorf("vector has %d codes, configured set has %d", len(v.Intensities), len(codes))
	}
	for _, code := range codes {
		val, ok := v.Intensities[code]
		if !ok {
			return fmt.Errorf("vector missing code %q", code)
		}
		if val < 0 || val > 1 {
			return fmt.Errorf("code %q intensity %v outside [0, 1]", code, val)
		}
	}
	return nil
}

// Codes returns the vector's code names, sorted.
func (v *BehavioralStateVector) Codes() []string {
	out := make([]string, 0, len(v.Intensities))
	for code := range v.Intensities {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
