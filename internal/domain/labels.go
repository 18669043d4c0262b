package domain

import (
	"cmp"
	"math"
	"slices"
)

// LabelThreshold maps every score at or above Min to Label.
type LabelThreshold struct {
	Min   float64 `json:"min"`
	Label string  `json:"label" validate:"required"`
}

// LabelThresholds is an ascending score→label table.
type LabelThresholds []LabelThreshold

// NewLabelThresholds builds a sorted table from a threshold map.
func NewLabelThresholds(m map[float64]string) LabelThresholds {
	if len(m) == 0 {
		return nil
	}
	out := make(LabelThresholds, 0, len(m))
	for lo, label := range m {
		out = append(out, LabelThreshold{Min: lo, Label: label})
	}
	slices.SortFunc(out, func(a, b LabelThreshold) int { return cmp.Compare(a.Min, b.Min) })
	return out
}

// Lookup returns the label of the highest threshold not above score.
// Lower bounds are inclusive. Scores below every threshold take the lowest
// label. The boolean is false only for an empty table or a NaN score.
func (t LabelThresholds) Lookup(score float64) (string, bool) {
	if len(t) == 0 || math.IsNaN(score) {
		return "", false
	}
	for i := len(t) - 1; i >= 0; i-- {
		if score >= t[i].Min {
			return t[i].Label, true
		}
	}
	return t[0].Label, true
}

// Map renders the table in its declaration form for scale metadata.
func (t LabelThresholds) Map() map[string]string {
	if len(t) == 0 {
		return nil
	}
	out := make(map[string]string, len(t))
	for _, th := range t {
		out[formatScore(th.Min)] = th.Label
	}
	return out
}
