// Package effect derives odds-ratio statistics from 2x2 contingency counts.
//
// Cell layout:
//
//	             outcome+  outcome-
//	exposed+        a         b
//	exposed-        c         d
package effect

import "math"

// Z is the two-sided 95% normal quantile used for confidence intervals.
const Z = 1.96

// Correction is added to every cell when any cell is zero.
const Correction = 0.5

// Statistics holds the derived effect measures. A nil *Statistics means the
// computation was skipped; there is no partially populated value.
type Statistics struct {
	OddsRatio     float64 `json:"odds_ratio" yaml:"odds_ratio"`
	LogOddsRatio  float64 `json:"log_odds_ratio" yaml:"log_odds_ratio"`
	StandardError float64 `json:"standard_error" yaml:"standard_error"`
	CILow         float64 `json:"ci_low" yaml:"ci_low"`
	CIHigh        float64 `json:"ci_high" yaml:"ci_high"`
	Corrected     bool    `json:"continuity_corrected" yaml:"continuity_corrected"`
}

// Skip reasons reported by SkipReason.
const (
	ReasonIncomplete = "incomplete 2x2 counts"
	ReasonNegative   = "negative count"
	ReasonDegenerate = "degenerate statistics"
)

// Compute returns the odds ratio, its log, the standard error of the log
// and the 95% confidence interval for the table (a, b, c, d). It returns nil
// when any count is missing or negative, or when the result is not finite.
func Compute(a, b, c, d *int) *Statistics {
	if a == nil || b == nil || c == nil || d == nil {
		return nil
	}
	return FromCounts(*a, *b, *c, *d)
}

// FromCounts is Compute for counts that are known to be present.
func FromCounts(a, b, c, d int) *Statistics {
	if a < 0 || b < 0 || c < 0 || d < 0 {
		return nil
	}

	cells := [4]float64{float64(a), float64(b), float64(c), float64(d)}
	corrected := a == 0 || b == 0 || c == 0 || d == 0
	if corrected {
		for i := range cells {
			cells[i] += Correction
		}
	}
	for _, v := range cells {
		if v <= 0 {
			return nil
		}
	}
	fa, fb, fc, fd := cells[0], cells[1], cells[2], cells[3]

	or := (fa * fd) / (fb * fc)
	lnOR := math.Log(or)
	se := math.Sqrt(1/fa + 1/fb + 1/fc + 1/fd)
	low := math.Exp(lnOR - Z*se)
	high := math.Exp(lnOR + Z*se)

	for _, v := range []float64{or, lnOR, se, low, high} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
	}

	return &Statistics{
		OddsRatio:     or,
		LogOddsRatio:  lnOR,
		StandardError: se,
		CILow:         low,
		CIHigh:        high,
		Corrected:     corrected,
	}
}

// SkipReason explains why Compute returns nil for the given counts, or
// returns "" when statistics are available.
func SkipReason(a, b, c, d *int) string {
	if a == nil || b == nil || c == nil || d == nil {
		return ReasonIncomplete
	}
	if *a < 0 || *b < 0 || *c < 0 || *d < 0 {
		return ReasonNegative
	}
	if FromCounts(*a, *b, *c, *d) == nil {
		return ReasonDegenerate
	}
	return ""
}
