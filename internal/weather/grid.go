package weather

import (
	"fmt"
	"math"
	"time"
)

// AlignCoords rounds each coordinate to the nearest 1/factor degree, ties to
// even. A non-positive factor defaults to 4 (quarter degree).
func AlignCoords(factor int, coords ...float64) []float64 {
	if factor <= 0 {
		factor = 4
	}
	f := float64(factor)
	out := make([]float64, len(coords))
	for i, c := range coords {
		out[i] = math.RoundToEven(c*f) / f
	}
	return out
}

// QuarterDegreeRange returns the 0.25 degree grid points covering [from, to],
// widened outwards to the nearest grid lines.
func QuarterDegreeRange(from, to float64) []float64 {
	start := math.Floor(from*4) / 4
	stop := math.Ceil(to*4) / 4
	if stop < start {
		return nil
	}
	n := int(1 + 4*(stop-start))
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*0.25
	}
	return out
}

// RecentCycle returns the most recent 6-hourly analysis time that is at
// least six hours old at now, in UTC.
func RecentCycle(now time.Time) time.Time {
	t := now.UTC().Add(-6 * time.Hour).Truncate(time.Hour)
	return time.Date(t.Year(), t.Month(), t.Day(), (t.Hour()/6)*6, 0, 0, 0, time.UTC)
}

// SpecificToRelative converts specific humidity q (kg/kg) at pressure p (Pa)
// and temperature t (K) into relative humidity in percent, blending water
// and ice saturation between 250.16 K and 273.16 K.
func SpecificToRelative(q, p, t []float64) ([]float64, error) {
	if len(q) != len(p) || len(q) != len(t) {
		return nil, fmt.Errorf("length mismatch: q=%d p=%d t=%d", len(q), len(p), len(t))
	}
	const epsilon = 0.621981

	out := make([]float64, len(q))
	for i := range q {
		e := (p[i] * q[i] * (1.0 / epsilon)) / (1 + q[i]*(1.0/epsilon-1))

		esW := 611.21 * math.Exp(17.502*(t[i]-273.16)/(t[i]-32.19))
		esI := 611.21 * math.Exp(22.587*(t[i]-273.16)/(t[i]+0.7))

		alpha := math.Min(math.Max((t[i]-250.16)/(273.16-250.16), 0), 1.2)
		alpha *= alpha
		es := alpha*esW + (1-alpha)*esI
		out[i] = 100 * e / es
	}
	return out, nil
}
