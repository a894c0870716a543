package chunkpool

import (
	"math"
	"time"
)

// Curve is the logistic throttle applied to new buffer allocation. The delay is close to zero well below capacity,
// ramps steeply around MidpointPct of capacity, and approaches (never exceeds) MaxMs far over capacity.
//
type Curve struct {
	MaxMs       float64
	Steepness   float64
	MidpointPct float64
}

func DefaultCurve() Curve {
	return Curve{
		MaxMs:       100_000,
		Steepness:   0.5,
		MidpointPct: 90,
	}
}

func (self Curve) Delay(current, capacity int) time.Duration {
	return time.Duration(self.DelayMs(current, capacity)) * time.Millisecond
}

func (self Curve) DelayMs(current, capacity int) int64 {
	if capacity < 1 {
		capacity = 1
	}
	x := float64(current) / float64(capacity) * 100
	ms := math.Round(self.logistic(x - self.MidpointPct))
	if ms > self.MaxMs {
		ms = self.MaxMs
	}
	return int64(ms)
}

func (self Curve) logistic(x float64) float64 {
	return self.MaxMs / (1 + math.Exp(-1*self.Steepness*x))
}
