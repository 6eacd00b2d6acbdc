package simchip

import "math"

// wave is one Gaussian component of a heartbeat, positioned by phase (0..1)
// within the beat.
type wave struct {
	amp   float64 // mV
	phase float64
	width float64
}

// P, Q, R, S, T
var beat = []wave{
	{amp: 0.15, phase: 0.20, width: 0.025},
	{amp: -0.10, phase: 0.37, width: 0.010},
	{amp: 1.20, phase: 0.40, width: 0.012},
	{amp: -0.25, phase: 0.43, width: 0.010},
	{amp: 0.30, phase: 0.70, width: 0.050},
}

// SyntheticECG returns a lead-I looking waveform at bpm beats per minute,
// sampled at sps samples per second.
func SyntheticECG(bpm, sps float64) Source {
	period := 60 / bpm
	return func(n int) float64 {
		t := float64(n) / sps
		phase := math.Mod(t, period) / period
		var mv float64
		for _, w := range beat {
			d := (phase - w.phase) / w.width
			mv += w.amp * math.Exp(-d*d)
		}
		return mv
	}
}

// Constant returns a flat line at mv.
func Constant(mv float64) Source {
	return func(int) float64 {
		return mv
	}
}
