package analysis

import "math"

// Frame geometry shared by the spectral features.
const (
	FrameSize = 2048
	HopSize   = 512
)

// frames slices samples into overlapping windows. A clip shorter than one
// frame yields a single short frame.
func frames(samples []float64, size, hop int) [][]float64 {
	if len(samples) == 0 {
		return nil
	}
	if len(samples) <= size {
		return [][]float64{samples}
	}
	out := make([][]float64, 0, 1+(len(samples)-size)/hop)
	for start := 0; start+size <= len(samples); start += hop {
		out = append(out, samples[start:start+size])
	}
	return out
}

func rms(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(frame)))
}

func zeroCrossingRate(frame []float64) float64 {
	if len(frame) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0) != (frame[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
