package analysis

import (
	"math"

	"github.com/fedutinova/speechcoach/internal/audio"
)

// PitchFrame is one tracker estimate. Hz is 0 for unvoiced frames.
type PitchFrame struct {
	Hz     float64
	Voiced bool
}

// PitchTracker extracts a fundamental frequency track from a clip.
type PitchTracker interface {
	Track(clip audio.Clip) ([]PitchFrame, error)
}

// AutocorrelationTracker estimates pitch per frame from the normalized
// autocorrelation peak inside [MinHz, MaxHz].
type AutocorrelationTracker struct {
	MinHz            float64
	MaxHz            float64
	VoicingThreshold float64
	// HopSeconds is the distance between frame starts.
	HopSeconds float64
	// SilenceRMS marks frames too quiet to be voiced.
	SilenceRMS float64
}

// NewAutocorrelationTracker returns a tracker tuned for speech.
func NewAutocorrelationTracker() *AutocorrelationTracker {
	return &AutocorrelationTracker{
		MinHz:            75,
		MaxHz:            500,
		VoicingThreshold: 0.45,
		HopSeconds:       0.01,
		SilenceRMS:       1e-4,
	}
}

func (t *AutocorrelationTracker) Track(clip audio.Clip) ([]PitchFrame, error) {
	if clip.Empty() {
		return nil, nil
	}
	sr := float64(clip.SampleRate)
	minLag := max(1, int(math.Floor(sr/t.MaxHz)))
	maxLag := int(math.Ceil(sr / t.MinHz))
	size := 2 * maxLag
	hop := max(1, int(t.HopSeconds*sr))

	out := make([]PitchFrame, 0, len(clip.Samples)/hop+1)
	for _, f := range frames(clip.Samples, size, hop) {
		out = append(out, t.estimate(f, sr, minLag, maxLag))
	}
	return out, nil
}

func (t *AutocorrelationTracker) estimate(frame []float64, sr float64, minLag, maxLag int) PitchFrame {
	if rms(frame) < t.SilenceRMS {
		return PitchFrame{}
	}
	maxLag = min(maxLag, len(frame)/2)
	if maxLag <= minLag {
		return PitchFrame{}
	}

	corr := make([]float64, maxLag+1)
	best := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		corr[lag] = normalizedCorrelation(frame, lag)
		best = math.Max(best, corr[lag])
	}
	if best < t.VoicingThreshold {
		return PitchFrame{}
	}

	// Take the shortest lag that peaks near the best one so that multiples
	// of the period do not halve the estimate.
	for lag := minLag; lag <= maxLag; lag++ {
		c := corr[lag]
		if c < 0.9*best {
			continue
		}
		if lag < maxLag && corr[lag+1] > c {
			continue
		}
		return PitchFrame{Hz: sr / refineLag(corr, lag, minLag, maxLag), Voiced: true}
	}
	return PitchFrame{}
}

func normalizedCorrelation(frame []float64, lag int) float64 {
	var xy, xx, yy float64
	n := len(frame) - lag
	for i := 0; i < n; i++ {
		x, y := frame[i], frame[i+lag]
		xy += x * y
		xx += x * x
		yy += y * y
	}
	if xx == 0 || yy == 0 {
		return 0
	}
	return xy / math.Sqrt(xx*yy)
}

// refineLag interpolates a parabola through the peak and its neighbours.
func refineLag(corr []float64, lag, minLag, maxLag int) float64 {
	if lag <= minLag || lag >= maxLag {
		return float64(lag)
	}
	a, b, c := corr[lag-1], corr[lag], corr[lag+1]
	den := a - 2*b + c
	if den == 0 {
		return float64(lag)
	}
	shift := 0.5 * (a - c) / den
	if math.Abs(shift) > 1 {
		return float64(lag)
	}
	return float64(lag) + shift
}
