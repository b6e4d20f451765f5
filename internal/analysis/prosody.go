package analysis

import (
	"fmt"
	"math"

	"github.com/fedutinova/speechcoach/internal/audio"
	"github.com/fedutinova/speechcoach/internal/common"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	intensityRef        = 2e-5
	intensityWindowSecs = 0.032
	intensityHopSecs    = 0.01
)

// Prosody summarizes pitch and intensity over a clip.
type Prosody struct {
	PitchMeanHz     float64 `json:"pitch_mean_hz"`
	PitchMinHz      float64 `json:"pitch_min_hz"`
	PitchMaxHz      float64 `json:"pitch_max_hz"`
	PitchStdHz      float64 `json:"pitch_std_hz"`
	PitchRangeHz    float64 `json:"pitch_range_hz"`
	Contour         float64 `json:"contour"`
	IntensityMeanDB float64 `json:"intensity_mean_db"`
	IntensityStdDB  float64 `json:"intensity_std_db"`
	VoicedRatio     float64 `json:"voiced_ratio"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ProsodyAnalyzer derives prosody from an injected pitch tracker.
type ProsodyAnalyzer struct {
	tracker PitchTracker
}

func NewProsodyAnalyzer(tracker PitchTracker) *ProsodyAnalyzer {
	if tracker == nil {
		tracker = NewAutocorrelationTracker()
	}
	return &ProsodyAnalyzer{tracker: tracker}
}

func (a *ProsodyAnalyzer) Analyze(clip audio.Clip) (Prosody, error) {
	if clip.Empty() {
		return Prosody{}, common.InputErrorf("audio clip is empty")
	}

	track, err := a.tracker.Track(clip)
	if err != nil {
		return Prosody{}, fmt.Errorf("%w: pitch tracking: %w", common.ErrInput, err)
	}

	voiced := make([]float64, 0, len(track))
	for _, f := range track {
		if f.Voiced && f.Hz > 0 && !math.IsNaN(f.Hz) && !math.IsInf(f.Hz, 0) {
			voiced = append(voiced, f.Hz)
		}
	}

	p := Prosody{DurationSeconds: clip.Seconds()}
	if len(track) > 0 {
		p.VoicedRatio = float64(len(voiced)) / float64(len(track))
	}
	if len(voiced) > 0 {
		p.PitchMeanHz, p.PitchStdHz = stat.PopMeanStdDev(voiced, nil)
		p.PitchMinHz = floats.Min(voiced)
		p.PitchMaxHz = floats.Max(voiced)
		p.PitchRangeHz = p.PitchMaxHz - p.PitchMinHz
		p.Contour = Contour(voiced)
	}

	if levels := intensity(clip); len(levels) > 0 {
		p.IntensityMeanDB, p.IntensityStdDB = stat.PopMeanStdDev(levels, nil)
	}
	return p, nil
}

// Contour is the change between the first and last quartile means relative
// to the overall mean, clipped to [-1, 1]. Rising speech is positive.
func Contour(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := stat.Mean(values, nil)
	if mean == 0 {
		return 0
	}
	q := max(1, len(values)/4)
	first := stat.Mean(values[:q], nil)
	last := stat.Mean(values[len(values)-q:], nil)
	return clamp((last-first)/mean, -1, 1)
}

// ContourLabel names the direction of a contour value.
func ContourLabel(contour float64) string {
	switch {
	case contour > 0.2:
		return "Rising"
	case contour < -0.2:
		return "Falling"
	default:
		return "Level"
	}
}

// intensity returns per-frame levels in dB re 2e-5, positive frames only.
func intensity(clip audio.Clip) []float64 {
	size := max(1, int(intensityWindowSecs*float64(clip.SampleRate)))
	hop := max(1, int(intensityHopSecs*float64(clip.SampleRate)))

	var out []float64
	for _, f := range frames(clip.Samples, size, hop) {
		e := rms(f)
		if e <= 0 {
			continue
		}
		if db := 20 * math.Log10(e/intensityRef); db > 0 {
			out = append(out, db)
		}
	}
	return out
}
