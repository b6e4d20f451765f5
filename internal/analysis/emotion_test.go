package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumScores(e Emotion) float64 {
	var s float64
	for _, v := range e.Scores {
		s += v
	}
	return s
}

func TestClassifyEmotion_MissingInputsUseDefaults(t *testing.T) {
	e := ClassifyEmotion(nil, nil, DefaultEmotionScales())

	require.Len(t, e.Scores, len(EmotionLabels))
	assert.InDelta(t, 1.0, sumScores(e), 1e-9)
	// defaults: energy 0.5, rate 0.5, range 0.5 -> only the neutral baseline
	assert.Equal(t, EmotionNeutral, e.Primary)
	assert.InDelta(t, 1.0, e.Scores[EmotionNeutral], 1e-9)
}

func TestClassifyEmotion_Engaged(t *testing.T) {
	f := &Features{EnergyNormalized: 0.9, SpeechRateWPM: 255}
	p := &Prosody{PitchRangeHz: 150, Contour: 0.4}

	e := ClassifyEmotion(f, p, DefaultEmotionScales())

	assert.InDelta(t, 1.0, sumScores(e), 1e-9)
	assert.Equal(t, EmotionEngaged, e.Primary)
	// engaged 1.0, happy 0.7, confident 0.7, neutral 0.5
	assert.InDelta(t, 1.0/2.9, e.Scores[EmotionEngaged], 1e-9)
	assert.InDelta(t, 0.7/2.9, e.Scores[EmotionConfident], 1e-9)
	assert.Zero(t, e.Scores[EmotionFrustrated])
}

func TestClassifyEmotion_Bored(t *testing.T) {
	f := &Features{EnergyNormalized: 0.2, SpeechRateWPM: 60}
	p := &Prosody{PitchRangeHz: 20}

	e := ClassifyEmotion(f, p, DefaultEmotionScales())

	// bored 0.8, sad 0.5, neutral 0.7, anxious 0.3
	assert.Equal(t, EmotionBored, e.Primary)
	assert.InDelta(t, 0.8/2.3, e.Scores[EmotionBored], 1e-9)
	assert.InDelta(t, 0.3/2.3, e.Scores[EmotionAnxious], 1e-9)
}

func TestClassifyEmotion_FastLoudNarrowPitch(t *testing.T) {
	f := &Features{EnergyNormalized: 0.9, SpeechRateWPM: 290}
	p := &Prosody{PitchRangeHz: 90}

	e := ClassifyEmotion(f, p, DefaultEmotionScales())

	// frustrated 0.6, anxious 0.5, neutral 0.5
	assert.Equal(t, EmotionFrustrated, e.Primary)
	assert.InDelta(t, e.Scores[EmotionAnxious], e.Scores[EmotionNeutral], 1e-12)
}

func TestClassifyEmotion_ScalesApply(t *testing.T) {
	f := &Features{EnergyNormalized: 0.9, SpeechRateWPM: 150}
	p := &Prosody{PitchRangeHz: 60}

	narrow := ClassifyEmotion(f, p, EmotionScales{RateCeilingWPM: 300, PitchRangeRefHz: 100})
	wide := ClassifyEmotion(f, p, EmotionScales{RateCeilingWPM: 300, PitchRangeRefHz: 400})

	assert.Equal(t, EmotionConfident, narrow.Primary)
	assert.NotEqual(t, narrow.Scores[EmotionConfident], wide.Scores[EmotionConfident])
}

func TestClassifyEmotion_AlwaysNormalized(t *testing.T) {
	for _, energy := range []float64{0, 0.25, 0.5, 0.75, 1} {
		for _, rate := range []float64{0, 100, 200, 300} {
			for _, pr := range []float64{0, 30, 100, 400} {
				for _, contour := range []float64{-1, 0, 0.5} {
					e := ClassifyEmotion(
						&Features{EnergyNormalized: energy, SpeechRateWPM: rate},
						&Prosody{PitchRangeHz: pr, Contour: contour},
						DefaultEmotionScales(),
					)
					s := sumScores(e)
					if math.Abs(s-1) > 1e-9 {
						t.Fatalf("scores sum to %v for energy=%v rate=%v range=%v", s, energy, rate, pr)
					}
					if _, ok := e.Scores[e.Primary]; !ok {
						t.Fatalf("primary %q missing from scores", e.Primary)
					}
				}
			}
		}
	}
}

func TestNeutralEmotion(t *testing.T) {
	e := NeutralEmotion()
	assert.Equal(t, EmotionNeutral, e.Primary)
	assert.InDelta(t, 1.0, sumScores(e), 1e-12)
}
