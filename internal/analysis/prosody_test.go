package analysis

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/fedutinova/speechcoach/internal/audio"
	"github.com/fedutinova/speechcoach/internal/common"
	"github.com/fedutinova/speechcoach/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedTracker struct {
	frames []PitchFrame
	err    error
}

func (f fixedTracker) Track(audio.Clip) ([]PitchFrame, error) {
	return f.frames, f.err
}

func TestAutocorrelationTracker_Tone(t *testing.T) {
	clip := audio.Clip{Samples: testsupport.Tone(200, sr, 1, 0.5), SampleRate: sr}

	track, err := NewAutocorrelationTracker().Track(clip)
	require.NoError(t, err)
	require.NotEmpty(t, track)

	for i, f := range track {
		require.True(t, f.Voiced, "frame %d unvoiced", i)
		require.InDelta(t, 200, f.Hz, 5, "frame %d", i)
	}
}

func TestAutocorrelationTracker_SilenceIsUnvoiced(t *testing.T) {
	clip := audio.Clip{Samples: testsupport.Silence(sr, 0.5), SampleRate: sr}

	track, err := NewAutocorrelationTracker().Track(clip)
	require.NoError(t, err)
	for _, f := range track {
		assert.False(t, f.Voiced)
	}
}

func TestProsodyAnalyzer_RisingGlide(t *testing.T) {
	clip := audio.Clip{Samples: testsupport.Glide(150, 250, sr, 2, 0.5), SampleRate: sr}

	p, err := NewProsodyAnalyzer(nil).Analyze(clip)
	require.NoError(t, err)

	assert.Greater(t, p.Contour, 0.2)
	assert.Equal(t, "Rising", ContourLabel(p.Contour))
	assert.InDelta(t, 200, p.PitchMeanHz, 15)
	assert.Greater(t, p.PitchRangeHz, 60.0)
	assert.Greater(t, p.VoicedRatio, 0.9)
	assert.Greater(t, p.IntensityMeanDB, 0.0)
	assert.InDelta(t, 2.0, p.DurationSeconds, 1e-9)
}

func TestProsodyAnalyzer_NoVoicedFrames(t *testing.T) {
	clip := audio.Clip{Samples: testsupport.Silence(sr, 1), SampleRate: sr}

	p, err := NewProsodyAnalyzer(nil).Analyze(clip)
	require.NoError(t, err)

	for name, v := range map[string]float64{
		"mean": p.PitchMeanHz, "min": p.PitchMinHz, "max": p.PitchMaxHz,
		"std": p.PitchStdHz, "range": p.PitchRangeHz, "contour": p.Contour,
	} {
		assert.False(t, math.IsNaN(v), name)
		assert.Zero(t, v, name)
	}
	assert.Zero(t, p.VoicedRatio)
}

func TestProsodyAnalyzer_Errors(t *testing.T) {
	_, err := NewProsodyAnalyzer(nil).Analyze(audio.Clip{})
	assert.True(t, common.IsInput(err))

	a := NewProsodyAnalyzer(fixedTracker{err: errors.New("boom")})
	_, err = a.Analyze(audio.Clip{Samples: []float64{0.1, 0.2}, SampleRate: sr})
	assert.True(t, common.IsInput(err))
}

func TestProsodyAnalyzer_InjectedTracker(t *testing.T) {
	a := NewProsodyAnalyzer(fixedTracker{frames: []PitchFrame{
		{Hz: 100, Voiced: true},
		{},
		{Hz: 300, Voiced: true},
	}})

	p, err := a.Analyze(audio.Clip{Samples: []float64{0.1, 0.2}, SampleRate: sr})
	require.NoError(t, err)
	assert.InDelta(t, 200, p.PitchMeanHz, 1e-9)
	assert.InDelta(t, 200, p.PitchRangeHz, 1e-9)
	assert.InDelta(t, 2.0/3.0, p.VoicedRatio, 1e-9)
	assert.InDelta(t, 1.0, p.Contour, 1e-9)
}

func TestProsodyAnalyzer_InfiniteFramesIgnored(t *testing.T) {
	a := NewProsodyAnalyzer(fixedTracker{frames: []PitchFrame{
		{Hz: 100, Voiced: true},
		{Hz: math.Inf(1), Voiced: true},
		{Hz: math.Inf(-1), Voiced: true},
		{Hz: 300, Voiced: true},
	}})

	p, err := a.Analyze(audio.Clip{Samples: []float64{0.1, 0.2}, SampleRate: sr})
	require.NoError(t, err)
	assert.InDelta(t, 200, p.PitchMeanHz, 1e-9)
	assert.InDelta(t, 300, p.PitchMaxHz, 1e-9)
	assert.InDelta(t, 0.5, p.VoicedRatio, 1e-9)

	for name, v := range map[string]float64{
		"mean": p.PitchMeanHz, "min": p.PitchMinHz, "max": p.PitchMaxHz,
		"std": p.PitchStdHz, "range": p.PitchRangeHz, "contour": p.Contour,
	} {
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v), name)
	}

	_, err = json.Marshal(p)
	require.NoError(t, err)
}

func TestContour(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{120}, 0},
		{"two samples", []float64{100, 150}, 0.4},
		{"three samples", []float64{100, 100, 130}, 0.3 / 1.1},
		{"flat", []float64{200, 200, 200, 200}, 0},
		{"falling", []float64{300, 280, 260, 240, 220, 200, 180, 160}, -120.0 / 230.0},
		{"clipped", []float64{10, 10, 10, 500}, 1},
		{"zero mean", []float64{-1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Contour(tt.values)
			assert.False(t, math.IsNaN(got))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
