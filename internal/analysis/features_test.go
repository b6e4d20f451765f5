package analysis

import (
	"testing"

	"github.com/fedutinova/speechcoach/internal/audio"
	"github.com/fedutinova/speechcoach/internal/common"
	"github.com/fedutinova/speechcoach/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sr = testsupport.DefaultSampleRate

func TestExtractFeatures_EmptyClip(t *testing.T) {
	_, err := ExtractFeatures(audio.Clip{SampleRate: sr})
	require.Error(t, err)
	assert.True(t, common.IsInput(err))
}

func TestExtractFeatures_Tone(t *testing.T) {
	clip := audio.Clip{Samples: testsupport.Tone(440, sr, 2, 0.5), SampleRate: sr}

	f, err := ExtractFeatures(clip)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, f.DurationSeconds, 1e-9)
	assert.InDelta(t, 0.5/1.4142, f.RMSEnergy, 0.01)
	assert.InDelta(t, 1.0, f.EnergyNormalized, 1e-9)
	assert.InDelta(t, 440, f.SpectralCentroid, 60)
	assert.InDelta(t, 880.0/sr, f.ZeroCrossingRate, 0.005)
	assert.Zero(t, f.OnsetCount)
	assert.Zero(t, f.SpeechRateWPM)
	assert.Zero(t, f.SilenceRatio)
	assert.Equal(t, sr, f.SampleRate)
}

func TestExtractFeatures_QuietClipEnergyBelowOne(t *testing.T) {
	clip := audio.Clip{Samples: testsupport.Tone(220, sr, 1, 0.005), SampleRate: sr}

	f, err := ExtractFeatures(clip)
	require.NoError(t, err)
	assert.Greater(t, f.EnergyNormalized, 0.0)
	assert.Less(t, f.EnergyNormalized, 1.0)
}

func TestExtractFeatures_BurstsProduceOnsets(t *testing.T) {
	clip := audio.Clip{Samples: testsupport.Bursts(300, sr, 3, 4, 0.6), SampleRate: sr}

	f, err := ExtractFeatures(clip)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, f.OnsetCount, 8)
	assert.LessOrEqual(t, f.OnsetCount, 16)
	assert.InDelta(t, SpeechRate(f.DurationSeconds, f.OnsetCount), f.SpeechRateWPM, 1e-9)
	assert.Greater(t, f.SpeechRateWPM, 0.0)
}

func TestExtractFeatures_SilenceRatio(t *testing.T) {
	samples := testsupport.Concat(
		testsupport.Tone(300, sr, 1, 0.5),
		testsupport.Silence(sr, 1),
	)
	f, err := ExtractFeatures(audio.Clip{Samples: samples, SampleRate: sr})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, f.SilenceRatio, 0.1)

	f, err = ExtractFeatures(audio.Clip{Samples: testsupport.Silence(sr, 1), SampleRate: sr})
	require.NoError(t, err)
	assert.Equal(t, 1.0, f.SilenceRatio)
	assert.Zero(t, f.SpectralCentroid)
}

func TestExtractFeatures_ShorterThanOneFrame(t *testing.T) {
	clip := audio.Clip{Samples: testsupport.Tone(440, sr, 0.05, 0.5), SampleRate: sr}

	f, err := ExtractFeatures(clip)
	require.NoError(t, err)
	assert.Zero(t, f.SpeechRateWPM)
	assert.Greater(t, f.RMSEnergy, 0.0)
}

func TestSpeechRate(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		onsets   int
		want     float64
	}{
		{"too short", 0.05, 10, 0},
		{"no onsets", 10, 0, 0},
		{"three syllables per word", 60, 300, 100},
		{"clamped", 1, 100, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SpeechRate(tt.duration, tt.onsets), 1e-9)
		})
	}
}
