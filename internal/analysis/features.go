package analysis

import (
	"math"
	"math/cmplx"

	"github.com/fedutinova/speechcoach/internal/audio"
	"github.com/fedutinova/speechcoach/internal/common"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	energyEpsilon      = 0.01
	silenceThresholdDB = -40.0
	syllablesPerWord   = 3.0
	maxSpeechRateWPM   = 300.0
	minRateDuration    = 0.1
)

// Features are clip-level acoustic measurements.
type Features struct {
	DurationSeconds  float64 `json:"duration_seconds"`
	RMSEnergy        float64 `json:"rms_energy"`
	EnergyNormalized float64 `json:"rms_energy_normalized"`
	SpectralCentroid float64 `json:"spectral_centroid_hz"`
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`
	OnsetCount       int     `json:"num_onsets"`
	SpeechRateWPM    float64 `json:"speech_rate_wpm"`
	SilenceRatio     float64 `json:"silence_ratio"`
	SampleRate       int     `json:"sample_rate"`
}

// ExtractFeatures computes energy, brightness, onset based speech rate and
// silence ratio for clip.
func ExtractFeatures(clip audio.Clip) (Features, error) {
	if clip.Empty() {
		return Features{}, common.InputErrorf("audio clip is empty")
	}

	fs := frames(clip.Samples, FrameSize, HopSize)
	energies := make([]float64, len(fs))
	zcrs := make([]float64, len(fs))
	for i, f := range fs {
		energies[i] = rms(f)
		zcrs[i] = zeroCrossingRate(f)
	}

	meanEnergy := stat.Mean(energies, nil)
	duration := clip.Seconds()
	onsets := countOnsets(energies)

	return Features{
		DurationSeconds:  duration,
		RMSEnergy:        meanEnergy,
		EnergyNormalized: meanEnergy / math.Max(meanEnergy, energyEpsilon),
		SpectralCentroid: spectralCentroid(fs, clip.SampleRate),
		ZeroCrossingRate: stat.Mean(zcrs, nil),
		OnsetCount:       onsets,
		SpeechRateWPM:    SpeechRate(duration, onsets),
		SilenceRatio:     silenceRatio(energies),
		SampleRate:       clip.SampleRate,
	}, nil
}

// SpeechRate estimates words per minute from syllabic onsets, assuming three
// syllables per word. The result is clamped to [0, 300].
func SpeechRate(durationSeconds float64, onsets int) float64 {
	if durationSeconds < minRateDuration {
		return 0
	}
	words := float64(onsets) / syllablesPerWord
	return clamp(words/durationSeconds*60, 0, maxSpeechRateWPM)
}

// countOnsets counts peaks of the positive frame energy difference.
func countOnsets(energies []float64) int {
	if len(energies) < 2 {
		return 0
	}

	delta := make([]float64, len(energies))
	for i := 1; i < len(energies); i++ {
		delta[i] = math.Max(0, energies[i]-energies[i-1])
	}

	mean, std := stat.PopMeanStdDev(delta, nil)
	threshold := math.Max(mean+0.5*std, 0.05*floats.Max(energies))
	if threshold <= 0 {
		return 0
	}

	count := 0
	for i := 1; i < len(delta); i++ {
		if delta[i] < threshold || delta[i] < delta[i-1] {
			continue
		}
		if i+1 < len(delta) && delta[i] <= delta[i+1] {
			continue
		}
		count++
	}
	return count
}

// silenceRatio is the share of frames more than 40 dB below the loudest one.
func silenceRatio(energies []float64) float64 {
	if len(energies) == 0 {
		return 0
	}
	peak := floats.Max(energies)
	if peak <= 0 {
		return 1
	}

	silent := 0
	for _, e := range energies {
		if e <= 0 || 20*math.Log10(e/peak) < silenceThresholdDB {
			silent++
		}
	}
	return float64(silent) / float64(len(energies))
}

// spectralCentroid is the mean magnitude weighted frequency over frames
// that carry any energy.
func spectralCentroid(fs [][]float64, sampleRate int) float64 {
	fft := fourier.NewFFT(FrameSize)
	window := hann(FrameSize)
	buf := make([]float64, FrameSize)
	var coeffs []complex128

	var sum float64
	n := 0
	for _, f := range fs {
		w := window
		if len(f) != FrameSize {
			w = hann(len(f))
		}
		clear(buf)
		for i, s := range f {
			buf[i] = s * w[i]
		}
		coeffs = fft.Coefficients(coeffs, buf)

		var weighted, total float64
		for k, c := range coeffs {
			mag := cmplx.Abs(c)
			weighted += fft.Freq(k) * float64(sampleRate) * mag
			total += mag
		}
		if total == 0 {
			continue
		}
		sum += weighted / total
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func hann(n int) []float64 {
	w := make([]float64, n)
	if n < 2 {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}
