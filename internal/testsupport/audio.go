// Package testsupport holds fixtures shared by package tests.
package testsupport

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DefaultSampleRate is used by the generators when callers do not care.
const DefaultSampleRate = 16000

// Tone returns a sine wave.
func Tone(freq float64, sampleRate int, seconds, amplitude float64) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// Glide returns a sine wave whose frequency moves linearly from f0 to f1.
func Glide(f0, f1 float64, sampleRate int, seconds, amplitude float64) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	phase := 0.0
	for i := range out {
		f := f0 + (f1-f0)*float64(i)/float64(n)
		phase += 2 * math.Pi * f / float64(sampleRate)
		out[i] = amplitude * math.Sin(phase)
	}
	return out
}

// Bursts returns a tone gated on and off burstsPerSecond times, a crude
// stand-in for syllables.
func Bursts(freq float64, sampleRate int, seconds float64, burstsPerSecond int, amplitude float64) []float64 {
	tone := Tone(freq, sampleRate, seconds, amplitude)
	period := sampleRate / burstsPerSecond
	for i := range tone {
		if (i % period) >= period/2 {
			tone[i] = 0
		}
	}
	return tone
}

// Noise returns deterministic uniform noise.
func Noise(sampleRate int, seconds, amplitude float64, seed uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * (2*r.Float64() - 1)
	}
	return out
}

// Silence returns zeros.
func Silence(sampleRate int, seconds float64) []float64 {
	return make([]float64, int(seconds*float64(sampleRate)))
}

// Concat joins sample slices.
func Concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// WAV encodes mono samples as 16-bit PCM WAV bytes.
func WAV(t testing.TB, samples []float64, sampleRate int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		data[i] = int(s * 32767)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close wav file: %v", err)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	return out
}
