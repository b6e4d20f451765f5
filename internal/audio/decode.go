package audio

import (
	"bytes"
	"fmt"

	"github.com/fedutinova/speechcoach/internal/common"
	"github.com/gabriel-vasile/mimetype"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Decode parses PCM WAV bytes into a mono clip. Multi-channel audio is
// mixed down by averaging channels.
func Decode(data []byte) (Clip, error) {
	if len(data) == 0 {
		return Clip{}, common.InputErrorf("audio is empty")
	}

	mt := mimetype.Detect(data)
	if !IsSupportedContentType(mt.String()) {
		return Clip{}, common.InputErrorf("unsupported audio content type %q", mt.String())
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Clip{}, common.InputErrorf("invalid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("%w: decode wav: %w", common.ErrInput, err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return Clip{}, common.InputErrorf("audio contains no samples")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	return toClip(buf, bitDepth)
}

// IsSupportedContentType reports whether Decode understands contentType.
func IsSupportedContentType(contentType string) bool {
	supported := map[string]bool{
		"audio/wav":      true,
		"audio/x-wav":    true,
		"audio/wave":     true,
		"audio/vnd.wave": true,
	}
	return supported[contentType]
}

func toClip(buf *goaudio.IntBuffer, bitDepth int) (Clip, error) {
	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	if buf.Format.SampleRate <= 0 {
		return Clip{}, common.InputErrorf("invalid sample rate %d", buf.Format.SampleRate)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return Clip{}, common.InputErrorf("unsupported bit depth %d", bitDepth)
	}

	// 8-bit PCM is unsigned, everything wider is signed.
	offset := 0.0
	scale := float64(int64(1) << (bitDepth - 1))
	if bitDepth == 8 {
		offset = 128
		scale = 128
	}

	frames := len(buf.Data) / channels
	if frames == 0 {
		return Clip{}, common.InputErrorf("audio contains no samples")
	}

	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			sum += (float64(buf.Data[i*channels+ch]) - offset) / scale
		}
		samples[i] = sum / float64(channels)
	}

	return Clip{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}
