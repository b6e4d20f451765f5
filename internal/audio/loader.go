package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fedutinova/speechcoach/internal/common"
)

// MaxAudioSize bounds how much of a stored object is read into memory.
const MaxAudioSize = 50 << 20 // 50mb

// FileGetter is the part of storage.Storage the loader needs.
type FileGetter interface {
	GetFile(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Loader resolves audio references through storage and decodes them.
type Loader struct {
	files   FileGetter
	timeout time.Duration
}

func NewLoader(files FileGetter, timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Loader{files: files, timeout: timeout}
}

// Load fetches ref and decodes it. Every failure is classified as an input
// error: from the pipeline's point of view the recording is unreadable.
func (l *Loader) Load(ctx context.Context, ref string) (Clip, error) {
	if ref == "" {
		return Clip{}, common.InputErrorf("empty audio reference")
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	reader, contentType, err := l.files.GetFile(ctx, ref)
	if err != nil {
		return Clip{}, fmt.Errorf("%w: load audio %q: %w", common.ErrInput, ref, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, MaxAudioSize+1))
	if err != nil {
		return Clip{}, fmt.Errorf("%w: read audio %q: %w", common.ErrInput, ref, err)
	}
	if len(data) > MaxAudioSize {
		return Clip{}, common.InputErrorf("audio %q exceeds %d bytes", ref, MaxAudioSize)
	}

	clip, err := Decode(data)
	if err != nil {
		return Clip{}, err
	}

	slog.Debug("audio loaded",
		"ref", ref,
		"content_type", contentType,
		"size_bytes", len(data),
		"sample_rate", clip.SampleRate,
		"duration", clip.Duration())

	return clip, nil
}
