package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fedutinova/speechcoach/internal/pipeline"
	"github.com/fedutinova/speechcoach/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger(&buf, "debug", "json")
	require.NoError(t, err)
	logger.Debug("hello", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "v", line["k"])

	_, err = newLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = newLogger(&buf, "info", "xml")
	assert.Error(t, err)
}

func TestAnalyzeCommand(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("PROFILES_FILE", "")
	t.Setenv("REQUIRED_STAGES", "features,fillers")

	dir := t.TempDir()
	sr := testsupport.DefaultSampleRate
	wavPath := filepath.Join(dir, "talk.wav")
	require.NoError(t, os.WriteFile(wavPath, testsupport.WAV(t, testsupport.Concat(
		testsupport.Bursts(180, sr, 1.5, 4, 0.5),
		testsupport.Glide(140, 240, sr, 1, 0.5),
	), sr), 0o644))

	transcriptPath := filepath.Join(dir, "talk.txt")
	require.NoError(t, os.WriteFile(transcriptPath, []byte("Um, so, like, we basically doubled revenue."), 0o644))

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"analyze", wavPath, "--transcript-file", transcriptPath, "--context", "sales_pitch"})
	require.NoError(t, cmd.Execute(), stderr.String())

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	assert.NotNil(t, res.Features)
	assert.NotNil(t, res.Prosody)
	require.NotNil(t, res.Fillers)
	assert.Positive(t, res.Fillers.TotalCount)
	assert.NotNil(t, res.Emotion)
	require.NotNil(t, res.Narrative)
	assert.False(t, res.Narrative.Available)
	assert.Equal(t, "sales_pitch", res.Context)
	assert.Equal(t, "en", res.Language)
}

func TestAnalyzeCommand_MissingFile(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"analyze", filepath.Join(t.TempDir(), "nope.wav")})
	assert.Error(t, cmd.Execute())
}
