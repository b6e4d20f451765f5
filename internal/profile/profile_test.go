package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fedutinova/speechcoach/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Builtins(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, []string{"academic", "general", "interview", "public_speech", "sales_pitch", "storytelling"}, r.Names())

	p, ok := r.Get("interview")
	require.True(t, ok)
	assert.Equal(t, Range{130, 150}, p.IdealPaceWPM)
	assert.Equal(t, analysis.DefaultEmotionScales(), p.EmotionScales())
	assert.Contains(t, p.Describe(), "confidence, precision and authenticity")
	assert.Equal(t, analysis.DefaultTopN, p.TopN)
}

func TestRegistry_UnknownFallsBackToDefault(t *testing.T) {
	r := NewRegistry()

	for _, tag := range []string{"", "wedding_toast"} {
		p, ok := r.Get(tag)
		assert.False(t, ok)
		assert.Equal(t, Default, p.Name)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	assert.Len(t, r.Names(), 6)
}

func TestLoad_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `
profiles:
  - name: interview
    lexicon: [um, uh, er]
    top_n: 2
  - name: podcast
    label: podcast episode
    focus: warmth
    ideal_pace_wpm: {min: 150, max: 190}
    pitch_range_ref_hz: 250
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r, err := Load(path)
	require.NoError(t, err)

	interview, ok := r.Get("interview")
	require.True(t, ok)
	assert.Equal(t, "interview", interview.Label)
	assert.Equal(t, "confidence, precision and authenticity", interview.Focus)
	assert.Equal(t, 2, interview.TopN)
	assert.Equal(t, []string{"um", "uh", "er"}, interview.Fillers().Lexicon())

	f := interview.Fillers().Detect("um so um uh like")
	assert.Equal(t, 3, f.TotalCount)
	assert.Len(t, f.Detected, 2)

	podcast, ok := r.Get("podcast")
	require.True(t, ok)
	assert.Equal(t, Range{150, 190}, podcast.IdealPaceWPM)
	assert.Equal(t, 250.0, podcast.PitchRangeRefHz)
	assert.Equal(t, 300.0, podcast.RateCeilingWPM)
	assert.Equal(t, analysis.DefaultLexicon(), podcast.Lexicon)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("profiles: [{label: nameless}]"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	broken := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("profiles: {"), 0o644))
	_, err = Load(broken)
	assert.Error(t, err)
}
