package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillerDetector_EmptyTranscript(t *testing.T) {
	d := NewFillerDetector(DefaultLexicon(), 0)

	for _, transcript := range []string{"", "   \n\t"} {
		f := d.Detect(transcript)
		assert.Zero(t, f.Density)
		assert.Zero(t, f.TotalWords)
		assert.Zero(t, f.TotalCount)
		assert.Empty(t, f.Detected)
		assert.Empty(t, f.Top3)
	}
}

func TestFillerDetector_CountsAndRanking(t *testing.T) {
	d := NewFillerDetector(DefaultLexicon(), DefaultTopN)

	f := d.Detect("Um, so I was like, um, thinking. Like, UM, you know? So yeah.")

	assert.Equal(t, 13, f.TotalWords)
	assert.Equal(t, 3, f.Counts["um"])
	assert.Equal(t, 2, f.Counts["like"])
	assert.Equal(t, 2, f.Counts["so"])
	assert.Equal(t, 1, f.Counts["yeah"])
	assert.Equal(t, 8, f.TotalCount)
	assert.InDelta(t, 8.0/13.0, f.Density, 1e-9)

	// like precedes so in the lexicon
	assert.Equal(t, []string{"um", "like", "so"}, f.Top3)
	require.Len(t, f.Detected, 4)
	assert.Equal(t, "um", f.Detected[0].Word)
	assert.Equal(t, 3, f.Detected[0].Count)
	assert.InDelta(t, 300.0/13.0, f.Detected[0].Percentage, 1e-9)
}

func TestFillerDetector_WholeTokensOnly(t *testing.T) {
	d := NewFillerDetector(DefaultLexicon(), DefaultTopN)

	f := d.Detect("summer likely umbrella solo")
	assert.Zero(t, f.TotalCount)
	assert.Equal(t, 4, f.TotalWords)
}

func TestFillerDetector_PunctuationJoinedWords(t *testing.T) {
	d := NewFillerDetector(DefaultLexicon(), DefaultTopN)

	f := d.Detect("um,uh,er")
	assert.Equal(t, 3, f.TotalWords)
	assert.Equal(t, 3, f.TotalCount)
	assert.InDelta(t, 1.0, f.Density, 1e-9)
	for _, c := range f.Detected {
		assert.LessOrEqual(t, c.Percentage, 100.0)
	}

	f = d.Detect("--- ... !!!")
	assert.Zero(t, f.TotalWords)
	assert.Zero(t, f.Density)
}

func TestFillerDetector_UnicodeFolding(t *testing.T) {
	d := NewFillerDetector(DefaultLexicon(), DefaultTopN)

	// decomposed "a" + combining acute must match the composed lexicon entry
	f := d.Detect("AJÁ, aja\u0301 ÓSEA Básicamente")
	assert.Equal(t, 2, f.Counts["ajá"])
	assert.Equal(t, 1, f.Counts["ósea"])
	assert.Equal(t, 1, f.Counts["básicamente"])
}

func TestFillerDetector_TopN(t *testing.T) {
	d := NewFillerDetector([]string{"a", "b", "c", "d"}, 2)

	f := d.Detect("d d d c c b a")
	require.Len(t, f.Detected, 2)
	assert.Equal(t, "d", f.Detected[0].Word)
	assert.Equal(t, "c", f.Detected[1].Word)
	assert.Equal(t, []string{"d", "c"}, f.Top3)
	assert.Equal(t, 7, f.TotalCount)
}

func TestFillerDetector_Deterministic(t *testing.T) {
	d := NewFillerDetector(DefaultLexicon(), DefaultTopN)
	transcript := "well, right, okay, well, bueno pues este, right okay"

	first := d.Detect(transcript)
	for range 20 {
		assert.Equal(t, first, d.Detect(transcript))
	}
	assert.Equal(t, []string{"well", "right", "okay"}, first.Top3)
}

func TestNewFillerDetector_DedupesAfterFolding(t *testing.T) {
	d := NewFillerDetector([]string{"Um", "um", " UM ", "", "uh"}, 0)
	assert.Equal(t, []string{"um", "uh"}, d.Lexicon())
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "es", DetectLanguage("El perro de la casa es grande y que bonito"))
	assert.Equal(t, "en", DetectLanguage("The dog is in the house and that is fine"))
	assert.Equal(t, "en", DetectLanguage(""))
}
