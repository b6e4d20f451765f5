package narrative

import (
	"fmt"
	"strings"

	"github.com/fedutinova/speechcoach/internal/analysis"
)

const transcriptPreviewRunes = 500

// Input is everything the prompt may draw on. Nil stage outputs are
// reported as unavailable.
type Input struct {
	Transcript  string
	ContextTag  string
	ContextNote string
	Language    string
	Features    *analysis.Features
	Prosody     *analysis.Prosody
	Fillers     *analysis.Fillers
	Emotion     *analysis.Emotion
}

// BuildPrompt renders in deterministically.
func BuildPrompt(in Input) string {
	var b strings.Builder

	b.WriteString("Analyze this speech recording and provide detailed coaching feedback.\n\n")

	fmt.Fprintf(&b, "CONTEXT: %s\n", orDefault(in.ContextTag, "general"))
	if in.ContextNote != "" {
		fmt.Fprintf(&b, "CONTEXT DETAILS: %s\n", in.ContextNote)
	}

	preview := []rune(in.Transcript)
	fmt.Fprintf(&b, "\nTRANSCRIPTION:\n%s", string(preview[:min(len(preview), transcriptPreviewRunes)]))
	if len(preview) > transcriptPreviewRunes {
		fmt.Fprintf(&b, "...\nFull transcription: %d characters", len(preview))
	}
	b.WriteString("\n\nAUDIO METRICS:\n")
	if f := in.Features; f != nil {
		fmt.Fprintf(&b, "- Duration: %.1f seconds\n", f.DurationSeconds)
		fmt.Fprintf(&b, "- Energy Level: %.2f/1.0 (volume consistency)\n", f.EnergyNormalized)
		fmt.Fprintf(&b, "- Speech Rate: %.0f words/minute\n", f.SpeechRateWPM)
		fmt.Fprintf(&b, "- Silence Ratio: %.1f%% of total time\n", f.SilenceRatio*100)
		fmt.Fprintf(&b, "- Voice Brightness: %.0f Hz\n", f.SpectralCentroid)
	} else {
		b.WriteString("- unavailable\n")
	}

	b.WriteString("\nPROSODY ANALYSIS:\n")
	if p := in.Prosody; p != nil {
		fmt.Fprintf(&b, "- Pitch Range: %.0f Hz\n", p.PitchRangeHz)
		fmt.Fprintf(&b, "- Mean Pitch: %.0f Hz\n", p.PitchMeanHz)
		fmt.Fprintf(&b, "- Pitch Contour: %s\n", analysis.ContourLabel(p.Contour))
		fmt.Fprintf(&b, "- Intensity Variation: %.2f dB\n", p.IntensityStdDB)
	} else {
		b.WriteString("- unavailable\n")
	}

	b.WriteString("\nFILLER WORDS:\n")
	if f := in.Fillers; f != nil {
		fmt.Fprintf(&b, "- Total Fillers: %d\n", f.TotalCount)
		fmt.Fprintf(&b, "- Filler Density: %.1f%% of words\n", f.Density*100)
		fmt.Fprintf(&b, "- Top Fillers: %s\n", strings.Join(f.Top3, ", "))
	} else {
		b.WriteString("- unavailable\n")
	}

	if e := in.Emotion; e != nil {
		fmt.Fprintf(&b, "\nVOCAL TONE: predominantly %s (%.0f%%)\n", e.Primary, e.Scores[e.Primary]*100)
	}

	b.WriteString(`
Please provide:
1. Overall Assessment (1-10 score for communication effectiveness)
2. Key Strengths (3-4 points)
3. Areas for Improvement (3-4 specific recommendations)
4. Specific Coaching Tips (actionable exercises)
5. Confidence Level (1-10 how confident the speaker sounds)

Format your response clearly with headers.`)

	if in.Language == "es" {
		b.WriteString("\nRespond in Spanish.")
	}
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
