package analysis

import "strings"

var (
	spanishMarkers = map[string]bool{
		"el": true, "la": true, "los": true, "las": true, "de": true,
		"que": true, "en": true, "es": true, "y": true, "a": true,
	}
	englishMarkers = map[string]bool{
		"the": true, "is": true, "are": true, "and": true, "of": true,
		"to": true, "in": true, "a": true, "that": true,
	}
)

// DetectLanguage guesses "es" or "en" from stop-word counts. English wins
// ties, including the empty transcript.
func DetectLanguage(transcript string) string {
	var es, en int
	for _, tok := range tokenize(strings.ToLower(transcript)) {
		if spanishMarkers[tok] {
			es++
		}
		if englishMarkers[tok] {
			en++
		}
	}
	if es > en {
		return "es"
	}
	return "en"
}
