package analysis

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultTopN is how many ranked fillers a report keeps.
const DefaultTopN = 10

// SpanishFillers and EnglishFillers are the built-in lexicons, in ranking
// tie-break order.
var (
	SpanishFillers = []string{
		"eh", "em", "este", "pues", "bueno", "vale",
		"mmm", "ajá", "claro", "entonces", "mira", "oye",
		"tipo", "nada", "vamos", "venga", "onda", "rollo",
		"osea", "ósea", "literal", "literalmente", "básicamente",
		"obviamente", "realmente", "actualmente", "evidentemente",
	}
	EnglishFillers = []string{
		"uh", "um", "er", "ah", "like", "so",
		"well", "right", "okay", "actually", "basically",
		"literally", "seriously", "honestly", "totally",
		"absolutely", "definitely", "certainly", "clearly",
		"obviously", "evidently", "apparently", "essentially",
		"yeah", "yep", "yup", "nah", "nope",
		"hmm", "mhm", "kinda", "sorta", "gonna", "wanna",
		"gotta", "quite", "rather", "fairly", "pretty",
		"very",
	}
)

// DefaultLexicon is Spanish followed by English.
func DefaultLexicon() []string {
	return slices.Concat(SpanishFillers, EnglishFillers)
}

type FillerCount struct {
	Word       string  `json:"word"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Fillers reports disfluency tokens found in a transcript.
type Fillers struct {
	Counts     map[string]int `json:"counts"`
	TotalCount int            `json:"total_count"`
	TotalWords int            `json:"total_words"`
	Density    float64        `json:"filler_density"`
	Detected   []FillerCount  `json:"detected"`
	Top3       []string       `json:"top_3"`
}

// FillerDetector matches whole tokens against an ordered lexicon. It is
// safe for concurrent use.
type FillerDetector struct {
	lexicon []string
	index   map[string]int
	topN    int
}

// NewFillerDetector normalizes lexicon once. Duplicates after folding keep
// their first position.
func NewFillerDetector(lexicon []string, topN int) *FillerDetector {
	if topN <= 0 {
		topN = DefaultTopN
	}
	d := &FillerDetector{index: make(map[string]int, len(lexicon)), topN: topN}
	for _, w := range lexicon {
		w = fold(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := d.index[w]; ok {
			continue
		}
		d.index[w] = len(d.lexicon)
		d.lexicon = append(d.lexicon, w)
	}
	return d
}

// Lexicon returns the normalized lexicon in tie-break order.
func (d *FillerDetector) Lexicon() []string {
	return slices.Clone(d.lexicon)
}

func (d *FillerDetector) Detect(transcript string) Fillers {
	out := Fillers{
		Counts:   map[string]int{},
		Detected: []FillerCount{},
		Top3:     []string{},
	}
	tokens := tokenize(fold(transcript))
	out.TotalWords = len(tokens)
	if out.TotalWords == 0 {
		return out
	}

	counts := make([]int, len(d.lexicon))
	for _, tok := range tokens {
		if i, ok := d.index[tok]; ok {
			counts[i]++
			out.TotalCount++
		}
	}

	ranked := make([]int, 0, len(counts))
	for i, c := range counts {
		if c > 0 {
			out.Counts[d.lexicon[i]] = c
			ranked = append(ranked, i)
		}
	}
	slices.SortStableFunc(ranked, func(a, b int) int {
		return counts[b] - counts[a]
	})

	for n, i := range ranked {
		if n >= d.topN {
			break
		}
		out.Detected = append(out.Detected, FillerCount{
			Word:       d.lexicon[i],
			Count:      counts[i],
			Percentage: float64(counts[i]) / float64(out.TotalWords) * 100,
		})
		if n < 3 {
			out.Top3 = append(out.Top3, d.lexicon[i])
		}
	}
	out.Density = float64(out.TotalCount) / float64(out.TotalWords)
	return out
}

func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\'' && r != '’'
	})
}
