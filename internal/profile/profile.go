// Package profile maps a submission's context tag to the lexicon and
// reference scales used by the analysis stages.
package profile

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sort"

	"github.com/fedutinova/speechcoach/internal/analysis"
	"gopkg.in/yaml.v3"
)

// Default is the profile used for empty or unknown context tags.
const Default = "general"

type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

type Profile struct {
	Name             string   `yaml:"name"`
	Label            string   `yaml:"label"`
	Focus            string   `yaml:"focus"`
	IdealPaceWPM     Range    `yaml:"ideal_pace_wpm"`
	IdealPitchRange  Range    `yaml:"ideal_pitch_range"`
	MaxFillersPerMin int      `yaml:"max_fillers_per_minute"`
	Lexicon          []string `yaml:"lexicon"`
	TopN             int      `yaml:"top_n"`
	RateCeilingWPM   float64  `yaml:"rate_ceiling_wpm"`
	PitchRangeRefHz  float64  `yaml:"pitch_range_ref_hz"`

	detector *analysis.FillerDetector
}

// Fillers returns the detector built from the profile lexicon.
func (p Profile) Fillers() *analysis.FillerDetector {
	if p.detector == nil {
		return analysis.NewFillerDetector(p.Lexicon, p.TopN)
	}
	return p.detector
}

// EmotionScales returns the normalization used by the emotion heuristic.
func (p Profile) EmotionScales() analysis.EmotionScales {
	return analysis.EmotionScales{
		RateCeilingWPM:  p.RateCeilingWPM,
		PitchRangeRefHz: p.PitchRangeRefHz,
	}
}

// Describe renders a one-line description for prompts.
func (p Profile) Describe() string {
	return fmt.Sprintf("%s (focus: %s; ideal pace %.0f-%.0f wpm; at most %d fillers per minute)",
		p.Label, p.Focus, p.IdealPaceWPM.Min, p.IdealPaceWPM.Max, p.MaxFillersPerMin)
}

// Registry resolves context tags. It is read-only after construction.
type Registry struct {
	profiles map[string]Profile
}

func builtins() []Profile {
	base := func(name, label, focus string, pace, pitch Range, maxFillers int) Profile {
		return Profile{
			Name:             name,
			Label:            label,
			Focus:            focus,
			IdealPaceWPM:     pace,
			IdealPitchRange:  pitch,
			MaxFillersPerMin: maxFillers,
			Lexicon:          analysis.DefaultLexicon(),
			TopN:             analysis.DefaultTopN,
			RateCeilingWPM:   300,
			PitchRangeRefHz:  200,
		}
	}
	return []Profile{
		base("general", "general presentation", "balance and naturalness", Range{130, 160}, Range{20, 35}, 3),
		base("sales_pitch", "sales pitch", "energy, urgency and conviction", Range{140, 160}, Range{25, 40}, 2),
		base("academic", "academic presentation", "clarity, structure and precision", Range{120, 140}, Range{15, 30}, 3),
		base("interview", "interview", "confidence, precision and authenticity", Range{130, 150}, Range{20, 35}, 2),
		base("public_speech", "public speech", "projection, drama and inspiration", Range{140, 170}, Range{30, 50}, 1),
		base("storytelling", "storytelling", "dynamism, emotion and suspense", Range{150, 180}, Range{35, 55}, 2),
	}
}

// NewRegistry returns the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{profiles: map[string]Profile{}}
	for _, p := range builtins() {
		r.add(p)
	}
	return r
}

type fileFormat struct {
	Profiles []Profile `yaml:"profiles"`
}

// Load returns the built-ins overlaid with the profiles in path. An empty
// path yields the built-ins.
func Load(path string) (*Registry, error) {
	r := NewRegistry()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profiles file %s: %w", path, err)
	}

	for i, p := range f.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("profiles file %s: entry %d has no name", path, i)
		}
		r.add(r.withDefaults(p))
	}
	slog.Info("context profiles loaded", "path", path, "count", len(f.Profiles))
	return r, nil
}

// withDefaults fills unset fields from the existing profile of the same
// name, or from the default profile.
func (r *Registry) withDefaults(p Profile) Profile {
	fallback, ok := r.profiles[p.Name]
	if !ok {
		fallback = r.profiles[Default]
	}
	if p.Label == "" {
		p.Label = p.Name
		if ok {
			p.Label = fallback.Label
		}
	}
	if p.Focus == "" {
		p.Focus = fallback.Focus
	}
	if p.IdealPaceWPM == (Range{}) {
		p.IdealPaceWPM = fallback.IdealPaceWPM
	}
	if p.IdealPitchRange == (Range{}) {
		p.IdealPitchRange = fallback.IdealPitchRange
	}
	if p.MaxFillersPerMin == 0 {
		p.MaxFillersPerMin = fallback.MaxFillersPerMin
	}
	if len(p.Lexicon) == 0 {
		p.Lexicon = slices.Clone(fallback.Lexicon)
	}
	if p.TopN <= 0 {
		p.TopN = fallback.TopN
	}
	if p.RateCeilingWPM <= 0 {
		p.RateCeilingWPM = fallback.RateCeilingWPM
	}
	if p.PitchRangeRefHz <= 0 {
		p.PitchRangeRefHz = fallback.PitchRangeRefHz
	}
	return p
}

func (r *Registry) add(p Profile) {
	p.detector = analysis.NewFillerDetector(p.Lexicon, p.TopN)
	r.profiles[p.Name] = p
}

// Get returns the profile for tag. Unknown or empty tags resolve to the
// default profile and report false.
func (r *Registry) Get(tag string) (Profile, bool) {
	if p, ok := r.profiles[tag]; ok {
		return p, true
	}
	return r.profiles[Default], false
}

// Names lists the known context tags in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
