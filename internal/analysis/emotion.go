package analysis

import "math"

// Emotion labels in arg-max tie-break order.
const (
	EmotionConfident  = "confident"
	EmotionAnxious    = "anxious"
	EmotionEngaged    = "engaged"
	EmotionBored      = "bored"
	EmotionHappy      = "happy"
	EmotionSad        = "sad"
	EmotionFrustrated = "frustrated"
	EmotionNeutral    = "neutral"
)

var EmotionLabels = []string{
	EmotionConfident, EmotionAnxious, EmotionEngaged, EmotionBored,
	EmotionHappy, EmotionSad, EmotionFrustrated, EmotionNeutral,
}

const (
	neutralBaseline = 0.5
	defaultEnergy   = 0.5
	defaultRateWPM  = 150.0
)

// Emotion is a normalized label distribution.
type Emotion struct {
	Primary string             `json:"primary"`
	Scores  map[string]float64 `json:"scores"`
}

// EmotionScales normalizes raw measurements before the rules apply.
type EmotionScales struct {
	RateCeilingWPM  float64
	PitchRangeRefHz float64
}

func DefaultEmotionScales() EmotionScales {
	return EmotionScales{RateCeilingWPM: 300, PitchRangeRefHz: 200}
}

// NeutralEmotion is the fallback distribution.
func NeutralEmotion() Emotion {
	scores := make(map[string]float64, len(EmotionLabels))
	for _, l := range EmotionLabels {
		scores[l] = 0
	}
	scores[EmotionNeutral] = 1
	return Emotion{Primary: EmotionNeutral, Scores: scores}
}

// ClassifyEmotion applies threshold rules to energy, speech rate and pitch.
// Missing inputs are replaced by neutral defaults.
func ClassifyEmotion(features *Features, prosody *Prosody, scales EmotionScales) Emotion {
	if scales.RateCeilingWPM <= 0 || scales.PitchRangeRefHz <= 0 {
		scales = DefaultEmotionScales()
	}

	energy := defaultEnergy
	rate := defaultRateWPM / scales.RateCeilingWPM
	if features != nil {
		energy = features.EnergyNormalized
		rate = features.SpeechRateWPM / scales.RateCeilingWPM
	}

	pitchRange := 0.5
	contour := 0.0
	if prosody != nil {
		pitchRange = prosody.PitchRangeHz / scales.PitchRangeRefHz
		contour = prosody.Contour
	}

	s := map[string]float64{
		EmotionConfident:  0,
		EmotionAnxious:    0,
		EmotionEngaged:    0,
		EmotionBored:      0,
		EmotionHappy:      0,
		EmotionSad:        0,
		EmotionFrustrated: 0,
		EmotionNeutral:    neutralBaseline,
	}

	if energy > 0.7 && rate > 0.8 && pitchRange > 0.5 {
		s[EmotionEngaged] = 0.8
		s[EmotionHappy] = 0.6
	}
	if energy < 0.3 && rate < 0.5 {
		s[EmotionBored] = 0.7
		s[EmotionSad] = 0.5
	}
	if energy > 0.8 && rate > 0.9 {
		s[EmotionFrustrated] = 0.6
		s[EmotionAnxious] = 0.5
	}
	if contour > 0.3 {
		s[EmotionEngaged] += 0.2
		s[EmotionHappy] += 0.1
	}
	if pitchRange < 0.2 {
		s[EmotionNeutral] += 0.2
		s[EmotionBored] += 0.1
	}
	if energy > 0.6 && pitchRange > 0.5 {
		s[EmotionConfident] = 0.7
	} else if energy < 0.4 || pitchRange < 0.3 {
		s[EmotionAnxious] += 0.3
	}

	var total float64
	for _, v := range s {
		total += v
	}
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return NeutralEmotion()
	}
	for k, v := range s {
		s[k] = v / total
	}

	primary := EmotionLabels[0]
	for _, l := range EmotionLabels[1:] {
		if s[l] > s[primary] {
			primary = l
		}
	}
	return Emotion{Primary: primary, Scores: s}
}
