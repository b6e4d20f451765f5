package pipeline

import (
	"maps"
	"slices"

	"github.com/fedutinova/speechcoach/internal/analysis"
	"github.com/fedutinova/speechcoach/internal/narrative"
)

// Stage names, used as keys of Result.Errors.
const (
	StageFeatures  = "features"
	StageProsody   = "prosody"
	StageFillers   = "fillers"
	StageEmotion   = "emotion"
	StageNarrative = "narrative"
)

// Stages lists every stage in dependency order.
var Stages = []string{StageFeatures, StageProsody, StageFillers, StageEmotion, StageNarrative}

// IsStage reports whether name is a known stage.
func IsStage(name string) bool {
	return slices.Contains(Stages, name)
}

// Result aggregates stage outputs. Missing outputs have an entry in Errors.
type Result struct {
	Features         *analysis.Features   `json:"features"`
	Prosody          *analysis.Prosody    `json:"prosody"`
	Fillers          *analysis.Fillers    `json:"fillers"`
	Emotion          *analysis.Emotion    `json:"emotion"`
	Narrative        *narrative.Narrative `json:"narrative"`
	Errors           map[string]string    `json:"errors"`
	Context          string               `json:"context"`
	Language         string               `json:"language"`
	ProcessingTimeMs int64                `json:"processing_time_ms"`

	stageErrs map[string]error
}

func newResult() *Result {
	return &Result{Errors: map[string]string{}, stageErrs: map[string]error{}}
}

// Failed reports whether stage recorded an error.
func (r *Result) Failed(stage string) bool {
	_, ok := r.Errors[stage]
	return ok
}

// Err returns the typed error of stage when the result was produced in this
// process, or nil.
func (r *Result) Err(stage string) error {
	return r.stageErrs[stage]
}

// FailedStages lists failed stages in dependency order.
func (r *Result) FailedStages() []string {
	var out []string
	for _, s := range Stages {
		if r.Failed(s) {
			out = append(out, s)
		}
	}
	return out
}

func (r *Result) recordErr(stage string, err error) {
	r.Errors[stage] = err.Error()
	r.stageErrs[stage] = err
}

// Clone copies the errors map; stage outputs are immutable once set.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	c := *r
	c.Errors = maps.Clone(r.Errors)
	c.stageErrs = maps.Clone(r.stageErrs)
	return &c
}

// fold stores the outcome of stage in r and returns its value.
func fold[T any](r *Result, stage string, o Outcome[T]) *T {
	if _, err := o.Get(); err != nil {
		r.recordErr(stage, err)
		return nil
	}
	return o.Ptr()
}
