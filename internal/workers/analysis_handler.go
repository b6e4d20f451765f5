package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fedutinova/speechcoach/internal/job"
	"github.com/fedutinova/speechcoach/internal/pipeline"
)

// Pipeline runs the analysis stages for one request.
type Pipeline interface {
	Run(ctx context.Context, req pipeline.Request, progress pipeline.ProgressFunc) *pipeline.Result
}

// AnalysisHandler turns a claimed job into a pipeline run and decides
// whether the outcome counts as a failure.
type AnalysisHandler struct {
	pipeline Pipeline
	required []string
}

// NewAnalysisHandler fails if required names an unknown stage.
func NewAnalysisHandler(p Pipeline, required []string) (*AnalysisHandler, error) {
	for _, stage := range required {
		if !pipeline.IsStage(stage) {
			return nil, fmt.Errorf("unknown required stage %q", stage)
		}
	}
	return &AnalysisHandler{pipeline: p, required: required}, nil
}

// Required lists the stages whose failure fails the job.
func (h *AnalysisHandler) Required() []string {
	return h.required
}

// Handle runs the pipeline. The result is always returned; the error joins
// the failures of required stages.
func (h *AnalysisHandler) Handle(ctx context.Context, j *job.Job, progress pipeline.ProgressFunc) (*pipeline.Result, error) {
	slog.Info("Starting speech analysis",
		"job_id", j.ID,
		"audio_ref", j.AudioRef,
		"context", j.Context(),
		"transcript_chars", len(j.Transcript))

	res := h.pipeline.Run(ctx, pipeline.Request{
		AudioRef:   j.AudioRef,
		Transcript: j.Transcript,
		Context:    j.Context(),
		Language:   j.Language(),
	}, progress)

	if failed := res.FailedStages(); len(failed) > 0 {
		slog.Warn("analysis finished with stage errors", "job_id", j.ID, "stages", failed)
	}

	var errs []error
	for _, stage := range h.required {
		if !res.Failed(stage) {
			continue
		}
		cause := res.Err(stage)
		if cause == nil {
			cause = errors.New(res.Errors[stage])
		}
		errs = append(errs, fmt.Errorf("required stage %s failed: %w", stage, cause))
	}
	if err := errors.Join(errs...); err != nil {
		return res, err
	}

	slog.Info("Speech analysis completed",
		"job_id", j.ID,
		"language", res.Language,
		"processing_time_ms", res.ProcessingTimeMs)
	return res, nil
}
