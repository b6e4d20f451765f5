// Package pipeline runs the analysis stages of one job in dependency order.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fedutinova/speechcoach/internal/analysis"
	"github.com/fedutinova/speechcoach/internal/audio"
	"github.com/fedutinova/speechcoach/internal/narrative"
	"github.com/fedutinova/speechcoach/internal/profile"
)

// Progress checkpoints reported while a job runs.
const (
	ProgressStarted   = 10
	ProgressEmotion   = 65
	ProgressNarrative = 80
	ProgressAssembled = 90
	ProgressDone      = 100
)

// leafProgress is reported in completion order of the independent stages.
var leafProgress = [...]int{20, 35, 50}

// AudioLoader resolves an audio reference to a decoded clip.
type AudioLoader interface {
	Load(ctx context.Context, ref string) (audio.Clip, error)
}

// ProgressFunc receives non-decreasing checkpoints. Calls are serialized.
type ProgressFunc func(percent int)

type Request struct {
	AudioRef   string
	Transcript string
	Context    string
	Language   string
}

type Runner struct {
	loader    AudioLoader
	prosody   *analysis.ProsodyAnalyzer
	profiles  *profile.Registry
	narrative *narrative.Synthesizer
}

// NewRunner wires the stages. Nil prosody, profiles or synthesizer fall
// back to defaults; a nil synthesizer leaves narratives unconfigured.
func NewRunner(loader AudioLoader, prosody *analysis.ProsodyAnalyzer, profiles *profile.Registry, synth *narrative.Synthesizer) *Runner {
	if prosody == nil {
		prosody = analysis.NewProsodyAnalyzer(nil)
	}
	if profiles == nil {
		profiles = profile.NewRegistry()
	}
	if synth == nil {
		synth = narrative.NewSynthesizer(nil, 0)
	}
	return &Runner{loader: loader, prosody: prosody, profiles: profiles, narrative: synth}
}

// Run executes every stage and always returns a result. Stage failures are
// recorded in Result.Errors and never stop other stages.
func (r *Runner) Run(ctx context.Context, req Request, progress ProgressFunc) *Result {
	start := time.Now()
	res := newResult()

	var mu sync.Mutex
	report := func(p int) {
		if progress != nil {
			progress(p)
		}
	}
	report(ProgressStarted)

	prof, known := r.profiles.Get(req.Context)
	res.Context = req.Context
	if res.Context == "" {
		res.Context = prof.Name
	}
	if !known && req.Context != "" {
		slog.Debug("unknown context tag, using default profile", "context", req.Context)
	}
	res.Language = req.Language
	if res.Language == "" {
		res.Language = analysis.DetectLanguage(req.Transcript)
	}

	var (
		features Outcome[analysis.Features]
		prosody  Outcome[analysis.Prosody]
		fillers  Outcome[analysis.Fillers]
		done     int
		wg       sync.WaitGroup
	)
	leafDone := func() {
		mu.Lock()
		defer mu.Unlock()
		report(leafProgress[done])
		done++
	}

	wg.Go(func() {
		defer leafDone()
		fillers = runStage(StageFillers, func() (analysis.Fillers, error) {
			return prof.Fillers().Detect(req.Transcript), nil
		})
	})

	clip, loadErr := r.loadAudio(ctx, req.AudioRef)
	wg.Go(func() {
		defer leafDone()
		if loadErr != nil {
			features = Err[analysis.Features](loadErr)
			return
		}
		features = runStage(StageFeatures, func() (analysis.Features, error) {
			return analysis.ExtractFeatures(clip)
		})
	})
	wg.Go(func() {
		defer leafDone()
		if loadErr != nil {
			prosody = Err[analysis.Prosody](loadErr)
			return
		}
		prosody = runStage(StageProsody, func() (analysis.Prosody, error) {
			return r.prosody.Analyze(clip)
		})
	})
	wg.Wait()

	res.Features = fold(res, StageFeatures, features)
	res.Prosody = fold(res, StageProsody, prosody)
	res.Fillers = fold(res, StageFillers, fillers)

	emotion := runStage(StageEmotion, func() (analysis.Emotion, error) {
		return analysis.ClassifyEmotion(res.Features, res.Prosody, prof.EmotionScales()), nil
	})
	res.Emotion = fold(res, StageEmotion, emotion)
	report(ProgressEmotion)

	in := narrative.Input{
		Transcript:  req.Transcript,
		ContextTag:  res.Context,
		ContextNote: prof.Describe(),
		Language:    res.Language,
		Features:    res.Features,
		Prosody:     res.Prosody,
		Fillers:     res.Fillers,
		Emotion:     res.Emotion,
	}
	var narrErr error
	story := runStage(StageNarrative, func() (narrative.Narrative, error) {
		n, err := r.narrative.Synthesize(ctx, in)
		narrErr = err
		return n, nil
	})
	if n, err := story.Get(); err != nil {
		res.recordErr(StageNarrative, err)
		unavailable := narrative.Unavailable(err.Error())
		res.Narrative = &unavailable
	} else {
		res.Narrative = &n
		if narrErr != nil {
			res.recordErr(StageNarrative, narrErr)
		}
	}
	report(ProgressNarrative)

	res.ProcessingTimeMs = time.Since(start).Milliseconds()
	report(ProgressAssembled)

	slog.Debug("pipeline finished",
		"audio_ref", req.AudioRef,
		"context", res.Context,
		"failed_stages", res.FailedStages(),
		"processing_time_ms", res.ProcessingTimeMs)
	return res
}

func (r *Runner) loadAudio(ctx context.Context, ref string) (audio.Clip, error) {
	if r.loader == nil {
		return audio.Clip{}, errNoLoader
	}
	return r.loader.Load(ctx, ref)
}
