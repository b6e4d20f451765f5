package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fedutinova/speechcoach/internal/analysis"
	"github.com/fedutinova/speechcoach/internal/audio"
	"github.com/fedutinova/speechcoach/internal/job"
	"github.com/fedutinova/speechcoach/internal/narrative"
	"github.com/fedutinova/speechcoach/internal/pipeline"
	"github.com/fedutinova/speechcoach/internal/profile"
	"github.com/fedutinova/speechcoach/internal/testsupport"
	"github.com/fedutinova/speechcoach/internal/workers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingCapability blocks in Generate and records how many calls overlap.
type countingCapability struct {
	hold   time.Duration
	active atomic.Int32
	peak   atomic.Int32
	calls  atomic.Int32
}

func (c *countingCapability) Generate(ctx context.Context, req narrative.Request) (narrative.Generation, error) {
	c.calls.Add(1)
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}

	select {
	case <-ctx.Done():
		return narrative.Generation{}, ctx.Err()
	case <-time.After(c.hold):
	}
	return narrative.Generation{Text: "Keep the pace steady.", Model: "counting"}, nil
}

func TestConcurrencyBoundedByPoolSize_FullPipeline(t *testing.T) {
	const workers, jobs = 2, 6

	files := testsupport.NewFiles()
	sr := testsupport.DefaultSampleRate
	files.Put("audio/talk.wav", testsupport.WAV(t, testsupport.Bursts(180, sr, 1, 4, 0.5), sr))

	capability := &countingCapability{hold: 30 * time.Millisecond}
	runner := pipeline.NewRunner(
		audio.NewLoader(files, time.Second),
		analysis.NewProsodyAnalyzer(nil),
		profile.NewRegistry(),
		narrative.NewSynthesizer(capability, 2*time.Second),
	)
	h, err := workersHandler(runner)
	require.NoError(t, err)

	d, _ := newDispatcher(t)
	ctx := context.Background()
	d.StartConsumers(ctx, workers, h)

	ids := make([]uuid.UUID, jobs)
	for i := range ids {
		id, err := d.Submit(ctx, submission("u1"))
		require.NoError(t, err)
		ids[i] = id
	}
	for _, id := range ids {
		j := waitStatus(t, d, id, job.StatusCompleted)
		require.NotNil(t, j.Result)
		require.NotNil(t, j.Result.Narrative)
		assert.True(t, j.Result.Narrative.Available)
	}

	assert.Equal(t, int32(jobs), capability.calls.Load())
	assert.Positive(t, capability.peak.Load())
	assert.LessOrEqual(t, capability.peak.Load(), int32(workers))
	assert.Zero(t, capability.active.Load())
}

func workersHandler(runner *pipeline.Runner) (Handler, error) {
	h, err := workers.NewAnalysisHandler(runner, []string{pipeline.StageFeatures})
	if err != nil {
		return nil, err
	}
	return h.Handle, nil
}
