package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderdex/internal/domain"
	"github.com/kailas-cloud/tenderdex/internal/usecase/enrichment"
)

func TestRunner_SingleRunAtATime(t *testing.T) {
	release := make(chan struct{})
	enr := &fakeEnricher{rows: 100}
	enr.onRun = func(context.Context, enrichment.Window, string) { <-release }

	o, _ := newOrch(t, enr, &fakeIndexer{}, fakeRows{n: 100}, nil, FailureDrop)
	r, err := NewRunner(o, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(time.Second) })

	job, err := r.Start(context.Background(), Params{})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)

	_, err = r.Start(context.Background(), Params{})
	assert.ErrorIs(t, err, domain.ErrIngestBusy)

	got, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Same(t, job, got)
	assert.False(t, job.Finished())

	close(release)

	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
	sum, err := job.Result()
	require.NoError(t, err)
	assert.Equal(t, 1, sum.ChunksDone)
	assert.Equal(t, StatusCompleted, job.Progress().Status)

	// The worker returns to the pool shortly after the job closes Done.
	require.Eventually(t, func() bool {
		next, err := r.Start(context.Background(), Params{})
		if err != nil {
			return false
		}
		<-next.Done()
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunner_GetUnknown(t *testing.T) {
	o, _ := newOrch(t, &fakeEnricher{}, &fakeIndexer{}, fakeRows{}, nil, FailureDrop)
	r, err := NewRunner(o, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(time.Second) })

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestRunner_CancelStopsAtBoundary(t *testing.T) {
	started := make(chan struct{}, 10)
	release := make(chan struct{})
	enr := &fakeEnricher{rows: 5000}
	enr.onRun = func(context.Context, enrichment.Window, string) {
		started <- struct{}{}
		<-release
	}
	o, _ := newOrch(t, enr, &fakeIndexer{}, fakeRows{n: 5000}, nil, FailureDrop)
	r, err := NewRunner(o, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(time.Second) })

	job, err := r.Start(context.Background(), Params{})
	require.NoError(t, err)

	<-started
	job.Cancel()
	close(release)

	sum, err := job.Result()
	require.NoError(t, err)
	assert.True(t, sum.Cancelled)
	assert.Equal(t, 1, sum.ChunksDone)
}

func TestRunner_PanicFailsJob(t *testing.T) {
	enr := &fakeEnricher{rows: 100}
	enr.onRun = func(context.Context, enrichment.Window, string) { panic("nil map write") }

	o, _ := newOrch(t, enr, &fakeIndexer{}, fakeRows{n: 100}, nil, FailureDrop)
	r, err := NewRunner(o, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(time.Second) })

	job, err := r.Start(context.Background(), Params{})
	require.NoError(t, err)

	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
	_, err = job.Result()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil map write")

	snap := job.Progress()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Contains(t, snap.LastMessage, "panicked")
}
