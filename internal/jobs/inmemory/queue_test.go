package inmemory

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/mintbalance/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, store *Store, id string, want jobs.JobStatus) *jobs.Job {
	t.Helper()
	var job *jobs.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = store.GetJob(context.Background(), id)
		return err == nil && job.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestQueue_CompletesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.Job) (json.RawMessage, error) {
		return json.RawMessage(`{"summary":"ok"}`), nil
	}))

	job := &jobs.Job{Type: jobs.JobTypePredict, Params: json.RawMessage(`{"timeframe":"next month"}`)}
	require.NoError(t, q.Publish(ctx, job))
	assert.NotEmpty(t, job.ID)

	done := waitForStatus(t, store, job.ID, jobs.JobStatusCompleted)
	assert.JSONEq(t, `{"summary":"ok"}`, string(done.Result))
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.Error)
}

func TestQueue_RetriesThenFails(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	q.SetRetryBackoff(time.Millisecond)
	defer q.Close()

	var calls atomic.Int32
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job *jobs.Job) (json.RawMessage, error) {
		calls.Add(1)
		return nil, errors.New("backend unavailable")
	}))

	job := &jobs.Job{Type: jobs.JobTypeInsights, MaxRetries: 2}
	require.NoError(t, q.Publish(context.Background(), job))

	failed := waitForStatus(t, store, job.ID, jobs.JobStatusFailed)
	assert.Equal(t, 2, failed.RetryCount)
	assert.Equal(t, "backend unavailable", failed.Error)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueue_RetrySucceeds(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	q.SetRetryBackoff(time.Millisecond)
	defer q.Close()

	var calls atomic.Int32
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job *jobs.Job) (json.RawMessage, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return json.RawMessage(`[]`), nil
	}))

	job := &jobs.Job{Type: jobs.JobTypeBackup}
	require.NoError(t, q.Publish(context.Background(), job))

	done := waitForStatus(t, store, job.ID, jobs.JobStatusCompleted)
	assert.Equal(t, 1, done.RetryCount)
	assert.Empty(t, done.Error)
}

func TestQueue_PermanentErrorsAreNotRetried(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	q.SetRetryBackoff(time.Millisecond)
	defer q.Close()

	var calls atomic.Int32
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job *jobs.Job) (json.RawMessage, error) {
		calls.Add(1)
		return nil, jobs.Permanent(errors.New("missing API credential"))
	}))

	job := &jobs.Job{Type: jobs.JobTypePredict}
	require.NoError(t, q.Publish(context.Background(), job))

	failed := waitForStatus(t, store, job.ID, jobs.JobStatusFailed)
	assert.Equal(t, 0, failed.RetryCount)
	assert.Equal(t, int32(1), calls.Load())
}

func TestQueue_PanicFailsJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job *jobs.Job) (json.RawMessage, error) {
		panic("boom")
	}))

	job := &jobs.Job{Type: jobs.JobTypeExport}
	require.NoError(t, q.Publish(context.Background(), job))

	failed := waitForStatus(t, store, job.ID, jobs.JobStatusFailed)
	assert.Contains(t, failed.Error, "boom")
}

func TestQueue_SingleWorkerRunsOneAtATime(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	var running, peak atomic.Int32
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job *jobs.Job) (json.RawMessage, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return nil, nil
	}))

	var ids []string
	for i := 0; i < 4; i++ {
		job := &jobs.Job{Type: jobs.JobTypeInsights}
		require.NoError(t, q.Publish(context.Background(), job))
		ids = append(ids, job.ID)
	}
	for _, id := range ids {
		waitForStatus(t, store, id, jobs.JobStatusCompleted)
	}
	assert.Equal(t, int32(1), peak.Load())
}

func TestQueue_PublishValidation(t *testing.T) {
	q := NewQueue(1, 1, NewStore())

	err := q.Publish(context.Background(), &jobs.Job{Type: "reindex"})
	assert.Error(t, err)

	require.NoError(t, q.Stop(context.Background()))
	err = q.Publish(context.Background(), &jobs.Job{Type: jobs.JobTypePredict})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), nil), ErrQueueClosed)

	// Stopping twice is fine.
	assert.NoError(t, q.Close())
}
