package scrapeworker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pricewatch-backend/internal/models"
	"pricewatch-backend/lib/docstore"
	"pricewatch-backend/lib/testutil"
)

func setupQueue(t *testing.T) (Queue, *docstore.Store) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{Name: "scrapeworker"})
	t.Cleanup(cleanup)
	return NewQueue(res.Store, "scrapeJobs"), res.Store
}

func seedJob(t *testing.T, store *docstore.Store, job models.ScrapeJob) {
	err := store.Collection("scrapeJobs").Create(context.Background(), job.JobID, job)
	require.NoError(t, err)
}

func TestEnqueueSanitizesAndDeduplicates(t *testing.T) {
	queue, store := setupQueue(t)
	ctx := context.Background()

	jobID, err := queue.Enqueue(ctx, "prod-1", []string{
		"https://www.example.com/widget",
		"https://www.example.com/widget",
		"/relative/path",
		"not a url",
		"https://shop.example.org/widget",
	}, map[string]float64{"EUR": 1.1}, 2)
	require.NoError(t, err)

	var job models.ScrapeJob
	err = store.Collection("scrapeJobs").Get(ctx, jobID, &job)
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://www.example.com/widget",
		"https://shop.example.org/widget",
	}, job.URLs)
	require.Equal(t, models.JobQueued, job.Status)
	require.Equal(t, 2, job.Priority)
	require.Equal(t, 0, job.Attempts)
	require.Equal(t, map[string]float64{"EUR": 1.1}, job.FxRates)
}

func TestEnqueueRejectsUnusableInput(t *testing.T) {
	queue, _ := setupQueue(t)
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, "prod-1", []string{"/relative", "::bad::"}, nil, 0)
	require.Error(t, err)

	_, err = queue.Enqueue(ctx, "", []string{"https://example.com"}, nil, 0)
	require.Error(t, err)
}

func TestLeaseNextEmptyQueue(t *testing.T) {
	queue, _ := setupQueue(t)

	job, err := queue.LeaseNext(context.Background())
	require.NoError(t, err)
	require.Nil(t, job)
}

func TestLeaseNextOldestFirst(t *testing.T) {
	queue, store := setupQueue(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	seedJob(t, store, models.ScrapeJob{
		JobID:     "job-new",
		ProductID: "prod-2",
		URLs:      []string{"https://example.com/b"},
		Status:    models.JobQueued,
		CreatedAt: base.Add(time.Minute),
		UpdatedAt: base.Add(time.Minute),
	})
	seedJob(t, store, models.ScrapeJob{
		JobID:     "job-old",
		ProductID: "prod-1",
		URLs:      []string{"https://example.com/a"},
		Status:    models.JobQueued,
		CreatedAt: base,
		UpdatedAt: base,
	})

	leased, err := queue.LeaseNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, leased)
	require.Equal(t, "job-old", leased.JobID)
	require.Equal(t, models.JobRunning, leased.Status)
	require.Equal(t, 1, leased.Attempts)

	var stored models.ScrapeJob
	err = store.Collection("scrapeJobs").Get(ctx, "job-old", &stored)
	require.NoError(t, err)
	require.Equal(t, models.JobRunning, stored.Status)
	require.Equal(t, 1, stored.Attempts)

	leased, err = queue.LeaseNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, leased)
	require.Equal(t, "job-new", leased.JobID)
}

func TestLeaseNextSingleWinner(t *testing.T) {
	queue, store := setupQueue(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	seedJob(t, store, models.ScrapeJob{
		JobID:     "contested",
		ProductID: "prod-1",
		URLs:      []string{"https://example.com/a"},
		Status:    models.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	})

	const workers = 8
	var wg sync.WaitGroup
	wins := make(chan string, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := queue.LeaseNext(ctx)
			if err != nil {
				errs <- err
				return
			}
			if job != nil {
				wins <- job.JobID
			}
		}()
	}
	wg.Wait()
	close(wins)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, wins, 1)

	var stored models.ScrapeJob
	err := store.Collection("scrapeJobs").Get(ctx, "contested", &stored)
	require.NoError(t, err)
	require.Equal(t, models.JobRunning, stored.Status)
	require.Equal(t, 1, stored.Attempts)
}

func TestCompleteSuccess(t *testing.T) {
	queue, store := setupQueue(t)
	ctx := context.Background()

	jobID, err := queue.Enqueue(ctx, "prod-1", []string{"https://example.com/a"}, nil, 0)
	require.NoError(t, err)
	leased, err := queue.LeaseNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, leased)

	err = queue.CompleteSuccess(ctx, leased, "snap-123")
	require.NoError(t, err)

	var stored models.ScrapeJob
	err = store.Collection("scrapeJobs").Get(ctx, jobID, &stored)
	require.NoError(t, err)
	require.Equal(t, models.JobSucceeded, stored.Status)
	require.Equal(t, "snap-123", stored.SnapshotID)
}

func TestCompleteFailure(t *testing.T) {
	queue, store := setupQueue(t)
	ctx := context.Background()

	jobID, err := queue.Enqueue(ctx, "prod-1", []string{"https://example.com/a"}, nil, 0)
	require.NoError(t, err)
	leased, err := queue.LeaseNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, leased)

	err = queue.CompleteFailure(ctx, leased, "persist snapshot: disk full")
	require.NoError(t, err)

	var stored models.ScrapeJob
	err = store.Collection("scrapeJobs").Get(ctx, jobID, &stored)
	require.NoError(t, err)
	require.Equal(t, models.JobFailed, stored.Status)
	require.Equal(t, "persist snapshot: disk full", stored.LastError)
}
