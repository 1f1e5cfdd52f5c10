package scrapeworker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"pricewatch-backend/internal/models"
	"pricewatch-backend/lib/browser"
	"pricewatch-backend/lib/docstore"
)

func leaseSeededJob(t *testing.T, svc *Service, store *docstore.Store, urls []string) *models.ScrapeJob {
	ctx := context.Background()
	_, err := svc.queue.Enqueue(ctx, "prod-1", urls, map[string]float64{"EUR": 1.1}, 0)
	require.NoError(t, err)
	job, err := svc.queue.LeaseNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

func TestProcessJobAggregatesSnapshot(t *testing.T) {
	page := &fakePage{fixtures: map[string]fixture{
		"https://a.example.com/p": {
			elements: map[string]*fakeElement{
				".price": {text: "$19.99"},
			},
		},
		"https://b.example.com/p": {
			navErr: &browser.NavError{
				URL:  "https://b.example.com/p",
				Kind: browser.FailureTimeout,
				Err:  context.DeadlineExceeded,
			},
		},
	}}
	b := &fakeBrowser{page: page}
	svc, store := newTestService(t, nil, b)
	job := leaseSeededJob(t, svc, store, []string{
		"https://a.example.com/p",
		"https://b.example.com/p",
	})

	svc.ProcessJob(context.Background(), job)

	var stored models.ScrapeJob
	err := store.Collection("scrapeJobs").Get(context.Background(), job.JobID, &stored)
	require.NoError(t, err)
	require.Equal(t, models.JobSucceeded, stored.Status)
	require.NotEmpty(t, stored.SnapshotID)

	var snapshot models.Snapshot
	err = store.Collection("competitorSnapshots").Get(context.Background(), stored.SnapshotID, &snapshot)
	require.NoError(t, err)
	require.Equal(t, job.JobID, snapshot.JobID)
	require.Equal(t, "prod-1", snapshot.ProductID)
	require.Equal(t, models.PricingPending, snapshot.PricingStatus)
	require.Len(t, snapshot.Competitors, 2)
	require.Equal(t, models.CompetitorSucceeded, snapshot.Competitors[0].Status)
	require.Equal(t, models.CompetitorFailed, snapshot.Competitors[1].Status)
	require.Equal(t, models.ReasonTimeout, *snapshot.Competitors[1].ErrorReason)

	wantStats := models.SnapshotStats{
		SuccessCount: 1,
		FailureCount: 1,
		BlockedCount: 0,
		Domains:      map[string]int{"a.example.com": 1},
	}
	if diff := cmp.Diff(wantStats, snapshot.Stats); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, 1, b.opened)
	require.True(t, page.closed)
	require.Equal(t, job.URLs, page.visited)
}

func TestProcessJobSnapshotWriteFailure(t *testing.T) {
	page := &fakePage{fixtures: map[string]fixture{
		"https://a.example.com/p": {
			elements: map[string]*fakeElement{
				".price": {text: "$19.99"},
			},
		},
	}}
	svc, store := newTestService(t, nil, &fakeBrowser{page: page})
	job := leaseSeededJob(t, svc, store, []string{"https://a.example.com/p"})

	// force the snapshot insert into an id conflict
	conflictID := docstore.NewID()
	err := store.Collection("competitorSnapshots").Create(
		context.Background(), conflictID, map[string]any{"jobId": "someone-else"})
	require.NoError(t, err)
	svc.newID = func() string { return conflictID }

	svc.ProcessJob(context.Background(), job)

	var stored models.ScrapeJob
	err = store.Collection("scrapeJobs").Get(context.Background(), job.JobID, &stored)
	require.NoError(t, err)
	require.Equal(t, models.JobFailed, stored.Status)
	require.Contains(t, stored.LastError, "persist snapshot")
	require.Empty(t, stored.SnapshotID)

	docs, err := store.Collection("competitorSnapshots").Run(context.Background(), docstore.Query{
		Filters: []docstore.Filter{docstore.Where("jobId", "==", job.JobID)},
	})
	require.NoError(t, err)
	require.Empty(t, docs)
	require.True(t, page.closed)
}

func TestProcessJobPageOpenFailure(t *testing.T) {
	b := &fakeBrowser{newPageErr: errors.New("browser crashed")}
	svc, store := newTestService(t, nil, b)
	job := leaseSeededJob(t, svc, store, []string{"https://a.example.com/p"})

	svc.ProcessJob(context.Background(), job)

	var stored models.ScrapeJob
	err := store.Collection("scrapeJobs").Get(context.Background(), job.JobID, &stored)
	require.NoError(t, err)
	require.Equal(t, models.JobFailed, stored.Status)
	require.Contains(t, stored.LastError, "open page")
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t, nil, &fakeBrowser{page: &fakePage{}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second * 2):
		t.Fatal("worker did not stop after cancellation")
	}
}
