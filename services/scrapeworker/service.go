package scrapeworker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pricewatch-backend/internal/models"
	"pricewatch-backend/lib/browser"
	"pricewatch-backend/lib/docstore"
	"pricewatch-backend/lib/domains"
)

// Service is the scrape worker: it leases jobs, drives the per-URL
// extraction pipeline, and writes the resulting snapshots.
type Service struct {
	queue   Queue
	store   *docstore.Store
	browser browser.Browser
	domains domains.Registry
	cfg     Config
	newID   func() string
}

func NewService(store *docstore.Store, b browser.Browser, registry domains.Registry, cfg Config) *Service {
	return &Service{
		queue:   NewQueue(store, cfg.JobsCollection),
		store:   store,
		browser: b,
		domains: registry,
		cfg:     cfg,
		newID:   docstore.NewID,
	}
}

func (s *Service) Queue() Queue {
	return s.queue
}

// Run polls for jobs until the context is cancelled. Lease errors are
// logged and retried on the next tick rather than crashing the loop.
func (s *Service) Run(ctx context.Context) {
	slog.InfoContext(ctx, "scrape worker started",
		"poll_interval", s.cfg.PollInterval,
		"page_timeout", s.cfg.PageTimeout)
	for {
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "scrape worker stopped")
			return
		}
		job, err := s.queue.LeaseNext(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to lease job", "err", err)
			s.sleepPoll(ctx)
			continue
		}
		if job == nil {
			s.sleepPoll(ctx)
			continue
		}
		s.ProcessJob(ctx, job)
	}
}

// sleepPoll sleeps for the poll interval plus up to a second of jitter
// so multiple workers against the same store drift apart.
func (s *Service) sleepPoll(ctx context.Context) {
	d := s.cfg.PollInterval
	jitter, err := random.IntRange(0, 1000)
	if err == nil {
		d += time.Duration(jitter) * time.Millisecond
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// ProcessJob scrapes every URL of a leased job with a single page,
// persists the aggregated snapshot, and settles the job. Any error on
// the orchestration path marks the job failed.
func (s *Service) ProcessJob(ctx context.Context, job *models.ScrapeJob) {
	ctx, span := tracer.Start(ctx, "ProcessJob")
	defer span.End()
	span.SetAttributes(
		attribute.String("job_id", job.JobID),
		attribute.String("product_id", job.ProductID),
	)

	slog.InfoContext(ctx, "processing job",
		"job_id", job.JobID,
		"product_id", job.ProductID,
		"url_count", len(job.URLs))
	start := time.Now()

	page, err := s.browser.NewPage(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open page")
		s.failJob(ctx, job, fmt.Errorf("open page: %w", err))
		return
	}
	defer page.Close()

	results := make([]models.CompetitorResult, 0, len(job.URLs))
	for _, u := range job.URLs {
		page.Wait(ctx, s.cfg.VisitDelay)
		results = append(results, s.scrapeURL(ctx, page, u, job.FxRates))
	}

	snapshot := s.buildSnapshot(job, results, time.Since(start))
	err = s.store.Collection(s.cfg.SnapshotsCollection).Create(ctx, snapshot.SnapshotID, snapshot)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist snapshot")
		s.failJob(ctx, job, fmt.Errorf("persist snapshot: %w", err))
		return
	}
	err = s.queue.CompleteSuccess(ctx, job, snapshot.SnapshotID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete job")
		s.failJob(ctx, job, err)
		return
	}
	slog.InfoContext(ctx, "job completed",
		"job_id", job.JobID,
		"snapshot_id", snapshot.SnapshotID,
		"success_count", snapshot.Stats.SuccessCount,
		"failure_count", snapshot.Stats.FailureCount,
		"blocked_count", snapshot.Stats.BlockedCount,
		"latency_ms", snapshot.ScrapeLatencyMs)
}

func (s *Service) failJob(ctx context.Context, job *models.ScrapeJob, cause error) {
	slog.ErrorContext(ctx, "job failed",
		"job_id", job.JobID,
		"product_id", job.ProductID,
		"err", cause)
	err := s.queue.CompleteFailure(ctx, job, cause.Error())
	if err != nil {
		slog.ErrorContext(ctx, "failed to record job failure",
			"job_id", job.JobID,
			"err", err)
	}
}

func (s *Service) buildSnapshot(job *models.ScrapeJob, results []models.CompetitorResult, elapsed time.Duration) models.Snapshot {
	stats := models.SnapshotStats{Domains: map[string]int{}}
	for _, r := range results {
		switch r.Status {
		case models.CompetitorSucceeded:
			stats.SuccessCount++
		case models.CompetitorBlocked:
			stats.BlockedCount++
		default:
			stats.FailureCount++
		}
		if r.Hostname != "" {
			stats.Domains[r.Hostname]++
		}
	}
	return models.Snapshot{
		SnapshotID:      s.newID(),
		ProductID:       job.ProductID,
		JobID:           job.JobID,
		ScrapedAt:       time.Now().UTC().Truncate(time.Second),
		ScrapeLatencyMs: elapsed.Milliseconds(),
		Competitors:     results,
		Stats:           stats,
		PricingStatus:   models.PricingPending,
	}
}
