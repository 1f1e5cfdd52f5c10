package scrapeworker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pricewatch-backend/internal/models"
	"pricewatch-backend/lib/docstore"
)

var tracer = otel.Tracer("services/scrapeworker")

// Queue manages the scrape job lifecycle on top of the document store.
type Queue struct {
	store      *docstore.Store
	collection string
}

func NewQueue(store *docstore.Store, collection string) Queue {
	return Queue{store: store, collection: collection}
}

func (q Queue) CollectionName() string {
	return q.collection
}

// Enqueue validates and deduplicates the given URLs and creates a queued
// job. Relative or unparseable URLs are dropped; an enqueue with no
// usable URL left is an error.
func (q Queue) Enqueue(ctx context.Context, productID string, urls []string, fxRates map[string]float64, priority int) (string, error) {
	ctx, span := tracer.Start(ctx, "queue.Enqueue")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", productID))

	if productID == "" {
		return "", fmt.Errorf("enqueue: product id is required")
	}
	sanitized := sanitizeURLs(urls)
	if len(sanitized) < len(urls) {
		slog.WarnContext(ctx, "dropped invalid or duplicate urls",
			"product_id", productID,
			"dropped", len(urls)-len(sanitized))
	}
	if len(sanitized) == 0 {
		return "", fmt.Errorf("enqueue for product %q: no valid urls", productID)
	}

	// second precision keeps the serialized timestamps lexically
	// ordered, which is what createdAt ordering compares
	now := time.Now().UTC().Truncate(time.Second)
	job := models.ScrapeJob{
		JobID:     docstore.NewID(),
		ProductID: productID,
		URLs:      sanitized,
		FxRates:   fxRates,
		Status:    models.JobQueued,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := q.store.Collection(q.collection).Create(ctx, job.JobID, job)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create job")
		return "", fmt.Errorf("enqueue job for product %q: %w", productID, err)
	}
	slog.InfoContext(ctx, "job enqueued",
		"job_id", job.JobID,
		"product_id", productID,
		"url_count", len(sanitized))
	return job.JobID, nil
}

func sanitizeURLs(urls []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, raw := range urls {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || !u.IsAbs() || u.Host == "" {
			continue
		}
		normalized := u.String()
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out
}

// LeaseNext claims the oldest queued job, marking it running and bumping
// its attempt count inside a transaction so concurrent workers cannot
// lease the same job twice. Returns (nil, nil) when there is nothing to
// do or when another worker won the race for the candidate.
func (q Queue) LeaseNext(ctx context.Context) (*models.ScrapeJob, error) {
	ctx, span := tracer.Start(ctx, "queue.LeaseNext")
	defer span.End()

	docs, err := q.store.Collection(q.collection).Run(ctx, docstore.Query{
		Filters: []docstore.Filter{{Field: "status", Op: "==", Value: string(models.JobQueued)}},
		OrderBy: "createdAt",
		Limit:   1,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query queued jobs")
		return nil, fmt.Errorf("query queued jobs: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	candidateID := docs[0].ID

	var leased *models.ScrapeJob
	err = q.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		var job models.ScrapeJob
		err := tx.Collection(q.collection).Get(ctx, candidateID, &job)
		if err != nil {
			return err
		}
		if job.Status != models.JobQueued {
			// lost the race, caller should just poll again
			return nil
		}
		job.Status = models.JobRunning
		job.Attempts++
		job.UpdatedAt = time.Now().UTC()
		err = tx.Collection(q.collection).Update(ctx, candidateID, map[string]any{
			"status":    job.Status,
			"attempts":  job.Attempts,
			"updatedAt": job.UpdatedAt,
		})
		if err != nil {
			return err
		}
		leased = &job
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lease job")
		return nil, fmt.Errorf("lease job %q: %w", candidateID, err)
	}
	if leased != nil {
		span.SetAttributes(attribute.String("job_id", leased.JobID))
		slog.InfoContext(ctx, "job leased",
			"job_id", leased.JobID,
			"product_id", leased.ProductID,
			"attempt", leased.Attempts)
	}
	return leased, nil
}

// CompleteSuccess marks the job succeeded and links the snapshot it
// produced.
func (q Queue) CompleteSuccess(ctx context.Context, job *models.ScrapeJob, snapshotID string) error {
	ctx, span := tracer.Start(ctx, "queue.CompleteSuccess")
	defer span.End()

	err := q.store.Collection(q.collection).Update(ctx, job.JobID, map[string]any{
		"status":     models.JobSucceeded,
		"snapshotId": snapshotID,
		"updatedAt":  time.Now().UTC(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete job")
		return fmt.Errorf("complete job %q: %w", job.JobID, err)
	}
	return nil
}

// CompleteFailure marks the job failed and records the terminal error.
func (q Queue) CompleteFailure(ctx context.Context, job *models.ScrapeJob, reason string) error {
	ctx, span := tracer.Start(ctx, "queue.CompleteFailure")
	defer span.End()

	err := q.store.Collection(q.collection).Update(ctx, job.JobID, map[string]any{
		"status":    models.JobFailed,
		"lastError": reason,
		"updatedAt": time.Now().UTC(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fail job")
		return fmt.Errorf("fail job %q: %w", job.JobID, err)
	}
	return nil
}
