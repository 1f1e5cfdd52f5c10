package models

import "time"

// JobStatus is the scrape job lifecycle: queued -> running -> succeeded/failed.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// ScrapeJob is one queued unit of work: a product and the competitor
// URLs to visit for it. Once leased, the job belongs to a single worker
// and its payload never changes.
type ScrapeJob struct {
	JobID     string `json:"jobId"`
	ProductID string `json:"productId"`
	// visit order is significant, the worker walks these sequentially
	// with a fixed delay between them
	URLs []string `json:"urls"`
	// currency code -> USD rate, supplied by the producer
	FxRates    map[string]float64 `json:"fxRates"`
	Status     JobStatus          `json:"status"`
	Attempts   int                `json:"attempts"`
	Priority   int                `json:"priority"`
	SnapshotID string             `json:"snapshotId,omitempty"`
	LastError  string             `json:"lastError,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}
