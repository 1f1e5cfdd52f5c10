package models

import "time"

// CompetitorStatus is the per-URL scrape outcome.
type CompetitorStatus string

const (
	CompetitorSucceeded CompetitorStatus = "succeeded"
	CompetitorFailed    CompetitorStatus = "failed"
	CompetitorBlocked   CompetitorStatus = "blocked"
)

// Failure reasons recorded on non-succeeded competitor results.
const (
	ReasonTimeout       = "timeout"
	ReasonBotProtection = "bot_protection"
	ReasonNoPriceFound  = "no_price_found"
)

// CompetitorResult is the outcome of scraping one URL. Created once,
// never mutated, appended to the snapshot in URL order.
type CompetitorResult struct {
	// empty when the failure happened before navigation resolved
	Hostname string `json:"hostname"`
	// final URL after redirects
	URL            string           `json:"url"`
	RawPriceText   *string          `json:"rawPriceText"`
	ParsedPriceUSD *float64         `json:"parsedPriceUsd"`
	Currency       *string          `json:"currency"`
	Status         CompetitorStatus `json:"status"`
	ErrorReason    *string          `json:"errorReason"`
	ScrapedAt      time.Time        `json:"scrapedAt"`
	LatencyMs      int64            `json:"latencyMs"`
}

// SnapshotStats aggregates the per-URL outcomes of one job.
// successCount + failureCount + blockedCount always equals the number
// of competitor results; Domains only counts results with a hostname.
type SnapshotStats struct {
	SuccessCount int            `json:"successCount"`
	FailureCount int            `json:"failureCount"`
	BlockedCount int            `json:"blockedCount"`
	Domains      map[string]int `json:"domains"`
}

// PricingStatus tracks the downstream pricing service's consumption of
// a snapshot.
type PricingStatus string

const (
	PricingPending    PricingStatus = "pending"
	PricingProcessing PricingStatus = "processing"
	PricingCompleted  PricingStatus = "completed"
	PricingFailed     PricingStatus = "failed"
)

// Snapshot is the durable aggregate of one job's price observations.
// Written once by the worker; only pricingStatus is updated afterwards,
// by the downstream consumer.
type Snapshot struct {
	SnapshotID      string             `json:"snapshotId"`
	ProductID       string             `json:"productId"`
	JobID           string             `json:"jobId"`
	ScrapedAt       time.Time          `json:"scrapedAt"`
	ScrapeLatencyMs int64              `json:"scrapeLatencyMs"`
	Competitors     []CompetitorResult `json:"competitors"`
	Stats           SnapshotStats      `json:"stats"`
	PricingStatus   PricingStatus      `json:"pricingStatus"`
	LastError       *string            `json:"lastError"`
}
