package scrapeworker

import (
	"time"

	"pricewatch-backend/lib/configutil"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config is the worker's environment-style configuration surface.
type Config struct {
	JobsCollection      string
	SnapshotsCollection string
	// per-URL navigation budget; selector waits get half of this
	PageTimeout time.Duration
	// how long to sleep when a lease attempt comes back empty
	PollInterval time.Duration
	// fixed inter-URL throttle to stay under anti-bot radars
	VisitDelay time.Duration
	UserAgent  string
}

func ConfigFromEnv() Config {
	return Config{
		JobsCollection:      configutil.GetEnv("SCRAPE_JOBS_COLLECTION", "scrapeJobs"),
		SnapshotsCollection: configutil.GetEnv("SNAPSHOTS_COLLECTION", "competitorSnapshots"),
		PageTimeout:         configutil.GetEnvDuration("SCRAPER_PAGE_TIMEOUT", time.Second*30),
		PollInterval:        configutil.GetEnvDuration("SCRAPER_POLL_INTERVAL", time.Second*5),
		VisitDelay:          configutil.GetEnvDuration("SCRAPER_VISIT_DELAY", time.Millisecond*500),
		UserAgent:           configutil.GetEnv("SCRAPER_USER_AGENT", defaultUserAgent),
	}
}
