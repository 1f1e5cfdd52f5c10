// Package browser abstracts the page automation the scrape pipeline
// drives: navigate, query elements, wait for content, click. The
// default engine is a plain HTTP fetcher (see fetch.go); anything that
// can satisfy these interfaces (a headless browser over CDP, a fixture
// in tests) can slot in instead.
package browser

import (
	"context"
	"fmt"
	"time"
)

// FailureKind classifies why a navigation or wait failed, so callers
// can branch on structure instead of matching error strings.
type FailureKind int

const (
	// FailureTimeout means the deadline elapsed before the page or
	// selector arrived.
	FailureTimeout FailureKind = iota
	// FailureBlocked covers everything else: error statuses, broken
	// markup, connection resets. Anti-bot defenses are the dominant
	// cause of unexpected page behavior, so unexplained failures get
	// lumped in here.
	FailureBlocked
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureBlocked:
		return "blocked"
	}
	return "unknown"
}

// NavError is a classified navigation failure.
type NavError struct {
	URL  string
	Kind FailureKind
	Err  error
}

func (e *NavError) Error() string {
	return fmt.Sprintf("navigate %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *NavError) Unwrap() error {
	return e.Err
}

// Element is one matched node on the current page.
type Element interface {
	// InnerText returns the element's visible text, whitespace-collapsed.
	InnerText() string
	// GetAttribute returns the named attribute, "" when absent.
	GetAttribute(name string) string
	// Click interacts with the element best-effort. Engines without
	// script execution may treat this as a no-op.
	Click(ctx context.Context) error
}

// Page is one browsing context. Pages are not safe for concurrent use;
// the worker drives one page sequentially for a whole job.
type Page interface {
	// Navigate loads url, following redirects, within timeout.
	// Failures are reported as *NavError.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// CurrentURL is the final URL after redirects, "" before the
	// first successful navigation.
	CurrentURL() string
	// QuerySelector returns the first match on the current page, or
	// nil when nothing matches.
	QuerySelector(selector string) Element
	// WaitForSelector blocks until the selector matches or timeout
	// elapses (reported as *NavError with FailureTimeout).
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Text returns the visible text of the whole page.
	Text() string
	// Wait sleeps for d, returning early if ctx is done.
	Wait(ctx context.Context, d time.Duration)
	Close() error
}

// Browser creates pages. One browser instance is private to one worker
// process.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}
