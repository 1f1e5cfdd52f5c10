package scrapeworker

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pricewatch-backend/internal/models"
	"pricewatch-backend/lib/browser"
	"pricewatch-backend/lib/domains"
	"pricewatch-backend/lib/priceparse"
)

// Fallbacks applied when the domain registry has nothing for a hostname.
// Ordered from most to least specific.
var (
	genericConsentSelectors = []string{
		"button#onetrust-accept-btn-handler",
		"button[aria-label='Accept all']",
	}
	genericPriceSelectors = []string{
		"meta[itemprop='price']",
		".price",
		".a-offscreen",
		"[data-test='price']",
	}
)

const consentSettleDelay = time.Millisecond * 500

// scrapeURL runs the full extraction pipeline for one competitor URL and
// always returns a result, folding navigation failures into the result's
// status and reason.
func (s *Service) scrapeURL(ctx context.Context, page browser.Page, rawURL string, fxRates map[string]float64) models.CompetitorResult {
	ctx, span := tracer.Start(ctx, "scrapeURL")
	defer span.End()
	span.SetAttributes(attribute.String("url", rawURL))

	start := time.Now()
	result, err := s.extractPrice(ctx, page, rawURL, fxRates)
	result.LatencyMs = time.Since(start).Milliseconds()
	if err == nil {
		span.SetAttributes(attribute.String("status", string(result.Status)))
		return result
	}

	status, reason := classifyFailure(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	slog.WarnContext(ctx, "competitor page failed",
		"url", rawURL,
		"reason", reason,
		"err", err)
	return models.CompetitorResult{
		URL:         rawURL,
		Status:      status,
		ErrorReason: &reason,
		ScrapedAt:   time.Now().UTC(),
		LatencyMs:   result.LatencyMs,
	}
}

// classifyFailure maps a navigation error onto a competitor status. A
// timeout is a plain failure; everything else at the navigation layer is
// treated as the site pushing back.
func classifyFailure(err error) (models.CompetitorStatus, string) {
	var navErr *browser.NavError
	if errors.As(err, &navErr) && navErr.Kind == browser.FailureTimeout {
		return models.CompetitorFailed, models.ReasonTimeout
	}
	return models.CompetitorBlocked, models.ReasonBotProtection
}

func (s *Service) extractPrice(ctx context.Context, page browser.Page, rawURL string, fxRates map[string]float64) (models.CompetitorResult, error) {
	err := page.Navigate(ctx, rawURL, s.cfg.PageTimeout)
	if err != nil {
		return models.CompetitorResult{}, err
	}
	hostname := hostnameOf(page.CurrentURL())
	cfg, known := s.domains.Lookup(hostname)

	s.dismissConsent(ctx, page, cfg)

	if known && cfg.WaitSelector != "" {
		err := page.WaitForSelector(ctx, cfg.WaitSelector, s.cfg.PageTimeout/2)
		if err != nil {
			// the selector not appearing is not fatal, the price may
			// still be in the initial document
			slog.WarnContext(ctx, "wait selector did not appear",
				"hostname", hostname,
				"selector", cfg.WaitSelector)
		}
	}

	selectors := genericPriceSelectors
	if known && len(cfg.PriceSelectors) > 0 {
		selectors = cfg.PriceSelectors
	}
	var rawText string
	for _, selector := range selectors {
		el := page.QuerySelector(selector)
		if el == nil {
			continue
		}
		// machine-readable metadata beats rendered text
		rawText = el.GetAttribute("content")
		if rawText == "" {
			rawText = el.InnerText()
		}
		if rawText != "" {
			break
		}
	}
	if rawText == "" {
		rawText = page.Text()
	}

	amount, currency := priceparse.Extract(rawText)
	normalized := priceparse.NormalizeToUSD(amount, currency, fxRates)

	result := models.CompetitorResult{
		Hostname:  hostname,
		URL:       page.CurrentURL(),
		ScrapedAt: time.Now().UTC(),
	}
	if rawText != "" {
		result.RawPriceText = &rawText
	}
	if currency != "" {
		result.Currency = &currency
	}
	if normalized != nil {
		result.ParsedPriceUSD = normalized
		result.Status = models.CompetitorSucceeded
	} else {
		reason := models.ReasonNoPriceFound
		result.Status = models.CompetitorFailed
		result.ErrorReason = &reason
	}
	return result, nil
}

// dismissConsent clicks the first matching consent button, if any.
// Cookie banners are best-effort: a click that errors out just moves on
// to the next candidate.
func (s *Service) dismissConsent(ctx context.Context, page browser.Page, cfg domains.Config) {
	selectors := append(append([]string{}, cfg.ConsentSelectors...), genericConsentSelectors...)
	for _, selector := range selectors {
		el := page.QuerySelector(selector)
		if el == nil {
			continue
		}
		if err := el.Click(ctx); err != nil {
			continue
		}
		// give the banner a moment to animate out
		page.Wait(ctx, consentSettleDelay)
		slog.DebugContext(ctx, "dismissed consent banner", "selector", selector)
		return
	}
}

func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
