package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http/cookiejar"
	"net/url"
	"time"

	"pricewatch-backend/lib/htmlutil"
	"pricewatch-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	fakeua "github.com/EDDYCJY/fake-useragent"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// how long the selector poll sleeps between re-fetches
const waitPollInterval = 500 * time.Millisecond

// timeout for navigations triggered indirectly through Click
const clickTimeout = 10 * time.Second

type FetchOptions struct {
	// UserAgent overrides the request user agent; when empty a
	// randomized desktop agent is used.
	UserAgent string
}

// FetchBrowser implements Browser over plain HTTP fetches: a page is a
// parsed HTML document, selectors run against the static markup. No
// scripts execute, so consent clicks and waits degrade to best-effort
// approximations, which is all the pipeline requires of them.
type FetchBrowser struct {
	client *resty.Client
}

func NewFetchBrowser(opts FetchOptions) (*FetchBrowser, error) {
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = fakeua.Chrome()
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", userAgent)
	client.SetHeader("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetHeader("accept-language", "en-US,en;q=0.9")

	telemetry.InstrumentResty(client, "lib/browser")

	return &FetchBrowser{client: client}, nil
}

func (b *FetchBrowser) NewPage(ctx context.Context) (Page, error) {
	return &fetchPage{client: b.client}, nil
}

func (b *FetchBrowser) Close() error {
	return nil
}

type fetchPage struct {
	client     *resty.Client
	doc        *goquery.Document
	currentURL string
}

func (p *fetchPage) Navigate(ctx context.Context, pageURL string, timeout time.Duration) error {
	navCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := p.client.R().SetContext(navCtx).Get(pageURL)
	if err != nil {
		return classifyNavError(pageURL, err)
	}

	status := res.StatusCode()
	if status >= 400 {
		return &NavError{
			URL:  pageURL,
			Kind: FailureBlocked,
			Err:  fmt.Errorf("http status %d", status),
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return &NavError{URL: pageURL, Kind: FailureBlocked, Err: err}
	}

	finalURL := pageURL
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		finalURL = res.RawResponse.Request.URL.String()
	}

	p.doc = doc
	p.currentURL = finalURL
	return nil
}

func classifyNavError(pageURL string, err error) *NavError {
	kind := FailureBlocked
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		kind = FailureTimeout
	}
	return &NavError{URL: pageURL, Kind: kind, Err: err}
}

func (p *fetchPage) CurrentURL() string {
	return p.currentURL
}

func (p *fetchPage) QuerySelector(selector string) Element {
	if p.doc == nil {
		return nil
	}
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	return &fetchElement{page: p, sel: sel}
}

// WaitForSelector approximates a DOM wait by re-fetching the current
// URL until the selector matches or the deadline passes. Slow-rendering
// server-side pages sometimes need a second fetch; client-rendered
// content will never appear to this engine, which the caller treats as
// a soft failure.
func (p *fetchPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if p.QuerySelector(selector) != nil {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &NavError{
				URL:  p.currentURL,
				Kind: FailureTimeout,
				Err:  fmt.Errorf("selector %q did not appear within %s", selector, timeout),
			}
		}

		p.Wait(ctx, min(waitPollInterval, remaining))
		if ctx.Err() != nil {
			return &NavError{URL: p.currentURL, Kind: FailureTimeout, Err: ctx.Err()}
		}
		if p.currentURL != "" {
			// ignore refresh errors here, the page we already have
			// keeps being queried until the deadline
			_ = p.Navigate(ctx, p.currentURL, time.Until(deadline))
		}
	}
}

func (p *fetchPage) Text() string {
	if p.doc == nil {
		return ""
	}
	body := p.doc.Find("body")
	if body.Length() > 0 {
		return htmlutil.CleanText(body.Text())
	}
	return htmlutil.CleanText(p.doc.Text())
}

func (p *fetchPage) Wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (p *fetchPage) Close() error {
	p.doc = nil
	p.currentURL = ""
	return nil
}

type fetchElement struct {
	page *fetchPage
	sel  *goquery.Selection
}

func (e *fetchElement) InnerText() string {
	if len(e.sel.Nodes) == 0 {
		return ""
	}
	return htmlutil.CleanText(htmlutil.GetText(e.sel.Nodes[0]))
}

func (e *fetchElement) GetAttribute(name string) string {
	return e.sel.AttrOr(name, "")
}

// Click follows the element's link when it has one. Consent buttons on
// static markup have nothing to execute, so everything else is a no-op.
func (e *fetchElement) Click(ctx context.Context) error {
	href := e.sel.AttrOr("href", "")
	if href == "" {
		return nil
	}

	target, err := e.resolveHref(href)
	if err != nil {
		return nil
	}
	return e.page.Navigate(ctx, target, clickTimeout)
}

func (e *fetchElement) resolveHref(href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if e.page.currentURL == "" {
		return ref.String(), nil
	}
	base, err := url.Parse(e.page.currentURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
