package scrapeworker

import (
	"context"
	"errors"
	"time"

	"pricewatch-backend/lib/browser"
)

// fakeElement is a scripted element for pipeline tests.
type fakeElement struct {
	text     string
	attrs    map[string]string
	clickErr error
	clicks   int
}

func (e *fakeElement) InnerText() string { return e.text }

func (e *fakeElement) GetAttribute(name string) string { return e.attrs[name] }

func (e *fakeElement) Click(ctx context.Context) error {
	e.clicks++
	return e.clickErr
}

// fixture describes what the fake page serves for one requested URL.
type fixture struct {
	navErr   error
	finalURL string
	elements map[string]*fakeElement
	text     string
}

type fakePage struct {
	fixtures   map[string]fixture
	current    fixture
	currentURL string
	visited    []string
	closed     bool
}

func (p *fakePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.visited = append(p.visited, url)
	f, ok := p.fixtures[url]
	if !ok {
		return &browser.NavError{URL: url, Kind: browser.FailureBlocked, Err: errors.New("no fixture")}
	}
	if f.navErr != nil {
		return f.navErr
	}
	p.current = f
	p.currentURL = url
	if f.finalURL != "" {
		p.currentURL = f.finalURL
	}
	return nil
}

func (p *fakePage) CurrentURL() string { return p.currentURL }

func (p *fakePage) QuerySelector(selector string) browser.Element {
	el, ok := p.current.elements[selector]
	if !ok {
		return nil
	}
	return el
}

func (p *fakePage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if _, ok := p.current.elements[selector]; ok {
		return nil
	}
	return &browser.NavError{
		URL:  p.currentURL,
		Kind: browser.FailureTimeout,
		Err:  context.DeadlineExceeded,
	}
}

func (p *fakePage) Text() string { return p.current.text }

func (p *fakePage) Wait(ctx context.Context, d time.Duration) {}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeBrowser struct {
	page       *fakePage
	newPageErr error
	opened     int
}

func (b *fakeBrowser) NewPage(ctx context.Context) (browser.Page, error) {
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	b.opened++
	return b.page, nil
}

func (b *fakeBrowser) Close() error { return nil }
