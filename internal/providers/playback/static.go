package playback

import (
	"context"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/Orbit/backend/internal/domain/automation"
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/fetch"
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/scraper"
)

var errNoPage = errors.New("no page loaded")

// Static plays actions against fetched HTML without a browser.
type Static struct {
	client *fetch.Client
}

// NewStatic creates the static engine.
func NewStatic(client *fetch.Client) *Static {
	return &Static{client: client}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Open(context.Context) (Page, error) {
	return &staticPage{client: s.client}, nil
}

// staticPage holds the last fetched document and the navigation history.
type staticPage struct {
	client  *fetch.Client
	url     string
	html    string
	history []string
}

func (p *staticPage) Goto(ctx context.Context, url string) error {
	page, err := p.client.Fetch(ctx, url)
	if err != nil {
		return err
	}
	p.url = page.URL
	p.html = page.HTML
	p.history = append(p.history, page.URL)
	return nil
}

func (p *staticPage) URL() string { return p.url }

func (p *staticPage) Title() (string, error) {
	texts, err := p.Extract("title", false)
	if err != nil || len(texts) == 0 {
		return "", err
	}
	return texts[0], nil
}

func (p *staticPage) Extract(selector string, all bool) ([]string, error) {
	if p.url == "" {
		return nil, errNoPage
	}
	return scraper.Query(p.html, selector, all)
}

// WaitFor succeeds when the selector already matches; a static document never changes.
func (p *staticPage) WaitFor(_ context.Context, selector string) error {
	texts, err := p.Extract(selector, false)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("selector %q matched nothing", selector)
	}
	return nil
}

func (p *staticPage) Click(string) error              { return unsupported("click") }
func (p *staticPage) Fill(string, string) error       { return unsupported("fill") }
func (p *staticPage) Press(string, string) error      { return unsupported("press") }
func (p *staticPage) Hover(string) error              { return unsupported("hover") }
func (p *staticPage) Screenshot(bool) ([]byte, error) { return nil, unsupported("screenshot") }
func (p *staticPage) Scroll(float64, float64) error   { return unsupported("scroll") }
func (p *staticPage) Close() error                    { return nil }

func unsupported(action string) error {
	return fmt.Errorf("%w: %s needs the playwright engine", automation.ErrUnsupportedAction, action)
}
