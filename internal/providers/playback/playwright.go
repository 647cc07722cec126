package playback

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/providers/scraper"
)

// PlaywrightOptions configures the browser engine.
type PlaywrightOptions struct {
	Headless bool
	// Timeout bounds every single browser operation.
	Timeout time.Duration
	// Install downloads the driver and Chromium before the first launch.
	Install bool
}

// Playwright drives a shared Chromium; every run gets its own browser context.
type Playwright struct {
	opts PlaywrightOptions
	log  *zap.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

// NewPlaywright creates the engine. The browser starts on first use.
func NewPlaywright(opts PlaywrightOptions, log *zap.Logger) *Playwright {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Playwright{opts: opts, log: log}
}

func (e *Playwright) Name() string { return "playwright" }

// Open creates an isolated browser context with one page. Canceling ctx
// closes the context, which aborts the operation in flight.
func (e *Playwright) Open(ctx context.Context) (Page, error) {
	browser, err := e.ensureBrowser()
	if err != nil {
		return nil, err
	}

	bc, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1280, Height: 800},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	bc.SetDefaultTimeout(float64(e.opts.Timeout.Milliseconds()))

	page, err := bc.NewPage()
	if err != nil {
		_ = bc.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = bc.Close() })
	return &browserPage{page: page, bc: bc, stop: stop}, nil
}

func (e *Playwright) ensureBrowser() (playwright.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil && e.browser.IsConnected() {
		return e.browser, nil
	}

	if e.pw == nil {
		runOpts := &playwright.RunOptions{
			Browsers: []string{"chromium"},
			Stdout:   io.Discard,
			Stderr:   io.Discard,
		}
		if e.opts.Install {
			if err := playwright.Install(runOpts); err != nil {
				return nil, fmt.Errorf("failed to install playwright: %w", err)
			}
		}
		pw, err := playwright.Run(runOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to start playwright: %w", err)
		}
		e.pw = pw
	}

	browser, err := e.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(e.opts.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	e.browser = browser
	e.log.Info("Browser launched", zap.Bool("headless", e.opts.Headless))
	return browser, nil
}

// Close shuts down the browser and the driver.
func (e *Playwright) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			e.log.Warn("Failed to close browser", zap.Error(err))
		}
		e.browser = nil
	}
	if e.pw != nil {
		err := e.pw.Stop()
		e.pw = nil
		if err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
	}
	return nil
}

type browserPage struct {
	page playwright.Page
	bc   playwright.BrowserContext
	stop func() bool
}

func (p *browserPage) Goto(_ context.Context, url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return err
}

func (p *browserPage) URL() string { return p.page.URL() }

func (p *browserPage) Title() (string, error) { return p.page.Title() }

func (p *browserPage) Click(selector string) error { return p.page.Click(selector) }

func (p *browserPage) Fill(selector, value string) error { return p.page.Fill(selector, value) }

func (p *browserPage) Press(selector, key string) error { return p.page.Press(selector, key) }

func (p *browserPage) Hover(selector string) error { return p.page.Hover(selector) }

func (p *browserPage) WaitFor(_ context.Context, selector string) error {
	_, err := p.page.WaitForSelector(selector)
	return err
}

// Extract reads inner text without waiting, so a missing element yields no values.
func (p *browserPage) Extract(selector string, all bool) ([]string, error) {
	raw, err := p.page.Locator(selector).AllInnerTexts()
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(raw))
	for _, t := range raw {
		if t = scraper.NormalizeWhitespace(t); t != "" {
			texts = append(texts, t)
		}
		if !all && len(texts) == 1 {
			break
		}
	}
	return texts, nil
}

func (p *browserPage) Screenshot(fullPage bool) ([]byte, error) {
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
	})
}

func (p *browserPage) Scroll(dx, dy float64) error {
	return p.page.Mouse().Wheel(dx, dy)
}

func (p *browserPage) Close() error {
	p.stop()
	return p.bc.Close()
}
