package playback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/Orbit/backend/internal/domain/automation"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/fetch"
)

// fakePage records calls and serves canned extraction results.
type fakePage struct {
	mu       sync.Mutex
	calls    []string
	url      string
	texts    map[string][]string
	failOn   string
	closed   bool
	scrolled [2]float64
}

func (p *fakePage) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	if p.failOn != "" && strings.HasPrefix(call, p.failOn) {
		return errors.New("element not found")
	}
	return nil
}

func (p *fakePage) Goto(_ context.Context, url string) error {
	if err := p.record("goto " + url); err != nil {
		return err
	}
	p.url = url
	return nil
}
func (p *fakePage) URL() string                               { return p.url }
func (p *fakePage) Title() (string, error)                    { return "Fake", nil }
func (p *fakePage) Click(s string) error                      { return p.record("click " + s) }
func (p *fakePage) Fill(s, v string) error                    { return p.record("fill " + s + "=" + v) }
func (p *fakePage) Press(s, k string) error                   { return p.record("press " + s + " " + k) }
func (p *fakePage) Hover(s string) error                      { return p.record("hover " + s) }
func (p *fakePage) WaitFor(_ context.Context, s string) error { return p.record("wait " + s) }
func (p *fakePage) Extract(s string, all bool) ([]string, error) {
	if err := p.record("extract " + s); err != nil {
		return nil, err
	}
	texts := p.texts[s]
	if !all && len(texts) > 1 {
		texts = texts[:1]
	}
	return texts, nil
}
func (p *fakePage) Screenshot(bool) ([]byte, error) { return []byte("png"), p.record("screenshot") }
func (p *fakePage) Scroll(dx, dy float64) error {
	p.scrolled = [2]float64{dx, dy}
	return p.record("scroll")
}
func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeEngine struct {
	page    *fakePage
	openErr error
	opened  int
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Open(context.Context) (Page, error) {
	e.opened++
	if e.openErr != nil {
		return nil, e.openErr
	}
	return e.page, nil
}

func newFakeRunner(page *fakePage) (*Runner, *fakeEngine) {
	eng := &fakeEngine{page: page}
	r := NewRunner(eng, Options{}, nil)
	r.sleep = func(context.Context, time.Duration) error { return nil }
	return r, eng
}

func TestRunPlaysActionsInOrder(t *testing.T) {
	page := &fakePage{texts: map[string][]string{
		"h1":    {"Welcome"},
		".item": {"one", "two", "three"},
	}}
	r, _ := newFakeRunner(page)

	res, err := r.Run(context.Background(), automation.RunRequest{
		URL: "https://shop.test",
		Actions: []automation.Action{
			{Type: automation.ActionNavigate},
			{Type: automation.ActionFill, Selector: "#q", Value: "shoes"},
			{Type: automation.ActionPress, Value: "Enter"},
			{Type: automation.ActionWait, Selector: ".results", WaitMS: 10},
			{Type: automation.ActionExtract, Selector: "h1", Params: map[string]interface{}{"key": "heading"}},
			{Type: automation.ActionExtract, Selector: ".item", Params: map[string]interface{}{"key": "items", "all": true}},
			{Type: automation.ActionExtract, Selector: ".none"},
			{Type: automation.ActionScreenshot},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"goto https://shop.test",
		"fill #q=shoes",
		"press body Enter",
		"wait .results",
		"extract h1",
		"extract .item",
		"extract .none",
		"screenshot",
	}, page.calls)
	assert.Equal(t, "https://shop.test", res.FinalURL)
	assert.Equal(t, "Fake", res.Title)
	assert.Equal(t, "Welcome", res.Extracted["heading"])
	assert.Equal(t, []string{"one", "two", "three"}, res.Extracted["items"])
	assert.Contains(t, res.Extracted, "extract_7")
	assert.Nil(t, res.Extracted["extract_7"])
	assert.Equal(t, []string{"cG5n"}, res.Screenshots)
	assert.True(t, page.closed)
}

func TestRunNavigatesWhenFirstActionIsNot(t *testing.T) {
	page := &fakePage{texts: map[string][]string{"title": {"T"}}}
	r, _ := newFakeRunner(page)

	_, err := r.Run(context.Background(), automation.RunRequest{
		URL:     "https://a.test",
		Actions: []automation.Action{{Type: automation.ActionExtract, Selector: "title"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"goto https://a.test", "extract title"}, page.calls)
}

func TestRunAbortsOnFirstFailure(t *testing.T) {
	page := &fakePage{failOn: "click"}
	r, _ := newFakeRunner(page)

	_, err := r.Run(context.Background(), automation.RunRequest{
		URL: "https://a.test",
		Actions: []automation.Action{
			{Type: automation.ActionNavigate},
			{Type: automation.ActionClick, Selector: "#go"},
			{Type: automation.ActionHover, Selector: "#menu"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, "action 2 (click): element not found", err.Error())
	assert.NotContains(t, page.calls, "hover #menu")
	assert.True(t, page.closed)
	assert.Equal(t, resilience.StateClosed, r.Breaker().State())
}

func TestRunScrollDefaults(t *testing.T) {
	page := &fakePage{}
	r, _ := newFakeRunner(page)

	_, err := r.Run(context.Background(), automation.RunRequest{
		Actions: []automation.Action{{Type: automation.ActionScroll}},
	})
	require.NoError(t, err)
	assert.Equal(t, [2]float64{0, DefaultScroll}, page.scrolled)

	_, err = r.Run(context.Background(), automation.RunRequest{
		Actions: []automation.Action{{Type: automation.ActionScroll, Params: map[string]interface{}{"y": uint64(300)}}},
	})
	require.NoError(t, err)
	assert.Equal(t, [2]float64{0, 300}, page.scrolled)
}

func TestRunHonorsCanceledContext(t *testing.T) {
	page := &fakePage{}
	r, _ := newFakeRunner(page)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, automation.RunRequest{
		Actions: []automation.Action{{Type: automation.ActionClick, Selector: "a"}},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, page.calls)
}

func TestEngineFailuresTripBreaker(t *testing.T) {
	r, eng := newFakeRunner(nil)
	eng.openErr = errors.New("browser crashed")

	for i := 0; i < 5; i++ {
		_, err := r.Run(context.Background(), automation.RunRequest{})
		require.ErrorIs(t, err, ErrEngine)
	}
	assert.Equal(t, resilience.StateOpen, r.Breaker().State())

	_, err := r.Run(context.Background(), automation.RunRequest{})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 5, eng.opened)
}

func TestSleepCtx(t *testing.T) {
	require.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}

func newStaticRunner(t *testing.T) (*Runner, string) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Store</title></head><body>
<main><h1>Deals</h1><ul><li class="p">Lamp</li><li class="p">Desk</li></ul></main>
</body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := fetch.NewClient(fetch.Options{Timeout: 5 * time.Second})
	return NewRunner(NewStatic(client), Options{}, nil), srv.URL + "/"
}

func TestStaticEngineExtracts(t *testing.T) {
	r, url := newStaticRunner(t)

	res, err := r.Run(context.Background(), automation.RunRequest{
		URL: url,
		Actions: []automation.Action{
			{Type: automation.ActionNavigate},
			{Type: automation.ActionWait, Selector: "h1"},
			{Type: automation.ActionExtract, Selector: "li.p", Params: map[string]interface{}{"key": "products", "all": true}},
			{Type: automation.ActionExtract, Selector: "xpath=//h1", Params: map[string]interface{}{"key": "heading"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Store", res.Title)
	assert.Equal(t, url, res.FinalURL)
	assert.Equal(t, []string{"Lamp", "Desk"}, res.Extracted["products"])
	assert.Equal(t, "Deals", res.Extracted["heading"])
	assert.Equal(t, "static", r.Engine())
}

func TestStaticEngineRejectsInteraction(t *testing.T) {
	r, url := newStaticRunner(t)

	for _, a := range []automation.Action{
		{Type: automation.ActionClick, Selector: "h1"},
		{Type: automation.ActionFill, Selector: "input", Value: "x"},
		{Type: automation.ActionScreenshot},
	} {
		_, err := r.Run(context.Background(), automation.RunRequest{URL: url, Actions: []automation.Action{a}})
		assert.ErrorIs(t, err, automation.ErrUnsupportedAction, a.Type)
	}
	assert.Equal(t, resilience.StateClosed, r.Breaker().State())
}

func TestStaticWaitForMissingSelector(t *testing.T) {
	r, url := newStaticRunner(t)

	_, err := r.Run(context.Background(), automation.RunRequest{
		URL:     url,
		Actions: []automation.Action{{Type: automation.ActionWait, Selector: "#never"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `selector "#never" matched nothing`)
}

func TestStaticExtractBeforeNavigate(t *testing.T) {
	r, _ := newStaticRunner(t)

	_, err := r.Run(context.Background(), automation.RunRequest{
		Actions: []automation.Action{{Type: automation.ActionExtract, Selector: "h1"}},
	})
	assert.ErrorIs(t, err, errNoPage)
}
