package playback

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/domain/automation"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/resilience"
)

// ErrEngine marks failures of the engine itself rather than of a step.
var ErrEngine = errors.New("playback engine failure")

// Page is the surface an action sequence drives.
type Page interface {
	Goto(ctx context.Context, url string) error
	URL() string
	Title() (string, error)
	Click(selector string) error
	Fill(selector, value string) error
	Press(selector, key string) error
	Hover(selector string) error
	WaitFor(ctx context.Context, selector string) error
	Extract(selector string, all bool) ([]string, error)
	Screenshot(fullPage bool) ([]byte, error)
	Scroll(dx, dy float64) error
	Close() error
}

// Engine opens a fresh page for every run.
type Engine interface {
	Name() string
	Open(ctx context.Context) (Page, error)
}

// Options configures a Runner.
type Options struct {
	OnBreakerChange func(name string, from, to resilience.State)
}

// DefaultScroll is the vertical scroll distance when none is given.
const DefaultScroll = 800

// Runner implements automation.Runner on top of an Engine.
type Runner struct {
	engine  Engine
	breaker *resilience.Breaker
	log     *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRunner wraps engine behind a circuit breaker that only counts engine failures.
func NewRunner(engine Engine, opts Options, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		engine: engine,
		breaker: resilience.New("playback-"+engine.Name(), resilience.Settings{
			IsSuccessful: func(err error) bool {
				return !errors.Is(err, ErrEngine)
			},
			OnStateChange: opts.OnBreakerChange,
		}),
		log:   log.With(zap.String("engine", engine.Name())),
		sleep: sleepCtx,
	}
}

// Engine returns the engine name.
func (r *Runner) Engine() string { return r.engine.Name() }

// Breaker exposes the runner's breaker.
func (r *Runner) Breaker() *resilience.Breaker { return r.breaker }

// Close releases the engine when it holds resources.
func (r *Runner) Close() error {
	if c, ok := r.engine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Run opens a page, plays req.Actions in order and collects the result.
// The first failing action aborts the run.
func (r *Runner) Run(ctx context.Context, req automation.RunRequest) (*automation.RunResult, error) {
	res, err := resilience.Call(r.breaker, func() (*automation.RunResult, error) {
		return r.run(ctx, req)
	})
	if resilience.IsRejection(err) {
		return nil, fmt.Errorf("%s engine unavailable: %w", r.engine.Name(), err)
	}
	return res, err
}

func (r *Runner) run(ctx context.Context, req automation.RunRequest) (*automation.RunResult, error) {
	pg, err := r.engine.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngine, err)
	}
	defer func() {
		if err := pg.Close(); err != nil {
			r.log.Debug("Failed to close page", zap.Error(err))
		}
	}()

	res := &automation.RunResult{
		Extracted:   map[string]interface{}{},
		Screenshots: []string{},
	}

	actions := req.Actions
	if req.URL != "" && (len(actions) == 0 || actions[0].Type != automation.ActionNavigate) {
		if err := pg.Goto(ctx, req.URL); err != nil {
			return nil, fmt.Errorf("open %s: %w", req.URL, err)
		}
	}

	for i, a := range actions {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("action %d (%s): %w", i+1, a.Type, err)
		}
		if err := r.step(ctx, pg, req.URL, i, a, res); err != nil {
			return nil, fmt.Errorf("action %d (%s): %w", i+1, a.Type, err)
		}
	}

	res.FinalURL = pg.URL()
	if title, err := pg.Title(); err == nil {
		res.Title = title
	}
	return res, nil
}

func (r *Runner) step(ctx context.Context, pg Page, target string, i int, a automation.Action, res *automation.RunResult) error {
	switch a.Type {
	case automation.ActionNavigate:
		url := a.Value
		if url == "" {
			url = target
		}
		if url == "" {
			return errors.New("no url to navigate to")
		}
		return pg.Goto(ctx, url)

	case automation.ActionClick:
		return pg.Click(a.Selector)

	case automation.ActionFill:
		return pg.Fill(a.Selector, a.Value)

	case automation.ActionPress:
		sel := a.Selector
		if sel == "" {
			sel = "body"
		}
		return pg.Press(sel, a.Value)

	case automation.ActionHover:
		return pg.Hover(a.Selector)

	case automation.ActionWait:
		if a.Selector != "" {
			if err := pg.WaitFor(ctx, a.Selector); err != nil {
				return err
			}
		}
		if a.WaitMS > 0 {
			return r.sleep(ctx, time.Duration(a.WaitMS)*time.Millisecond)
		}
		return nil

	case automation.ActionExtract:
		sel := a.Selector
		if sel == "" {
			sel = "body"
		}
		all := paramBool(a.Params, "all")
		texts, err := pg.Extract(sel, all)
		if err != nil {
			return err
		}
		key := paramString(a.Params, "key")
		if key == "" {
			key = fmt.Sprintf("extract_%d", i+1)
		}
		if all {
			res.Extracted[key] = texts
		} else if len(texts) > 0 {
			res.Extracted[key] = texts[0]
		} else {
			res.Extracted[key] = nil
		}
		return nil

	case automation.ActionScreenshot:
		shot, err := pg.Screenshot(paramBool(a.Params, "full_page"))
		if err != nil {
			return err
		}
		res.Screenshots = append(res.Screenshots, base64.StdEncoding.EncodeToString(shot))
		return nil

	case automation.ActionScroll:
		dx, _ := paramFloat(a.Params, "x")
		dy, ok := paramFloat(a.Params, "y")
		if !ok && dx == 0 {
			dy = DefaultScroll
		}
		return pg.Scroll(dx, dy)
	}
	return fmt.Errorf("%w: %s", automation.ErrUnsupportedAction, a.Type)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func paramBool(p map[string]interface{}, key string) bool {
	v, _ := p[key].(bool)
	return v
}

func paramString(p map[string]interface{}, key string) string {
	v, _ := p[key].(string)
	return v
}

// paramFloat accepts any numeric type the JSON, YAML and TOML decoders produce.
func paramFloat(p map[string]interface{}, key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}
