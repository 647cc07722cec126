package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/Orbit/backend/internal/docstore"
	"github.com/GriffinCanCode/Orbit/backend/internal/docstore/memstore"
	"github.com/GriffinCanCode/Orbit/backend/internal/shared/utils"
)

// scriptedRunner returns queued outcomes in order, then succeeds.
type scriptedRunner struct {
	mu       sync.Mutex
	outcomes []error
	requests []RunRequest
	clock    *clock
	step     time.Duration
}

func (r *scriptedRunner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.clock != nil {
		r.clock.Advance(r.step)
	}
	if len(r.outcomes) > 0 {
		err := r.outcomes[0]
		r.outcomes = r.outcomes[1:]
		if err != nil {
			return nil, err
		}
	}
	return &RunResult{FinalURL: req.URL, Title: "Example", Extracted: map[string]interface{}{"title": "Example"}}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
	users  []string
}

func (l *eventLog) Publish(userID string, ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users = append(l.users, userID)
	l.events = append(l.events, ev)
}

func (l *eventLog) statuses() []Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Status, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Execution.Status
	}
	return out
}

type fixture struct {
	mgr    *Manager
	runner *scriptedRunner
	clock  *clock
	events *eventLog
	store  docstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	f := &fixture{
		runner: &scriptedRunner{clock: c, step: 40 * time.Millisecond},
		clock:  c,
		events: &eventLog{},
		store:  memstore.New(),
	}
	f.mgr = NewManager(f.store, f.runner, Options{Notifier: f.events, Now: c.Now}, nil)
	return f
}

func sampleInput() WorkflowInput {
	return WorkflowInput{
		Name:      "Check pricing",
		TargetURL: "https://shop.test/pricing",
		Actions: []Action{
			{Type: ActionNavigate},
			{Type: ActionClick, Selector: "#plans"},
			{Type: ActionExtract, Selector: ".price", Params: map[string]interface{}{"key": "price"}},
		},
	}
}

func TestCreateWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wf, err := f.mgr.CreateWorkflow(ctx, "usr_a", sampleInput())
	require.NoError(t, err)
	assert.Regexp(t, `^wf_`, wf.ID)
	assert.Zero(t, wf.ExecutionCount)
	assert.Zero(t, wf.SuccessRate)
	assert.True(t, wf.IsActive)

	got, err := f.mgr.GetWorkflow(ctx, wf.ID, "usr_a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, wf.Actions, got.Actions)

	foreign, err := f.mgr.GetWorkflow(ctx, wf.ID, "usr_b")
	require.NoError(t, err)
	assert.Nil(t, foreign)
}

func TestCreateWorkflowValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		edit  func(*WorkflowInput)
		field string
	}{
		{"no name", func(in *WorkflowInput) { in.Name = "" }, "name"},
		{"no url", func(in *WorkflowInput) { in.TargetURL = "" }, "target_url"},
		{"no actions", func(in *WorkflowInput) { in.Actions = nil }, "actions"},
		{"unknown type", func(in *WorkflowInput) { in.Actions[1].Type = "teleport" }, "actions[1].type"},
		{"click without selector", func(in *WorkflowInput) { in.Actions[1].Selector = "" }, "actions[1].selector"},
		{"negative wait", func(in *WorkflowInput) { in.Actions[0] = Action{Type: ActionWait, WaitMS: -1} }, "actions[0].wait_ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sampleInput()
			tt.edit(&in)
			_, err := f.mgr.CreateWorkflow(context.Background(), "usr_a", in)
			var ve *utils.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestListWorkflowsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.mgr.CreateWorkflow(ctx, "usr_a", sampleInput())
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	second, err := f.mgr.CreateWorkflow(ctx, "usr_a", sampleInput())
	require.NoError(t, err)
	_, err = f.mgr.CreateWorkflow(ctx, "usr_b", sampleInput())
	require.NoError(t, err)

	list, err := f.mgr.ListWorkflows(ctx, "usr_a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	f.clock.Advance(time.Minute)
	deleted, err := f.mgr.DeleteWorkflow(ctx, second.ID, "usr_a")
	require.NoError(t, err)
	assert.True(t, deleted)

	raw, err := docstore.Get[Workflow](ctx, f.store.Collection(WorkflowsCollection), docstore.Filter{"id": second.ID})
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.False(t, raw.IsActive)
	assert.True(t, raw.UpdatedAt.Equal(f.clock.Now()))

	list, err = f.mgr.ListWorkflows(ctx, "usr_a")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestExecuteWorkflowSuccessRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wf, err := f.mgr.CreateWorkflow(ctx, "usr_a", sampleInput())
	require.NoError(t, err)

	f.runner.outcomes = []error{nil, errors.New("selector #plans not found")}

	ok, err := f.mgr.ExecuteWorkflow(ctx, wf.ID, "usr_a", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, ok.Status)
	assert.Equal(t, "Example", ok.Result["title"])
	require.NotNil(t, ok.DurationMS)
	assert.Equal(t, int64(40), *ok.DurationMS)

	failed, err := f.mgr.ExecuteWorkflow(ctx, wf.ID, "usr_a", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "#plans")
	assert.NotNil(t, failed.CompletedAt)

	got, err := f.mgr.GetWorkflow(ctx, wf.ID, "usr_a")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ExecutionCount)
	assert.Equal(t, 1, got.SuccessfulRuns)
	assert.InDelta(t, 0.5, got.SuccessRate, 1e-9)

	require.Len(t, f.runner.requests, 2)
	assert.Equal(t, wf.TargetURL, f.runner.requests[0].URL)
	assert.Len(t, f.runner.requests[0].Actions, 3)
}

func TestExecutionEventsFollowStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wf, err := f.mgr.CreateWorkflow(ctx, "usr_a", sampleInput())
	require.NoError(t, err)

	_, err = f.mgr.ExecuteWorkflow(ctx, wf.ID, "usr_a", nil)
	require.NoError(t, err)

	assert.Equal(t, []Status{StatusPending, StatusRunning, StatusCompleted}, f.events.statuses())
	assert.Equal(t, []string{"usr_a", "usr_a", "usr_a"}, f.events.users)
}

func TestTerminalExecutionIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	exec, err := f.mgr.ExecuteCommand(ctx, "usr_a", CommandInput{URL: "https://a.test", Action: Action{Type: ActionScreenshot}})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, exec.Status)

	err = f.mgr.transition(ctx, exec, StatusRunning, docstore.NewMutation())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// A stale in-memory copy cannot overwrite the stored terminal state
	stale := *exec
	stale.Status = StatusRunning
	err = f.mgr.transition(ctx, &stale, StatusFailed, docstore.NewMutation().Set("error", "late"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := f.mgr.GetExecution(ctx, exec.ID, "usr_a")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Empty(t, got.Error)
}

func TestExecuteWorkflowNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wf, err := f.mgr.CreateWorkflow(ctx, "usr_a", sampleInput())
	require.NoError(t, err)

	_, err = f.mgr.ExecuteWorkflow(ctx, "wf_missing", "usr_a", nil)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	_, err = f.mgr.ExecuteWorkflow(ctx, wf.ID, "usr_b", nil)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	_, err = f.mgr.DeleteWorkflow(ctx, wf.ID, "usr_a")
	require.NoError(t, err)
	_, err = f.mgr.ExecuteWorkflow(ctx, wf.ID, "usr_a", nil)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
	assert.Empty(t, f.runner.requests)
}

func TestExecuteCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mgr.ExecuteCommand(ctx, "usr_a", CommandInput{URL: "https://a.test", Action: Action{Type: ActionFill}})
	assert.True(t, utils.IsValidationError(err))

	exec, err := f.mgr.ExecuteCommand(ctx, "usr_a", CommandInput{URL: "https://a.test", Action: Action{Type: ActionExtract, Selector: "h1"}})
	require.NoError(t, err)
	assert.Equal(t, KindCommand, exec.Kind)
	assert.Empty(t, exec.WorkflowID)

	list, err := f.mgr.ListExecutions(ctx, "usr_a", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, exec.ID, list[0].ID)

	other, err := f.mgr.ListExecutions(ctx, "usr_b", "")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestListExecutionsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wf, err := f.mgr.CreateWorkflow(ctx, "usr_a", sampleInput())
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 3; i++ {
		exec, err := f.mgr.ExecuteWorkflow(ctx, wf.ID, "usr_a", nil)
		require.NoError(t, err)
		ids = append(ids, exec.ID)
	}
	_, err = f.mgr.ExecuteCommand(ctx, "usr_a", CommandInput{URL: "https://a.test", Action: Action{Type: ActionNavigate}})
	require.NoError(t, err)

	list, err := f.mgr.ListExecutions(ctx, "usr_a", wf.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[0], list[2].ID)
}

func TestWorkflowStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wf, err := f.mgr.CreateWorkflow(ctx, "usr_a", sampleInput())
	require.NoError(t, err)

	f.runner.outcomes = []error{nil, nil, errors.New("boom")}
	for i := 0; i < 3; i++ {
		_, err := f.mgr.ExecuteWorkflow(ctx, wf.ID, "usr_a", nil)
		require.NoError(t, err)
	}

	stats, err := f.mgr.WorkflowStats(ctx, wf.ID, "usr_a")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ExecutionCount)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 1e-9)
	assert.InDelta(t, 40, stats.MeanMS, 1e-9)
	assert.InDelta(t, 0, stats.StdDevMS, 1e-9)

	_, err = f.mgr.WorkflowStats(ctx, wf.ID, "usr_b")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestSummarizeSpread(t *testing.T) {
	d := func(v int64) *int64 { return &v }
	s := summarize(&Workflow{ID: "wf_1"}, []Execution{
		{Status: StatusCompleted, DurationMS: d(10)},
		{Status: StatusCompleted, DurationMS: d(30)},
		{Status: StatusCompleted, DurationMS: d(20)},
		{Status: StatusFailed},
		{Status: StatusRunning},
	})
	assert.Equal(t, 3, s.Completed)
	assert.Equal(t, 1, s.Failed)
	assert.InDelta(t, 20, s.MeanMS, 1e-9)
	assert.InDelta(t, 10, s.StdDevMS, 1e-9)
	assert.InDelta(t, 20, s.MedianMS, 1e-9)
}

func TestDeactivateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.mgr.CreateWorkflow(ctx, "usr_a", sampleInput())
	require.NoError(t, err)
	_, err = f.mgr.CreateWorkflow(ctx, "usr_b", sampleInput())
	require.NoError(t, err)

	n, err := f.mgr.DeactivateUser(ctx, "usr_a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := f.mgr.ListWorkflows(ctx, "usr_a")
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = f.mgr.ListWorkflows(ctx, "usr_b")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRunTimeoutFailsExecution(t *testing.T) {
	store := memstore.New()
	blocking := runnerFunc(func(ctx context.Context, _ RunRequest) (*RunResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	mgr := NewManager(store, blocking, Options{RunTimeout: 10 * time.Millisecond}, nil)

	exec, err := mgr.ExecuteCommand(context.Background(), "usr_a", CommandInput{URL: "https://a.test", Action: Action{Type: ActionNavigate}})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, exec.Status)
	assert.Contains(t, exec.Error, "deadline")
}

type runnerFunc func(ctx context.Context, req RunRequest) (*RunResult, error)

func (f runnerFunc) Run(ctx context.Context, req RunRequest) (*RunResult, error) { return f(ctx, req) }

func TestExecuteWorkflowExpandsVariables(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := sampleInput()
	in.Actions = append(in.Actions, Action{Type: ActionFill, Selector: "#q", Value: "{{query}} {{missing}}"})
	wf, err := f.mgr.CreateWorkflow(ctx, "usr_a", in)
	require.NoError(t, err)

	_, err = f.mgr.ExecuteWorkflow(ctx, wf.ID, "usr_a", map[string]string{"query": "golang"})
	require.NoError(t, err)

	require.Len(t, f.runner.requests, 1)
	got := f.runner.requests[0].Actions
	assert.Equal(t, "golang {{missing}}", got[len(got)-1].Value)

	stored, err := f.mgr.GetWorkflow(ctx, wf.ID, "usr_a")
	require.NoError(t, err)
	assert.Equal(t, "{{query}} {{missing}}", stored.Actions[len(stored.Actions)-1].Value)
}
