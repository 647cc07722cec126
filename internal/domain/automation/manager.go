package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/docstore"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/Orbit/backend/internal/shared/id"
	"github.com/GriffinCanCode/Orbit/backend/internal/shared/utils"
)

// Collection names
const (
	WorkflowsCollection  = "automation_workflows"
	ExecutionsCollection = "automation_executions"
)

// Limits
const (
	MaxActions = 100
	MaxWaitMS  = 5 * 60 * 1000
)

// Options tunes the manager.
type Options struct {
	// RunTimeout bounds one playback. Zero leaves it to the runner.
	RunTimeout time.Duration
	Notifier   Notifier
	Metrics    Recorder
	Now        func() time.Time
}

// Manager owns workflow and execution lifecycle.
type Manager struct {
	workflows  docstore.Collection
	executions docstore.Collection
	runner     Runner
	opts       Options
	log        *zap.Logger
}

// NewManager creates a manager that plays runs through runner.
func NewManager(store docstore.Store, runner Runner, opts Options, log *zap.Logger) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		workflows:  docstore.Active(store.Collection(WorkflowsCollection), "is_active", docstore.Stamp("updated_at", opts.Now)),
		executions: store.Collection(ExecutionsCollection),
		runner:     runner,
		opts:       opts,
		log:        log,
	}
}

func (m *Manager) now() time.Time {
	return m.opts.Now().UTC()
}

// ============================================================================
// Workflows
// ============================================================================

// CreateWorkflow validates and stores a workflow owned by userID.
func (m *Manager) CreateWorkflow(ctx context.Context, userID string, in WorkflowInput) (*Workflow, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := ValidateWorkflowInput(in); err != nil {
		return nil, err
	}

	now := m.now()
	wf := &Workflow{
		ID:          id.NewWorkflowID().String(),
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		TargetURL:   in.TargetURL,
		Actions:     in.Actions,
		IsTemplate:  in.IsTemplate,
		Category:    in.Category,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	doc, err := docstore.Encode(wf)
	if err != nil {
		return nil, err
	}
	if err := m.workflows.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	m.log.Debug("Workflow created", zap.String("workflow_id", wf.ID), zap.Int("actions", len(wf.Actions)))
	return wf, nil
}

// ListWorkflows returns the user's active workflows, most recently updated first.
func (m *Manager) ListWorkflows(ctx context.Context, userID string) ([]Workflow, error) {
	return docstore.FindAll[Workflow](ctx, m.workflows, docstore.Filter{"user_id": userID}, docstore.FindOptions{
		Sort: []docstore.SortKey{docstore.Desc("updated_at"), docstore.Asc("id")},
	})
}

// ListTemplates returns active templates of any owner, optionally by category.
func (m *Manager) ListTemplates(ctx context.Context, category string) ([]Workflow, error) {
	filter := docstore.Filter{"is_template": true}
	if category != "" {
		filter["category"] = category
	}
	return docstore.FindAll[Workflow](ctx, m.workflows, filter, docstore.FindOptions{
		Sort: []docstore.SortKey{docstore.Asc("category"), docstore.Asc("name")},
	})
}

// GetWorkflow returns an owned active workflow, or nil.
func (m *Manager) GetWorkflow(ctx context.Context, workflowID, userID string) (*Workflow, error) {
	return docstore.Get[Workflow](ctx, m.workflows, docstore.Filter{"id": workflowID, "user_id": userID})
}

// DeleteWorkflow soft-deletes an owned workflow.
func (m *Manager) DeleteWorkflow(ctx context.Context, workflowID, userID string) (bool, error) {
	n, err := m.workflows.DeleteOne(ctx, docstore.Filter{"id": workflowID, "user_id": userID})
	if err != nil {
		return false, fmt.Errorf("failed to delete workflow: %w", err)
	}
	return n > 0, nil
}

// DeactivateUser soft-deletes every workflow of userID.
func (m *Manager) DeactivateUser(ctx context.Context, userID string) (int, error) {
	res, err := m.workflows.UpdateMany(ctx, docstore.Filter{"user_id": userID}, docstore.NewMutation().
		Set("is_active", false).
		Set("updated_at", m.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate workflows: %w", err)
	}
	return res.Modified, nil
}

// runnable resolves a workflow the user may run: one they own, or a template.
func (m *Manager) runnable(ctx context.Context, workflowID, userID string) (*Workflow, error) {
	wf, err := m.GetWorkflow(ctx, workflowID, userID)
	if err != nil || wf != nil {
		return wf, err
	}
	wf, err = docstore.Get[Workflow](ctx, m.workflows, docstore.Filter{"id": workflowID, "is_template": true})
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, ErrWorkflowNotFound
	}
	return wf, nil
}

// ============================================================================
// Executions
// ============================================================================

// ExecuteWorkflow runs a workflow to completion and returns the final
// execution. vars fill {{name}} placeholders in selectors and values. A
// playback failure is recorded on the execution, not returned.
func (m *Manager) ExecuteWorkflow(ctx context.Context, workflowID, userID string, vars map[string]string) (*Execution, error) {
	wf, err := m.runnable(ctx, workflowID, userID)
	if err != nil {
		return nil, err
	}
	for k, v := range vars {
		if err := utils.ValidateString(v, "variables."+k, 0, utils.MaxValueLength, false); err != nil {
			return nil, err
		}
	}

	req := RunRequest{URL: wf.TargetURL, Actions: ExpandActions(wf.Actions, vars)}
	exec, err := m.run(ctx, userID, wf.ID, KindWorkflow, req)
	if err != nil {
		return nil, err
	}

	mut := docstore.NewMutation().Inc("execution_count", 1)
	if exec.Status == StatusCompleted {
		mut.Inc("successful_runs", 1)
	}
	mut.Ratio("success_rate", "successful_runs", "execution_count").Set("updated_at", m.now())
	if _, err := m.workflows.UpdateOne(context.WithoutCancel(ctx), docstore.Filter{"id": wf.ID}, mut); err != nil {
		return exec, fmt.Errorf("failed to update workflow counters: %w", err)
	}
	return exec, nil
}

// ExpandActions returns a copy of actions with {{name}} placeholders replaced.
// Unknown placeholders are left as written.
func ExpandActions(actions []Action, vars map[string]string) []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	if len(vars) == 0 {
		return out
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	for i := range out {
		out[i].Selector = r.Replace(out[i].Selector)
		out[i].Value = r.Replace(out[i].Value)
	}
	return out
}

// ExecuteCommand runs one ad-hoc action against a URL.
func (m *Manager) ExecuteCommand(ctx context.Context, userID string, in CommandInput) (*Execution, error) {
	if err := utils.ValidateURL(in.URL, "url", true); err != nil {
		return nil, err
	}
	if err := validateAction("action", in.Action); err != nil {
		return nil, err
	}
	return m.run(ctx, userID, "", KindCommand, RunRequest{URL: in.URL, Actions: []Action{in.Action}})
}

func (m *Manager) run(ctx context.Context, userID, workflowID string, kind Kind, req RunRequest) (*Execution, error) {
	exec := &Execution{
		ID:         id.NewExecutionID().String(),
		WorkflowID: workflowID,
		UserID:     userID,
		Kind:       kind,
		Status:     StatusPending,
		CreatedAt:  m.now(),
	}
	doc, err := docstore.Encode(exec)
	if err != nil {
		return nil, err
	}
	if err := m.executions.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}
	m.publish(exec)

	started := m.now()
	if err := m.transition(ctx, exec, StatusRunning, docstore.NewMutation().Set("started_at", started)); err != nil {
		return nil, err
	}
	exec.StartedAt = &started

	runCtx := ctx
	if m.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.opts.RunTimeout)
		defer cancel()
	}
	span, runCtx := tracing.Start(runCtx, "automation.run")
	span.SetAttr("execution_id", exec.ID)
	span.SetAttr("kind", string(kind))
	result, runErr := m.runner.Run(runCtx, req)
	span.End(runErr)

	// Record the outcome even when the caller went away mid-run
	ctx = context.WithoutCancel(ctx)
	completed := m.now()
	duration := completed.Sub(started)
	ms := duration.Milliseconds()
	mut := docstore.NewMutation().Set("completed_at", completed).Set("duration_ms", ms)

	next := StatusCompleted
	if runErr != nil {
		next = StatusFailed
		mut.Set("error", runErr.Error())
		exec.Error = runErr.Error()
	} else {
		if result == nil {
			result = &RunResult{}
		}
		payload, err := docstore.Encode(result)
		if err != nil {
			return nil, err
		}
		mut.Set("result", map[string]interface{}(payload))
		exec.Result = payload
	}

	if err := m.transition(ctx, exec, next, mut); err != nil {
		return nil, err
	}
	exec.CompletedAt = &completed
	exec.DurationMS = &ms

	m.opts.Metrics.RecordExecution(string(kind), string(next), duration)
	if runErr != nil {
		m.log.Info("Execution failed",
			zap.String("execution_id", exec.ID),
			zap.String("workflow_id", workflowID),
			zap.Error(runErr))
	} else {
		m.log.Debug("Execution completed", zap.String("execution_id", exec.ID), zap.Int64("duration_ms", ms))
	}
	return exec, nil
}

// transition moves exec to next when it is still in the status that must precede it.
func (m *Manager) transition(ctx context.Context, exec *Execution, next Status, mut *docstore.Mutation) error {
	from, ok := previous(next)
	if !ok || exec.Status != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, exec.Status, next)
	}

	res, err := m.executions.UpdateOne(ctx, docstore.Filter{"id": exec.ID, "status": string(from)}, mut.Set("status", string(next)))
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}
	if res.Matched == 0 {
		return fmt.Errorf("%w: %s is no longer %s", ErrInvalidTransition, exec.ID, from)
	}

	exec.Status = next
	m.publish(exec)
	return nil
}

// previous returns the only status allowed to precede s.
func previous(s Status) (Status, bool) {
	switch s {
	case StatusRunning:
		return StatusPending, true
	case StatusCompleted, StatusFailed:
		return StatusRunning, true
	}
	return "", false
}

func (m *Manager) publish(exec *Execution) {
	snapshot := *exec
	m.opts.Notifier.Publish(exec.UserID, Event{Type: "execution", Execution: &snapshot})
}

// GetExecution returns an owned execution, or nil.
func (m *Manager) GetExecution(ctx context.Context, executionID, userID string) (*Execution, error) {
	return docstore.Get[Execution](ctx, m.executions, docstore.Filter{"id": executionID, "user_id": userID})
}

// ListExecutions returns the user's executions, newest first. An empty
// workflowID lists every execution including ad-hoc commands.
func (m *Manager) ListExecutions(ctx context.Context, userID, workflowID string) ([]Execution, error) {
	filter := docstore.Filter{"user_id": userID}
	if workflowID != "" {
		filter["workflow_id"] = workflowID
	}
	return docstore.FindAll[Execution](ctx, m.executions, filter, docstore.FindOptions{
		Sort: []docstore.SortKey{docstore.Desc("created_at"), docstore.Desc("id")},
	})
}

// ============================================================================
// Validation
// ============================================================================

// ValidateWorkflowInput checks a workflow draft.
func ValidateWorkflowInput(in WorkflowInput) error {
	if err := utils.ValidateName(in.Name, "name"); err != nil {
		return err
	}
	if err := utils.ValidateDescription(in.Description, "description", false); err != nil {
		return err
	}
	if err := utils.ValidateURL(in.TargetURL, "target_url", true); err != nil {
		return err
	}
	if err := utils.ValidateCategory(in.Category, false); err != nil {
		return err
	}
	if len(in.Actions) == 0 {
		return utils.Invalid("actions", "at least one action is required")
	}
	if len(in.Actions) > MaxActions {
		return utils.Invalid("actions", "at most %d actions are allowed", MaxActions)
	}
	for i, a := range in.Actions {
		if err := validateAction(fmt.Sprintf("actions[%d]", i), a); err != nil {
			return err
		}
	}
	return nil
}

func validateAction(field string, a Action) error {
	if !a.Type.Valid() {
		return utils.Invalid(field+".type", "unknown action type %q", a.Type)
	}
	if err := utils.ValidateString(a.Selector, field+".selector", 0, utils.MaxSelectorLength, false); err != nil {
		return err
	}
	if err := utils.ValidateString(a.Value, field+".value", 0, utils.MaxValueLength, false); err != nil {
		return err
	}
	if a.WaitMS < 0 || a.WaitMS > MaxWaitMS {
		return utils.Invalid(field+".wait_ms", "must be between 0 and %d", MaxWaitMS)
	}
	if err := utils.ValidateMap(a.Params, field+".params"); err != nil {
		return err
	}

	switch a.Type {
	case ActionClick, ActionFill, ActionHover:
		if a.Selector == "" {
			return utils.Invalid(field+".selector", "is required for %s", a.Type)
		}
	case ActionPress:
		if a.Value == "" {
			return utils.Invalid(field+".value", "is required for press")
		}
	case ActionNavigate:
		if a.Value != "" {
			if err := utils.ValidateURL(a.Value, field+".value", false); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsNotFound reports whether err means the workflow or execution is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) || errors.Is(err, ErrExecutionNotFound)
}
