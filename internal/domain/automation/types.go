package automation

import (
	"context"
	"errors"
	"time"
)

var (
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrExecutionNotFound = errors.New("execution not found")
	ErrInvalidTransition = errors.New("invalid execution transition")
	ErrUnsupportedAction = errors.New("unsupported action")
)

// ActionType names one step kind.
type ActionType string

const (
	ActionNavigate   ActionType = "navigate"
	ActionClick      ActionType = "click"
	ActionFill       ActionType = "fill"
	ActionWait       ActionType = "wait"
	ActionExtract    ActionType = "extract"
	ActionPress      ActionType = "press"
	ActionHover      ActionType = "hover"
	ActionScreenshot ActionType = "screenshot"
	ActionScroll     ActionType = "scroll"
)

// ActionTypes lists every known action type.
var ActionTypes = []ActionType{
	ActionNavigate, ActionClick, ActionFill, ActionWait, ActionExtract,
	ActionPress, ActionHover, ActionScreenshot, ActionScroll,
}

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	for _, known := range ActionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Action is one step of a workflow.
type Action struct {
	Type     ActionType             `json:"type" yaml:"type" toml:"type"`
	Selector string                 `json:"selector,omitempty" yaml:"selector" toml:"selector"`
	Value    string                 `json:"value,omitempty" yaml:"value" toml:"value"`
	WaitMS   int                    `json:"wait_ms,omitempty" yaml:"wait_ms" toml:"wait_ms"`
	Params   map[string]interface{} `json:"params,omitempty" yaml:"params" toml:"params"`
}

// Workflow is a stored, reusable action sequence against a target URL.
type Workflow struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	TargetURL      string    `json:"target_url"`
	Actions        []Action  `json:"actions"`
	IsTemplate     bool      `json:"is_template"`
	Category       string    `json:"category,omitempty"`
	ExecutionCount int       `json:"execution_count"`
	SuccessfulRuns int       `json:"successful_runs"`
	SuccessRate    float64   `json:"success_rate"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// WorkflowInput carries a new workflow request.
type WorkflowInput struct {
	Name        string   `json:"name" yaml:"name" toml:"name"`
	Description string   `json:"description" yaml:"description" toml:"description"`
	TargetURL   string   `json:"target_url" yaml:"target_url" toml:"target_url"`
	Actions     []Action `json:"actions" yaml:"actions" toml:"actions"`
	IsTemplate  bool     `json:"is_template" yaml:"is_template" toml:"is_template"`
	Category    string   `json:"category" yaml:"category" toml:"category"`
}

// Status is an execution lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Kind distinguishes stored workflow runs from ad-hoc commands.
type Kind string

const (
	KindWorkflow Kind = "workflow"
	KindCommand  Kind = "command"
)

// Execution is one run record.
type Execution struct {
	ID          string                 `json:"id"`
	WorkflowID  string                 `json:"workflow_id,omitempty"`
	UserID      string                 `json:"user_id"`
	Kind        Kind                   `json:"kind"`
	Status      Status                 `json:"status"`
	Result      map[string]interface{} `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	DurationMS  *int64                 `json:"duration_ms,omitempty"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// CommandInput is a single ad-hoc action against a URL.
type CommandInput struct {
	URL    string `json:"url"`
	Action Action `json:"action"`
}

// RunRequest is what a Runner plays back.
type RunRequest struct {
	URL     string
	Actions []Action
}

// RunResult is the payload of a successful run.
type RunResult struct {
	FinalURL    string                 `json:"final_url"`
	Title       string                 `json:"title"`
	Extracted   map[string]interface{} `json:"extracted"`
	Screenshots []string               `json:"screenshots"`
}

// Runner plays actions against a page.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// Event is published on every execution transition.
type Event struct {
	Type      string     `json:"type"`
	Execution *Execution `json:"execution"`
}

// Notifier receives execution events.
type Notifier interface {
	Publish(userID string, ev Event)
}

// Stats summarizes a workflow's run history.
type Stats struct {
	WorkflowID     string  `json:"workflow_id"`
	ExecutionCount int     `json:"execution_count"`
	SuccessfulRuns int     `json:"successful_runs"`
	SuccessRate    float64 `json:"success_rate"`
	Completed      int     `json:"completed"`
	Failed         int     `json:"failed"`
	MeanMS         float64 `json:"mean_duration_ms"`
	StdDevMS       float64 `json:"stddev_duration_ms"`
	MedianMS       float64 `json:"median_duration_ms"`
}

// Recorder receives execution outcomes.
type Recorder interface {
	RecordExecution(kind, status string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordExecution(string, string, time.Duration) {}

type nopNotifier struct{}

func (nopNotifier) Publish(string, Event) {}
