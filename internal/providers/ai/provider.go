package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrProvider matches every *ProviderError.
var ErrProvider = errors.New("ai provider error")

// ProviderError describes a failed completion.
type ProviderError struct {
	Provider   string
	Reason     string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// transient reports whether the failure reflects provider health.
func (e *ProviderError) transient() bool {
	switch e.Reason {
	case ReasonTimeout, ReasonUnavailable, ReasonRateLimited:
		return true
	}
	return e.StatusCode >= 500
}

// Failure reasons
const (
	ReasonNotConfigured = "not configured"
	ReasonUnauthorized  = "unauthorized"
	ReasonRateLimited   = "rate limited or quota exceeded"
	ReasonTimeout       = "timeout"
	ReasonUnavailable   = "unavailable"
	ReasonBadRequest    = "rejected request"
	ReasonEmpty         = "empty response"
	ReasonMalformed     = "malformed response"
	ReasonCircuitOpen   = "circuit open"
)

// Role is a chat participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Prompt is a system instruction plus conversation.
type Prompt struct {
	System   string
	Messages []Message
}

// Options tunes one completion. Zero values fall back to provider defaults.
type Options struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	// JSON asks for a single JSON object as the reply.
	JSON bool
}

// Completion is a provider reply.
type Completion struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason,omitempty"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
}

// Provider produces completions.
type Provider interface {
	Name() string
	Complete(ctx context.Context, p Prompt, opts Options) (*Completion, error)
}

// Disabled always fails; it stands in when no provider is configured.
type Disabled struct{}

func (Disabled) Name() string { return "disabled" }

func (Disabled) Complete(context.Context, Prompt, Options) (*Completion, error) {
	return nil, &ProviderError{Provider: "disabled", Reason: ReasonNotConfigured}
}

// jsonInstruction is appended to the system prompt in JSON mode.
const jsonInstruction = "Reply with a single JSON object and nothing else."

// ExtractJSON returns the outermost JSON object in s, tolerating code fences
// and prose around it.
func ExtractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// Reason returns the failure reason of err when it is a provider error.
func Reason(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ""
}
