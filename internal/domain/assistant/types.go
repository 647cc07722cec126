package assistant

import (
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/ai"
)

// Task selects the kind of content analysis.
type Task string

const (
	TaskSummarize Task = "summarize"
	TaskKeyPoints Task = "key_points"
	TaskSentiment Task = "sentiment"
	TaskEntities  Task = "entities"
	TaskQA        Task = "qa"
)

// Valid reports whether t is a known task.
func (t Task) Valid() bool {
	switch t {
	case TaskSummarize, TaskKeyPoints, TaskSentiment, TaskEntities, TaskQA:
		return true
	}
	return false
}

// AnalyzeRequest names exactly one content source and a task.
type AnalyzeRequest struct {
	URL      string `json:"url"`
	HTML     string `json:"html"`
	Text     string `json:"text"`
	Task     Task   `json:"task"`
	Question string `json:"question"`
}

// Analysis is the outcome of AnalyzeContent. Result is a string for
// summarize and qa, []string for key_points, *Sentiment or []Entity otherwise.
type Analysis struct {
	Task   Task        `json:"task"`
	Result interface{} `json:"result"`
	Title  string      `json:"title,omitempty"`
	Source string      `json:"source"`
	Model  string      `json:"model"`
}

// Sentiment is the sentiment task result.
type Sentiment struct {
	Label       string  `json:"label"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation,omitempty"`
}

// Entity is one named entity.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Intent actions
const (
	IntentOpenURL   = "open_url"
	IntentSearch    = "search"
	IntentSwitchTab = "switch_tab"
	IntentCloseTab  = "close_tab"
)

// NavigateRequest is a natural-language navigation request.
type NavigateRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// Intent is the structured action derived from a navigation request.
type Intent struct {
	Action string `json:"action"`
	URL    string `json:"url,omitempty"`
	Query  string `json:"query,omitempty"`
	TabID  string `json:"tab_id,omitempty"`
	Reason string `json:"reason,omitempty"`
	Model  string `json:"model"`
}

// ChatRequest is one user turn with optional prior history.
type ChatRequest struct {
	Message   string       `json:"message"`
	SessionID string       `json:"session_id"`
	History   []ai.Message `json:"history"`
}

// ChatReply is the assistant's answer.
type ChatReply struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model"`
}

// SuggestRequest describes what a workflow should accomplish.
type SuggestRequest struct {
	Goal string `json:"goal"`
	URL  string `json:"url"`
}
