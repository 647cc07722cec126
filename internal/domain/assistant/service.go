package assistant

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/domain/automation"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/session"
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/ai"
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/fetch"
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/scraper"
	"github.com/GriffinCanCode/Orbit/backend/internal/shared/utils"
)

// Limits
const (
	DefaultMaxInput   = 12000
	MaxHistory        = 20
	MaxQueryLength    = 2000
	maxContextChars   = 4000
	maxSuggestActions = 20
)

// Fetcher downloads pages.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// Sessions reads sessions visible to a user.
type Sessions interface {
	GetSession(ctx context.Context, sessionID, userID string) (*session.BrowserSession, error)
}

// Options tunes the service.
type Options struct {
	// MaxInput bounds the characters of page content sent to the provider.
	MaxInput int
}

// Service delegates content and navigation questions to an AI provider.
type Service struct {
	provider ai.Provider
	fetcher  Fetcher
	sessions Sessions
	opts     Options
	log      *zap.Logger
}

// NewService creates the assistant service.
func NewService(provider ai.Provider, fetcher Fetcher, sessions Sessions, opts Options, log *zap.Logger) *Service {
	if opts.MaxInput <= 0 {
		opts.MaxInput = DefaultMaxInput
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		provider: provider,
		fetcher:  fetcher,
		sessions: sessions,
		opts:     opts,
		log:      log.Named("assistant"),
	}
}

// Provider returns the name of the backing provider.
func (s *Service) Provider() string { return s.provider.Name() }

// ============================================================================
// Content analysis
// ============================================================================

// AnalyzeContent runs task over a URL, raw HTML or plain text.
func (s *Service) AnalyzeContent(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	if req.Task == "" {
		req.Task = TaskSummarize
	}
	if !req.Task.Valid() {
		return nil, utils.Invalid("task", "unknown task %q", req.Task)
	}
	if req.Task == TaskQA {
		if err := utils.ValidateString(strings.TrimSpace(req.Question), "question", 1, MaxQueryLength, true); err != nil {
			return nil, err
		}
	}

	text, title, source, err := s.content(ctx, req)
	if err != nil {
		return nil, err
	}
	text = scraper.TruncateText(text, s.opts.MaxInput)

	p, opts := analysisPrompt(req.Task, title, text, req.Question)
	c, err := s.provider.Complete(ctx, p, opts)
	if err != nil {
		return nil, err
	}

	result, err := s.parseAnalysis(req.Task, c.Content)
	if err != nil {
		return nil, err
	}
	s.log.Debug("Content analyzed", zap.String("task", string(req.Task)), zap.String("source", source), zap.Int("chars", len(text)))
	return &Analysis{Task: req.Task, Result: result, Title: title, Source: source, Model: c.Model}, nil
}

// content resolves the single source named by req to plain text.
func (s *Service) content(ctx context.Context, req AnalyzeRequest) (text, title, source string, err error) {
	given := 0
	for _, v := range []string{req.URL, req.HTML, req.Text} {
		if v != "" {
			given++
		}
	}
	if given != 1 {
		return "", "", "", utils.Invalid("content", "exactly one of url, html or text is required")
	}

	switch {
	case req.URL != "":
		page, err := s.fetcher.Fetch(ctx, req.URL)
		if err != nil {
			return "", "", "", err
		}
		c, err := scraper.Extract(page.HTML, page.URL)
		if err != nil {
			return "", "", "", utils.Invalid("url", "page has no readable content: %v", err)
		}
		text, title, source = c.Text, c.Title, page.URL
	case req.HTML != "":
		c, err := scraper.Extract(req.HTML, "")
		if err != nil {
			return "", "", "", utils.Invalid("html", "%v", err)
		}
		text, title, source = c.Text, c.Title, "html"
	default:
		text, source = scraper.NormalizeWhitespace(req.Text), "text"
	}

	if strings.TrimSpace(text) == "" {
		return "", "", "", utils.Invalid("content", "no readable text")
	}
	return text, title, source, nil
}

func (s *Service) parseAnalysis(task Task, content string) (interface{}, error) {
	switch task {
	case TaskKeyPoints:
		var out struct {
			Points []string `json:"points"`
		}
		if err := s.decode(content, &out); err != nil {
			return nil, err
		}
		return scraper.Deduplicate(out.Points), nil
	case TaskSentiment:
		var out Sentiment
		if err := s.decode(content, &out); err != nil {
			return nil, err
		}
		if out.Label == "" {
			return nil, s.malformed(fmt.Errorf("sentiment label missing"))
		}
		return &out, nil
	case TaskEntities:
		var out struct {
			Entities []Entity `json:"entities"`
		}
		if err := s.decode(content, &out); err != nil {
			return nil, err
		}
		if out.Entities == nil {
			out.Entities = []Entity{}
		}
		return out.Entities, nil
	}
	return strings.TrimSpace(content), nil
}

// ============================================================================
// Navigation
// ============================================================================

// Navigate turns a natural-language request into a browser intent. Tabs of
// the named session are offered as context when the user can see it.
func (s *Service) Navigate(ctx context.Context, userID string, req NavigateRequest) (*Intent, error) {
	if err := utils.ValidateString(strings.TrimSpace(req.Query), "query", 1, MaxQueryLength, true); err != nil {
		return nil, err
	}
	sess, err := s.visibleSession(ctx, req.SessionID, userID)
	if err != nil {
		return nil, err
	}

	c, err := s.provider.Complete(ctx, navigatePrompt(req.Query, sess), ai.Options{JSON: true, Temperature: zero()})
	if err != nil {
		return nil, err
	}

	var intent Intent
	if err := s.decode(c.Content, &intent); err != nil {
		return nil, err
	}
	if err := checkIntent(&intent, req.Query, sess); err != nil {
		return nil, s.malformed(err)
	}
	intent.Model = c.Model
	return &intent, nil
}

func checkIntent(in *Intent, query string, sess *session.BrowserSession) error {
	in.Action = strings.ToLower(strings.TrimSpace(in.Action))
	switch in.Action {
	case IntentOpenURL:
		u := strings.TrimSpace(in.URL)
		if u != "" && !strings.Contains(u, "://") {
			u = "https://" + u
		}
		if err := utils.ValidateURL(u, "url", true); err != nil {
			return err
		}
		in.URL = u
	case IntentSearch:
		if strings.TrimSpace(in.Query) == "" {
			in.Query = query
		}
	case IntentSwitchTab, IntentCloseTab:
		if in.TabID == "" {
			return fmt.Errorf("%s needs a tab_id", in.Action)
		}
		if sess == nil || sess.Tab(in.TabID) == nil {
			return fmt.Errorf("unknown tab %q", in.TabID)
		}
	default:
		return fmt.Errorf("unknown action %q", in.Action)
	}
	return nil
}

// ============================================================================
// Chat
// ============================================================================

// Chat answers one message, carrying the session's AI context when present.
func (s *Service) Chat(ctx context.Context, userID string, req ChatRequest) (*ChatReply, error) {
	if err := utils.ValidateMessage(req.Message); err != nil {
		return nil, err
	}
	history := req.History
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	for i, m := range history {
		if m.Role != ai.RoleUser && m.Role != ai.RoleAssistant {
			return nil, utils.Invalid(fmt.Sprintf("history[%d].role", i), "must be user or assistant")
		}
	}
	sess, err := s.visibleSession(ctx, req.SessionID, userID)
	if err != nil {
		return nil, err
	}

	messages := append(append([]ai.Message{}, history...), ai.Message{Role: ai.RoleUser, Content: req.Message})
	c, err := s.provider.Complete(ctx, ai.Prompt{System: chatSystem(sess), Messages: messages}, ai.Options{})
	if err != nil {
		return nil, err
	}

	reply := &ChatReply{Reply: strings.TrimSpace(c.Content), Model: c.Model}
	if sess != nil {
		reply.SessionID = sess.ID
	}
	return reply, nil
}

// ============================================================================
// Workflow suggestions
// ============================================================================

// SuggestWorkflow drafts a workflow for goal. Unknown action types are
// dropped; a draft that still fails validation is a malformed response.
func (s *Service) SuggestWorkflow(ctx context.Context, req SuggestRequest) (*automation.WorkflowInput, error) {
	if err := utils.ValidateString(strings.TrimSpace(req.Goal), "goal", 1, MaxQueryLength, true); err != nil {
		return nil, err
	}
	if err := utils.ValidateURL(req.URL, "url", true); err != nil {
		return nil, err
	}

	c, err := s.provider.Complete(ctx, suggestPrompt(req.Goal, req.URL), ai.Options{JSON: true})
	if err != nil {
		return nil, err
	}

	var draft automation.WorkflowInput
	if err := s.decode(c.Content, &draft); err != nil {
		return nil, err
	}

	actions := make([]automation.Action, 0, len(draft.Actions))
	for _, a := range draft.Actions {
		if a.Type.Valid() && len(actions) < maxSuggestActions {
			actions = append(actions, a)
		}
	}
	draft.Actions = actions
	draft.TargetURL = req.URL
	draft.IsTemplate = false
	if strings.TrimSpace(draft.Name) == "" {
		draft.Name = scraper.TruncateText(strings.TrimSpace(req.Goal), 80)
	}
	if draft.Category != "" {
		if err := utils.ValidateCategory(draft.Category, false); err != nil {
			draft.Category = ""
		}
	}

	if len(draft.Actions) == 0 {
		return nil, s.malformed(fmt.Errorf("no usable actions"))
	}
	if err := automation.ValidateWorkflowInput(draft); err != nil {
		return nil, s.malformed(err)
	}
	return &draft, nil
}

// ============================================================================
// Helpers
// ============================================================================

func (s *Service) visibleSession(ctx context.Context, sessionID, userID string) (*session.BrowserSession, error) {
	if sessionID == "" || s.sessions == nil {
		return nil, nil
	}
	sess, err := s.sessions.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

// decode parses a JSON reply, tolerating prose around the object.
func (s *Service) decode(content string, v interface{}) error {
	obj, ok := ai.ExtractJSON(content)
	if !ok {
		return s.malformed(fmt.Errorf("reply is not a JSON object"))
	}
	if err := sonic.UnmarshalString(obj, v); err != nil {
		return s.malformed(err)
	}
	return nil
}

func (s *Service) malformed(err error) error {
	return &ai.ProviderError{Provider: s.provider.Name(), Reason: ai.ReasonMalformed, Err: err}
}

func zero() *float64 {
	v := 0.0
	return &v
}

// hostOf returns the host of raw, or raw itself when it does not parse.
func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}
