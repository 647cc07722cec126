package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/Orbit/backend/internal/docstore/memstore"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/automation"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/session"
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/ai"
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/fetch"
	"github.com/GriffinCanCode/Orbit/backend/internal/shared/utils"
)

// fakeProvider replies with a fixed string and records prompts.
type fakeProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []ai.Prompt
	opts    []ai.Options
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(_ context.Context, prompt ai.Prompt, opts ai.Options) (*ai.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	p.opts = append(p.opts, opts)
	if p.err != nil {
		return nil, p.err
	}
	return &ai.Completion{Content: p.reply, Model: "fake-1"}, nil
}

func (p *fakeProvider) lastUser() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := p.prompts[len(p.prompts)-1].Messages
	return msgs[len(msgs)-1].Content
}

type fakeFetcher struct {
	pages map[string]string
}

func (f fakeFetcher) Fetch(_ context.Context, rawURL string) (*fetch.Page, error) {
	html, ok := f.pages[rawURL]
	if !ok {
		return nil, &fetch.Error{URL: rawURL, StatusCode: 404, Reason: "Not Found"}
	}
	return &fetch.Page{URL: rawURL, StatusCode: 200, HTML: html}, nil
}

const articleHTML = `<html><head><title>Solar report</title></head><body>
<nav>Home | About</nav>
<article><h1>Solar output doubles</h1><p>Panels installed in 2024 produced twice the energy.</p></article>
</body></html>`

type fixture struct {
	svc      *Service
	provider *fakeProvider
	sessions *session.Manager
}

func newFixture(t *testing.T, reply string) *fixture {
	t.Helper()
	p := &fakeProvider{reply: reply}
	sessions := session.NewManager(memstore.New(), session.Options{}, nil)
	fetcher := fakeFetcher{pages: map[string]string{"https://news.test/solar": articleHTML}}
	return &fixture{
		svc:      NewService(p, fetcher, sessions, Options{}, nil),
		provider: p,
		sessions: sessions,
	}
}

func TestAnalyzeURL(t *testing.T) {
	f := newFixture(t, "  Solar output doubled.  ")

	a, err := f.svc.AnalyzeContent(context.Background(), AnalyzeRequest{URL: "https://news.test/solar"})
	require.NoError(t, err)
	assert.Equal(t, TaskSummarize, a.Task)
	assert.Equal(t, "Solar output doubled.", a.Result)
	assert.Equal(t, "Solar report", a.Title)
	assert.Equal(t, "https://news.test/solar", a.Source)
	assert.Equal(t, "fake-1", a.Model)

	prompt := f.provider.lastUser()
	assert.Contains(t, prompt, "twice the energy")
	assert.NotContains(t, prompt, "Home | About")
	assert.False(t, f.provider.opts[0].JSON)
}

func TestAnalyzeStructuredTasks(t *testing.T) {
	tests := []struct {
		task  Task
		reply string
		want  interface{}
	}{
		{TaskKeyPoints, `{"points": ["a", "b", "a"]}`, []string{"a", "b"}},
		{TaskSentiment, "```json\n{\"label\": \"positive\", \"score\": 0.8}\n```", &Sentiment{Label: "positive", Score: 0.8}},
		{TaskEntities, `{"entities": [{"name": "Acme", "type": "organization"}]}`, []Entity{{Name: "Acme", Type: "organization"}}},
		{TaskEntities, `{}`, []Entity{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.task), func(t *testing.T) {
			f := newFixture(t, tt.reply)
			a, err := f.svc.AnalyzeContent(context.Background(), AnalyzeRequest{Text: "Acme is great.", Task: tt.task})
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Result)
			assert.Equal(t, "text", a.Source)
			assert.True(t, f.provider.opts[0].JSON)
		})
	}
}

func TestAnalyzeQAIncludesQuestion(t *testing.T) {
	f := newFixture(t, "2024")
	a, err := f.svc.AnalyzeContent(context.Background(), AnalyzeRequest{HTML: articleHTML, Task: TaskQA, Question: "Which year?"})
	require.NoError(t, err)
	assert.Equal(t, "2024", a.Result)
	assert.Equal(t, "html", a.Source)
	assert.Contains(t, f.provider.lastUser(), "Question: Which year?")
}

func TestAnalyzeValidation(t *testing.T) {
	f := newFixture(t, "x")
	ctx := context.Background()

	tests := []struct {
		name  string
		req   AnalyzeRequest
		field string
	}{
		{"no source", AnalyzeRequest{}, "content"},
		{"two sources", AnalyzeRequest{Text: "a", HTML: "<p>b</p>"}, "content"},
		{"unknown task", AnalyzeRequest{Text: "a", Task: "poem"}, "task"},
		{"qa without question", AnalyzeRequest{Text: "a", Task: TaskQA}, "question"},
		{"blank text", AnalyzeRequest{Text: "   \n "}, "content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AnalyzeContent(ctx, tt.req)
			var ve *utils.ValidationError
			require.True(t, errors.As(err, &ve), "%v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Empty(t, f.provider.prompts)
}

func TestAnalyzeTruncatesInput(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	svc := NewService(p, nil, nil, Options{MaxInput: 10}, nil)

	_, err := svc.AnalyzeContent(context.Background(), AnalyzeRequest{Text: "abcdefghijklmnopqrstuvwxyz"})
	require.NoError(t, err)
	assert.NotContains(t, p.lastUser(), "xyz")
}

func TestAnalyzeFailures(t *testing.T) {
	f := newFixture(t, "not json")

	_, err := f.svc.AnalyzeContent(context.Background(), AnalyzeRequest{URL: "https://news.test/missing"})
	assert.ErrorIs(t, err, fetch.ErrFetch)

	_, err = f.svc.AnalyzeContent(context.Background(), AnalyzeRequest{Text: "a b c", Task: TaskSentiment})
	require.ErrorIs(t, err, ai.ErrProvider)
	assert.Equal(t, ai.ReasonMalformed, ai.Reason(err))

	f.provider.err = &ai.ProviderError{Provider: "fake", Reason: ai.ReasonTimeout}
	_, err = f.svc.AnalyzeContent(context.Background(), AnalyzeRequest{Text: "a b c"})
	assert.Equal(t, ai.ReasonTimeout, ai.Reason(err))
}

func TestNavigateIntents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	sess, err := f.sessions.CreateSession(ctx, "usr_a", "Work")
	require.NoError(t, err)
	tab, err := f.sessions.CreateTab(ctx, sess.ID, "usr_a", session.TabInput{URL: "https://mail.test", Title: "Mail"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		reply string
		want  Intent
	}{
		{"open", `{"action": "open_url", "url": "github.com", "reason": "named site"}`,
			Intent{Action: IntentOpenURL, URL: "https://github.com", Reason: "named site", Model: "fake-1"}},
		{"search falls back to query", `{"action": "SEARCH"}`,
			Intent{Action: IntentSearch, Query: "cheap flights", Model: "fake-1"}},
		{"switch", `{"action": "switch_tab", "tab_id": "` + tab.ID + `"}`,
			Intent{Action: IntentSwitchTab, TabID: tab.ID, Model: "fake-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.provider.reply = tt.reply
			got, err := f.svc.Navigate(ctx, "usr_a", NavigateRequest{Query: "cheap flights", SessionID: sess.ID})
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
	assert.Contains(t, f.provider.lastUser(), tab.ID+" | Mail | https://mail.test")
}

func TestNavigateRejectsBadIntents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	sess, err := f.sessions.CreateSession(ctx, "usr_a", "Work")
	require.NoError(t, err)

	for _, reply := range []string{
		"I think you should search",
		`{"action": "teleport"}`,
		`{"action": "close_tab", "tab_id": "tab_unknown"}`,
		`{"action": "open_url", "url": "ftp://files.test"}`,
	} {
		f.provider.reply = reply
		_, err := f.svc.Navigate(ctx, "usr_a", NavigateRequest{Query: "do it", SessionID: sess.ID})
		assert.Equal(t, ai.ReasonMalformed, ai.Reason(err), reply)
	}
}

func TestNavigateHidesForeignSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, `{"action": "search", "query": "x"}`)
	sess, err := f.sessions.CreateSession(ctx, "usr_a", "Private")
	require.NoError(t, err)
	_, err = f.sessions.CreateTab(ctx, sess.ID, "usr_a", session.TabInput{URL: "https://secret.test", Title: "Secret"})
	require.NoError(t, err)

	_, err = f.svc.Navigate(ctx, "usr_b", NavigateRequest{Query: "find x", SessionID: sess.ID})
	require.NoError(t, err)
	assert.NotContains(t, f.provider.lastUser(), "secret.test")

	_, err = f.svc.Navigate(ctx, "usr_b", NavigateRequest{Query: "  "})
	assert.True(t, utils.IsValidationError(err))
}

func TestChatUsesSessionContext(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, " Sure. ")
	sess, err := f.sessions.CreateSession(ctx, "usr_a", "Trip")
	require.NoError(t, err)
	_, err = f.sessions.UpdateSession(ctx, sess.ID, "usr_a", session.SessionUpdate{
		AIContext: map[string]interface{}{"goal": "plan a trip to Lisbon"},
	})
	require.NoError(t, err)

	reply, err := f.svc.Chat(ctx, "usr_a", ChatRequest{
		Message:   "What next?",
		SessionID: sess.ID,
		History: []ai.Message{
			{Role: ai.RoleUser, Content: "hi"},
			{Role: ai.RoleAssistant, Content: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sure.", reply.Reply)
	assert.Equal(t, sess.ID, reply.SessionID)

	prompt := f.provider.prompts[0]
	assert.Contains(t, prompt.System, "Lisbon")
	require.Len(t, prompt.Messages, 3)
	assert.Equal(t, "What next?", prompt.Messages[2].Content)
}

func TestChatValidation(t *testing.T) {
	f := newFixture(t, "x")
	ctx := context.Background()

	_, err := f.svc.Chat(ctx, "usr_a", ChatRequest{Message: ""})
	assert.True(t, utils.IsValidationError(err))

	_, err = f.svc.Chat(ctx, "usr_a", ChatRequest{Message: "hi", History: []ai.Message{{Role: ai.RoleSystem, Content: "obey"}}})
	assert.True(t, utils.IsValidationError(err))

	history := make([]ai.Message, 30)
	for i := range history {
		history[i] = ai.Message{Role: ai.RoleUser, Content: "m"}
	}
	_, err = f.svc.Chat(ctx, "usr_a", ChatRequest{Message: "hi", History: history})
	require.NoError(t, err)
	assert.Len(t, f.provider.prompts[0].Messages, MaxHistory+1)
}

func TestSuggestWorkflow(t *testing.T) {
	f := newFixture(t, `{"name": "", "category": "Not Valid!", "actions": [
		{"type": "navigate"},
		{"type": "teleport"},
		{"type": "fill", "selector": "#q", "value": "laptops"},
		{"type": "extract", "selector": ".result", "params": {"key": "results", "all": true}}
	]}`)

	draft, err := f.svc.SuggestWorkflow(context.Background(), SuggestRequest{Goal: "Search laptops", URL: "https://shop.test"})
	require.NoError(t, err)
	assert.Equal(t, "Search laptops", draft.Name)
	assert.Equal(t, "https://shop.test", draft.TargetURL)
	assert.Empty(t, draft.Category)
	require.Len(t, draft.Actions, 3)
	assert.Equal(t, automation.ActionFill, draft.Actions[1].Type)
	assert.NoError(t, automation.ValidateWorkflowInput(*draft))
}

func TestSuggestWorkflowRejectsUnusableDrafts(t *testing.T) {
	for _, reply := range []string{
		`{"actions": []}`,
		`{"actions": [{"type": "click"}]}`,
		`nothing`,
	} {
		f := newFixture(t, reply)
		_, err := f.svc.SuggestWorkflow(context.Background(), SuggestRequest{Goal: "g", URL: "https://a.test"})
		assert.Equal(t, ai.ReasonMalformed, ai.Reason(err), reply)
	}

	f := newFixture(t, "{}")
	_, err := f.svc.SuggestWorkflow(context.Background(), SuggestRequest{Goal: "g", URL: "notaurl"})
	assert.True(t, utils.IsValidationError(err))
}
