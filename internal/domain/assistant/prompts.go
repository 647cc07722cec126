package assistant

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/Orbit/backend/internal/domain/automation"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/session"
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/ai"
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/scraper"
)

const analystSystem = "You analyze web page content for a browser assistant. Work only from the content provided."

var taskInstructions = map[Task]string{
	TaskSummarize: "Summarize the content in one short paragraph.",
	TaskKeyPoints: `List the key points of the content as {"points": ["..."]}.`,
	TaskSentiment: `Classify the overall sentiment as {"label": "positive|neutral|negative", "score": -1..1, "explanation": "..."}.`,
	TaskEntities:  `List the named entities as {"entities": [{"name": "...", "type": "person|organization|location|product|other"}]}.`,
	TaskQA:        "Answer the question using only the content. Say so when the content does not contain the answer.",
}

func analysisPrompt(task Task, title, text, question string) (ai.Prompt, ai.Options) {
	var b strings.Builder
	b.WriteString(taskInstructions[task])
	b.WriteString("\n\n")
	if title != "" {
		fmt.Fprintf(&b, "Title: %s\n", title)
	}
	fmt.Fprintf(&b, "Content:\n%s", text)
	if task == TaskQA {
		fmt.Fprintf(&b, "\n\nQuestion: %s", question)
	}

	opts := ai.Options{}
	switch task {
	case TaskKeyPoints, TaskSentiment, TaskEntities:
		opts.JSON = true
	}
	return ai.Prompt{
		System:   analystSystem,
		Messages: []ai.Message{{Role: ai.RoleUser, Content: b.String()}},
	}, opts
}

const navigateSystem = `You turn browser requests into one action.
Actions:
- open_url: open a specific site or page; set "url".
- search: run a web search; set "query".
- switch_tab: focus an open tab; set "tab_id".
- close_tab: close an open tab; set "tab_id".
Answer as {"action": "...", "url": "...", "query": "...", "tab_id": "...", "reason": "..."}.
Only use tab ids from the open tabs list.`

func navigatePrompt(query string, sess *session.BrowserSession) ai.Prompt {
	var b strings.Builder
	if tabs := tabList(sess); tabs != "" {
		b.WriteString("Open tabs:\n")
		b.WriteString(tabs)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Request: %s", query)
	return ai.Prompt{
		System:   navigateSystem,
		Messages: []ai.Message{{Role: ai.RoleUser, Content: b.String()}},
	}
}

const chatBase = "You are Orbit, an assistant built into a spatial web browser. Be concise."

func chatSystem(sess *session.BrowserSession) string {
	if sess == nil {
		return chatBase
	}
	var b strings.Builder
	b.WriteString(chatBase)
	if tabs := tabList(sess); tabs != "" {
		b.WriteString("\n\nThe user's open tabs:\n")
		b.WriteString(tabs)
	}
	if len(sess.AIContext) > 0 {
		if ctx, err := sonic.MarshalString(sess.AIContext); err == nil {
			b.WriteString("\n\nSession context:\n")
			b.WriteString(scraper.TruncateText(ctx, maxContextChars))
		}
	}
	return b.String()
}

// tabList renders one line per tab: id, title and url.
func tabList(sess *session.BrowserSession) string {
	if sess == nil || len(sess.Tabs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range sess.Tabs {
		title := t.Title
		if title == "" {
			title = hostOf(t.URL)
		}
		active := ""
		if sess.ActiveTabID != nil && *sess.ActiveTabID == t.ID {
			active = " (active)"
		}
		fmt.Fprintf(&b, "- %s | %s | %s%s\n", t.ID, title, t.URL, active)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func suggestPrompt(goal, target string) ai.Prompt {
	types := make([]string, len(automation.ActionTypes))
	for i, t := range automation.ActionTypes {
		types[i] = string(t)
	}
	system := fmt.Sprintf(`You design browser automation workflows.
Action types: %s.
click, fill and hover need a CSS "selector"; fill and press need a "value"; wait may set "wait_ms".
extract stores text under params.key.
Answer as {"name": "...", "description": "...", "category": "...", "actions": [{"type": "...", "selector": "...", "value": "...", "wait_ms": 0, "params": {}}]}.`,
		strings.Join(types, ", "))

	return ai.Prompt{
		System: system,
		Messages: []ai.Message{{
			Role:    ai.RoleUser,
			Content: fmt.Sprintf("Site: %s (%s)\nGoal: %s", hostOf(target), target, goal),
		}},
	}
}
