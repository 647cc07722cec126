// Package assistant turns page content and natural-language requests into
// AI provider calls: content analysis, navigation intents, chat and
// workflow drafts. The service holds no state of its own; session context
// is read from the session manager on each request.
package assistant
