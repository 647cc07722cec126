// Package ai wraps large language model providers behind a single
// completion interface.
//
// The OpenAI provider speaks the chat completions API through
// openai/openai-go and works with any compatible endpoint via BaseURL.
// Calls run through a circuit breaker and report latency to monitoring.
// Failures surface as *ProviderError carrying a short reason that the
// HTTP layer passes through to clients.
package ai
