// Package playback plays automation actions against a page.
//
// Two engines are available:
//   - playwright: a real Chromium driven through playwright-community/playwright-go
//   - static: pages fetched over HTTP and queried with CSS or XPath selectors
//
// Both drive the same Page surface, so the action loop, result shape and
// error wording are identical. The static engine has no DOM to interact
// with and fails interactive actions with automation.ErrUnsupportedAction.
//
// Example Usage:
//
//	runner := playback.NewRunner(playback.NewStatic(fetchClient), playback.Options{}, log)
//	result, err := runner.Run(ctx, automation.RunRequest{URL: "https://example.com", Actions: actions})
package playback
