// Package scraper turns fetched HTML into text the assistant and the static
// automation runner can work with.
//
// Built on specialized libraries:
//   - goquery: jQuery-like CSS selectors and main-content heuristics
//   - htmlquery: XPath support for HTML
//   - bluemonday: HTML sanitization
//   - chardet: Character encoding detection
//
// Example Usage:
//
//	content, err := scraper.Extract(page.HTML, page.URL)
//	headlines, err := scraper.Query(page.HTML, "h1, h2", true)
//	price, err := scraper.Query(page.HTML, "xpath=//span[@class='price']", false)
package scraper
