// Package fetch downloads web pages for content analysis and static playback.
//
// Built on go-resty/resty over a hashicorp/go-retryablehttp transport:
//   - Retries with exponential backoff on 5xx and connection errors
//   - Per-client rate limiting (golang.org/x/time/rate)
//   - Circuit breaker that only counts upstream failures
//   - Body size cap and rejection of non-text content (mimetype sniffing)
//   - Charset decoding from the header, the document, or chardet detection
//
// Example Usage:
//
//	client := fetch.NewClient(fetch.Options{Timeout: 15 * time.Second})
//	page, err := client.Fetch(ctx, "https://example.com")
package fetch
