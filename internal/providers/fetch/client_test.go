package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/Orbit/backend/internal/shared/utils"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Hello</title></head><body><p>héllo</p></body></html>`))
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<html><body><p>caf\xe9</p></body></html>"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("a", 2048)))
	})
	mux.HandleFunc("/image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient() *Client {
	return NewClient(Options{Timeout: 5 * time.Second, MaxBytes: 1024})
}

func TestFetchPage(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient()

	page, err := c.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "utf-8", page.Charset)
	assert.Contains(t, page.HTML, "héllo")
	assert.Equal(t, srv.URL+"/page", page.URL)
}

func TestFetchDecodesDeclaredCharset(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient()

	page, err := c.Fetch(context.Background(), srv.URL+"/latin1")
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "café")
}

func TestFetchFailures(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient()
	ctx := context.Background()

	tests := []struct {
		path   string
		status int
		reason string
	}{
		{"/missing", http.StatusNotFound, "Not Found"},
		{"/broken", http.StatusInternalServerError, "Internal Server Error"},
		{"/big", http.StatusOK, "exceeds"},
		{"/image", http.StatusOK, "not a text document"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := c.Fetch(ctx, srv.URL+tt.path)
			require.ErrorIs(t, err, ErrFetch)
			var fe *Error
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.status, fe.StatusCode)
			assert.Contains(t, fe.Reason, tt.reason)
		})
	}
}

func TestFetchRejectsNonHTTP(t *testing.T) {
	c := newTestClient()
	for _, u := range []string{"", "about:blank", "ftp://example.com", "file:///etc/passwd"} {
		_, err := c.Fetch(context.Background(), u)
		assert.True(t, utils.IsValidationError(err), u)
	}
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient()

	for i := 0; i < 15; i++ {
		_, _ = c.Fetch(context.Background(), srv.URL+"/missing")
	}
	assert.Equal(t, resilience.StateClosed, c.Breaker.State())

	for i := 0; i < 10; i++ {
		_, _ = c.Fetch(context.Background(), srv.URL+"/broken")
	}
	assert.Equal(t, resilience.StateOpen, c.Breaker.State())

	_, err := c.Fetch(context.Background(), srv.URL+"/page")
	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "circuit open", fe.Reason)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestFetchHonorsCanceledContext(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient()
	c.SetRateLimit(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, srv.URL+"/page")
	assert.ErrorIs(t, err, ErrFetch)
	assert.Equal(t, resilience.StateClosed, c.Breaker.State())
}

func TestDecodeFallsBackToDetection(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		contentType string
		wantText    string
		wantCharset string
	}{
		{"undeclared ascii", []byte("<p>plain ascii</p>"), "", "<p>plain ascii</p>", "utf-8"},
		{"undeclared utf-8", []byte("<p>naïve café</p>"), "text/html", "<p>naïve café</p>", "utf-8"},
		{"declared latin1", []byte("<p>caf\xe9</p>"), "text/html; charset=iso-8859-1", "<p>café</p>", "windows-1252"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, name := decode(tt.data, tt.contentType)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantCharset, name)
		})
	}
}
