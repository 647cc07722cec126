package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedTracer() (*Tracer, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return New("orbit-test", zap.New(core)), logs
}

func TestStartSpanInheritsTrace(t *testing.T) {
	tracer, _ := newObservedTracer()
	defer tracer.Close()

	root, ctx := tracer.StartSpan(context.Background(), "root")
	child, _ := tracer.StartSpan(ctx, "child")

	assert.NotEmpty(t, root.TraceID)
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentID)
	assert.NotEqual(t, root.SpanID, child.SpanID)
}

func TestCloseFlushesSpans(t *testing.T) {
	tracer, logs := newObservedTracer()

	span, _ := tracer.StartSpan(context.Background(), "op")
	span.End(nil)
	tracer.Close()

	require.Equal(t, 1, logs.FilterMessage("span completed").Len())

	late, _ := tracer.StartSpan(context.Background(), "late")
	assert.NotPanics(t, func() { late.End(nil) })
}

func TestStartUsesContextTracer(t *testing.T) {
	tracer, logs := newObservedTracer()

	root, ctx := tracer.StartSpan(context.Background(), "request")
	child, _ := Start(ctx, "automation.run")
	child.SetAttr("execution_id", "exec_1")
	child.End(errors.New("boom"))
	child.End(nil)
	root.End(nil)
	tracer.Close()

	assert.Equal(t, root.SpanID, child.ParentID)
	failed := logs.FilterMessage("span completed with error").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "automation.run", failed[0].ContextMap()["operation"])
	assert.Equal(t, "exec_1", failed[0].ContextMap()["execution_id"])
}

func TestStartWithoutTracer(t *testing.T) {
	span, ctx := Start(context.Background(), "detached")
	assert.Empty(t, span.TraceID)
	assert.Empty(t, GetTraceID(ctx))
	assert.NotPanics(t, func() { span.End(nil) })
}

func TestHTTPMiddlewarePropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer, logs := newObservedTracer()

	var seen TraceID
	r := gin.New()
	r.Use(HTTPMiddleware(tracer))
	r.GET("/ping", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderTraceID, "trace-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	tracer.Close()

	assert.Equal(t, TraceID("trace-abc"), seen)
	assert.Equal(t, "trace-abc", w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderSpanID))

	entries := logs.FilterMessage("span completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "GET /ping", entries[0].ContextMap()["operation"])
}

func TestTransportInjectsHeaders(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(HeaderTraceID)
	}))
	defer srv.Close()

	tracer, _ := newObservedTracer()
	defer tracer.Close()
	span, ctx := tracer.StartSpan(context.Background(), "outbound")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := (&http.Client{Transport: &Transport{}}).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, string(span.TraceID), got)
}

func TestFields(t *testing.T) {
	assert.Empty(t, Fields(context.Background()))

	tracer, _ := newObservedTracer()
	defer tracer.Close()
	_, ctx := tracer.StartSpan(context.Background(), "op")
	assert.Len(t, Fields(ctx), 2)
}
