package tracing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/shared/id"
)

// TraceID identifies one request flow.
type TraceID string

// SpanID identifies one operation within a trace.
type SpanID string

// Span is a timed operation. Spans started without a tracer in the context
// are still timed but never reported.
type Span struct {
	TraceID  TraceID
	SpanID   SpanID
	ParentID SpanID
	Name     string
	Start    time.Time
	Duration time.Duration
	Attrs    map[string]string
	Status   int
	Err      error

	tracer *Tracer
	once   sync.Once
}

// Tracer logs finished spans through a buffered collector.
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a tracer and starts its collector.
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, 1024),
		done:    make(chan struct{}),
	}
	go t.collect()
	return t
}

type contextKey int

const (
	traceIDKey contextKey = iota
	spanIDKey
	tracerKey
)

// StartSpan opens a span under the trace in ctx, or a new trace. The returned
// context carries the span and the tracer so Start can open children.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = TraceID(id.NewRequestID())
	}
	span := &Span{
		TraceID:  traceID,
		SpanID:   SpanID(id.Default().Generate().String()),
		ParentID: GetSpanID(ctx),
		Name:     name,
		Start:    time.Now(),
		tracer:   t,
	}

	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID)
	ctx = context.WithValue(ctx, tracerKey, t)
	return span, ctx
}

// Start opens a child span using the tracer carried by ctx.
func Start(ctx context.Context, name string) (*Span, context.Context) {
	if t, ok := ctx.Value(tracerKey).(*Tracer); ok && t != nil {
		return t.StartSpan(ctx, name)
	}
	return &Span{Name: name, Start: time.Now()}, ctx
}

// SetAttr records a key/value on the span.
func (s *Span) SetAttr(key, value string) {
	if s.Attrs == nil {
		s.Attrs = make(map[string]string)
	}
	s.Attrs[key] = value
}

// SetStatus records an HTTP status code.
func (s *Span) SetStatus(code int) {
	s.Status = code
}

// End stamps the duration and reports the span. Only the first call counts.
func (s *Span) End(err error) {
	s.once.Do(func() {
		s.Duration = time.Since(s.Start)
		s.Err = err
		if s.tracer != nil {
			s.tracer.submit(s)
		}
	})
}

func (t *Tracer) submit(span *Span) {
	defer func() {
		// Submitting after Close is a no-op
		_ = recover()
	}()
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("operation", span.Name),
		)
	}
}

func (t *Tracer) collect() {
	defer close(t.done)
	for span := range t.spans {
		t.log(span)
	}
}

func (t *Tracer) log(span *Span) {
	fields := []zap.Field{
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.String("service", t.service),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	if span.Status != 0 {
		fields = append(fields, zap.Int("status", span.Status))
	}
	for k, v := range span.Attrs {
		fields = append(fields, zap.String(k, v))
	}

	if span.Err != nil {
		t.logger.Warn("span completed with error", append(fields, zap.Error(span.Err))...)
		return
	}
	t.logger.Debug("span completed", fields...)
}

// Close drains buffered spans and stops the collector.
func (t *Tracer) Close() {
	t.closeOnce.Do(func() {
		close(t.spans)
		<-t.done
	})
}

// GetTraceID returns the trace id carried by ctx.
func GetTraceID(ctx context.Context) TraceID {
	traceID, _ := ctx.Value(traceIDKey).(TraceID)
	return traceID
}

// GetSpanID returns the current span id carried by ctx.
func GetSpanID(ctx context.Context) SpanID {
	spanID, _ := ctx.Value(spanIDKey).(SpanID)
	return spanID
}

// Fields returns zap fields carrying the trace context of ctx.
func Fields(ctx context.Context) []zap.Field {
	var out []zap.Field
	if traceID := GetTraceID(ctx); traceID != "" {
		out = append(out, zap.String("trace_id", string(traceID)))
	}
	if spanID := GetSpanID(ctx); spanID != "" {
		out = append(out, zap.String("span_id", string(spanID)))
	}
	return out
}
