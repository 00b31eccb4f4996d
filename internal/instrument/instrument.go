// Package instrument records timed spans and business events of reader
// requests into the _events table.
package instrument

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const (
	traceIDKey ctxKey = iota
	parentSpanIDKey
	instrumenterKey
	userIDKey
)

// Instrumenter starts spans and emits one-shot business events.
type Instrumenter interface {
	StartSpan(ctx context.Context, source, component, action string) (context.Context, Span)
	EmitBusinessEvent(ctx context.Context, action, entity, recordID string, metadata map[string]any)
}

// Span is a timed operation. End records it; later calls are ignored.
type Span interface {
	End()
	SetStatus(status string)
	SetMetadata(key string, value any)
	SetEntity(entity, recordID string)
	TraceID() string
	SpanID() string
}

// Sink receives finished events.
type Sink interface {
	Enqueue(e Event)
}

// Event is one row of _events.
type Event struct {
	ID           string         `json:"id"`
	TraceID      string         `json:"trace_id"`
	SpanID       string         `json:"span_id"`
	ParentSpanID *string        `json:"parent_span_id"`
	EventType    string         `json:"event_type"` // system or business
	Source       string         `json:"source"`
	Component    string         `json:"component"`
	Action       string         `json:"action"`
	Entity       *string        `json:"entity"`
	RecordID     *string        `json:"record_id"`
	UserID       *string        `json:"user_id"`
	DurationMs   *float64       `json:"duration_ms"`
	Status       *string        `json:"status"`
	Metadata     map[string]any `json:"metadata"`
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

func withParentSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, parentSpanIDKey, spanID)
}

func parentSpanID(ctx context.Context) *string {
	if v, ok := ctx.Value(parentSpanIDKey).(string); ok && v != "" {
		return &v
	}
	return nil
}

func WithInstrumenter(ctx context.Context, inst Instrumenter) context.Context {
	return context.WithValue(ctx, instrumenterKey, inst)
}

// GetInstrumenter returns the instrumenter of ctx, or a no-op one.
func GetInstrumenter(ctx context.Context) Instrumenter {
	if v, ok := ctx.Value(instrumenterKey).(Instrumenter); ok {
		return v
	}
	return NoopInstrumenter{}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func userID(ctx context.Context) *string {
	if v, ok := ctx.Value(userIDKey).(string); ok && v != "" {
		return &v
	}
	return nil
}

// Tracer is the recording Instrumenter.
type Tracer struct {
	sink Sink
}

func NewTracer(sink Sink) *Tracer {
	return &Tracer{sink: sink}
}

// StartSpan opens a span. Spans started from the returned context are its
// children. A context without a trace gets a new one.
func (t *Tracer) StartSpan(ctx context.Context, source, component, action string) (context.Context, Span) {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = WithTraceID(ctx, traceID)
	}
	s := &recordingSpan{
		sink:  t.sink,
		start: time.Now(),
		event: Event{
			TraceID:      traceID,
			SpanID:       uuid.NewString(),
			ParentSpanID: parentSpanID(ctx),
			EventType:    "system",
			Source:       source,
			Component:    component,
			Action:       action,
			UserID:       userID(ctx),
			Metadata:     make(map[string]any),
		},
	}
	return withParentSpanID(ctx, s.event.SpanID), s
}

func (t *Tracer) EmitBusinessEvent(ctx context.Context, action, entity, recordID string, metadata map[string]any) {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	e := Event{
		TraceID:      traceID,
		SpanID:       uuid.NewString(),
		ParentSpanID: parentSpanID(ctx),
		EventType:    "business",
		Source:       "business",
		Component:    "reader",
		Action:       action,
		UserID:       userID(ctx),
		Metadata:     metadata,
	}
	if entity != "" {
		e.Entity = &entity
	}
	if recordID != "" {
		e.RecordID = &recordID
	}
	t.sink.Enqueue(e)
}

type recordingSpan struct {
	mu    sync.Mutex
	sink  Sink
	start time.Time
	event Event
	ended bool
}

func (s *recordingSpan) TraceID() string { return s.event.TraceID }
func (s *recordingSpan) SpanID() string  { return s.event.SpanID }

func (s *recordingSpan) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.event.Status = &status
}

func (s *recordingSpan) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.event.Metadata[key] = value
}

func (s *recordingSpan) SetEntity(entity, recordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.event.Entity = &entity
	if recordID != "" {
		s.event.RecordID = &recordID
	}
}

func (s *recordingSpan) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	ms := float64(time.Since(s.start).Microseconds()) / 1000.0
	s.event.DurationMs = &ms
	e := s.event
	s.mu.Unlock()

	s.sink.Enqueue(e)
}
