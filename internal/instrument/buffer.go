package instrument

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reader-backend/internal/store"
)

var eventColumns = []string{
	"id", "trace_id", "span_id", "parent_span_id", "event_type", "source", "component",
	"action", "entity", "record_id", "user_id", "duration_ms", "status", "metadata",
}

// EventBuffer collects events in memory and writes them to _events in
// batches, on a timer or when maxSize events are pending.
type EventBuffer struct {
	store   *store.Store
	maxSize int

	mu     sync.Mutex
	events []Event

	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewEventBuffer(s *store.Store, maxSize, flushIntervalMs int) *EventBuffer {
	if maxSize <= 0 {
		maxSize = 500
	}
	if flushIntervalMs <= 0 {
		flushIntervalMs = 100
	}
	eb := &EventBuffer{
		store:   s,
		maxSize: maxSize,
		ticker:  time.NewTicker(time.Duration(flushIntervalMs) * time.Millisecond),
		done:    make(chan struct{}),
	}
	eb.wg.Add(1)
	go eb.run()
	return eb
}

func (eb *EventBuffer) run() {
	defer eb.wg.Done()
	for {
		select {
		case <-eb.done:
			return
		case <-eb.ticker.C:
			eb.Flush(context.Background())
		}
	}
}

// Enqueue adds an event. A full buffer is flushed in the background.
func (eb *EventBuffer) Enqueue(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	eb.mu.Lock()
	eb.events = append(eb.events, e)
	full := len(eb.events) >= eb.maxSize
	eb.mu.Unlock()
	if full {
		go eb.Flush(context.Background())
	}
}

// Pending returns the number of events not yet written.
func (eb *EventBuffer) Pending() int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return len(eb.events)
}

// Flush writes all pending events in one transaction. Failed batches are
// logged and dropped.
func (eb *EventBuffer) Flush(ctx context.Context) {
	eb.mu.Lock()
	batch := eb.events
	eb.events = nil
	eb.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	if err := eb.write(ctx, batch); err != nil {
		log.Printf("ERROR: event buffer: %v (%d events dropped)", err, len(batch))
	}
}

func (eb *EventBuffer) write(ctx context.Context, batch []Event) error {
	tx, err := eb.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if eb.store.Dialect.Name() == "postgres" {
		if _, err := tx.ExecContext(ctx, "SET LOCAL synchronous_commit = off"); err != nil {
			return fmt.Errorf("set synchronous_commit: %w", err)
		}
	}

	pb := eb.store.Dialect.NewParamBuilder()
	rows := make([]string, len(batch))
	for i, e := range batch {
		var meta any
		if len(e.Metadata) > 0 {
			b, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata of %s: %w", e.Action, err)
			}
			meta = string(b)
		}
		vals := []any{e.ID, e.TraceID, e.SpanID, e.ParentSpanID, e.EventType, e.Source, e.Component,
			e.Action, e.Entity, e.RecordID, e.UserID, e.DurationMs, e.Status, meta}
		phs := make([]string, len(vals))
		for j, v := range vals {
			phs[j] = pb.Add(v)
		}
		rows[i] = "(" + strings.Join(phs, ", ") + ")"
	}

	q := fmt.Sprintf("INSERT INTO _events (%s) VALUES %s", strings.Join(eventColumns, ", "), strings.Join(rows, ", "))
	if _, err := tx.ExecContext(ctx, q, pb.Params()...); err != nil {
		return fmt.Errorf("insert events: %w", err)
	}
	return tx.Commit()
}

// Stop halts the timer and writes what is left.
func (eb *EventBuffer) Stop() {
	eb.ticker.Stop()
	close(eb.done)
	eb.wg.Wait()
	eb.Flush(context.Background())
}
