// =============================
// File: internal/events/log.go
// =============================
package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/curvelaunch/curved/internal/domain"
)

// Log is an append-only, in-memory event log. It is the system of record for
// trade results: a caller that lost the direct return value of an operation
// can still recover the executed amounts from the log entry. Entries are
// never mutated or removed.
type Log struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries []domain.Event
	byID    map[uuid.UUID]int
	logger  *zap.Logger
}

// NewLog creates an empty event log.
func NewLog(logger *zap.Logger) *Log {
	l := &Log{
		byID:   make(map[uuid.UUID]int),
		logger: logger.Named("events"),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Append records an event and wakes any waiters.
func (l *Log) Append(evt domain.Event) {
	l.mu.Lock()
	l.byID[evt.ID] = len(l.entries)
	l.entries = append(l.entries, evt)
	l.mu.Unlock()
	l.cond.Broadcast()

	l.logger.Debug("event appended",
		zap.String("id", evt.ID.String()),
		zap.String("type", evt.Type.String()),
		zap.String("pool", evt.Pool.Hex()))
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// From returns a copy of all events at or after cursor. The returned cursor
// is the position to resume from; replaying from an old cursor is always
// valid since the log never truncates.
func (l *Log) From(cursor int) ([]domain.Event, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(l.entries) {
		return nil, len(l.entries)
	}
	out := make([]domain.Event, len(l.entries)-cursor)
	copy(out, l.entries[cursor:])
	return out, len(l.entries)
}

// Find returns the event with the given id, if recorded.
func (l *Log) Find(id uuid.UUID) (domain.Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i, ok := l.byID[id]; ok {
		return l.entries[i], true
	}
	return domain.Event{}, false
}

// WaitFor blocks until the event with the given id is recorded or ctx ends.
// A context deadline surfaces as a timeout error, never as a hang.
func (l *Log) WaitFor(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			l.cond.Broadcast()
		case <-done:
		}
	}()

	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		if i, ok := l.byID[id]; ok {
			return l.entries[i], nil
		}
		if err := ctx.Err(); err != nil {
			return domain.Event{}, domain.Wrap(domain.KindTimeout, "events.WaitFor", err,
				"event %s not observed before context end", id)
		}
		l.cond.Wait()
	}
}

// Subscribe streams events to the returned channel starting at cursor.
// Delivery is backed by the log itself, so a slow consumer delays only its
// own goroutine and never loses entries. The channel closes when ctx ends.
func (l *Log) Subscribe(ctx context.Context, cursor int) <-chan domain.Event {
	out := make(chan domain.Event, 16)
	go func() {
		defer close(out)
		for {
			batch, next := l.From(cursor)
			for _, evt := range batch {
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
			cursor = next
			if !l.waitForMore(ctx, cursor) {
				return
			}
		}
	}()
	return out
}

// waitForMore blocks until the log grows past cursor or ctx ends.
func (l *Log) waitForMore(ctx context.Context, cursor int) bool {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			l.cond.Broadcast()
		case <-done:
		}
	}()

	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.entries) <= cursor {
		if ctx.Err() != nil {
			return false
		}
		l.cond.Wait()
	}
	return true
}
