// Package events is an in-process, best-effort feed of agent activity.
//
// Events go into a bounded ring shared by every investigation. A session
// carried in the context additionally records its own events so they can be
// persisted with the investigation. Nothing here survives a restart.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/bsdetector/internal/model"
)

const (
	// DefaultCapacity is the number of events retained in the ring
	DefaultCapacity = 500

	// DefaultSessionGrace is how long a session's events outlive EndSession
	DefaultSessionGrace = 60 * time.Second
)

type sessionLog struct {
	events []model.AgentEvent
	closed bool
}

// Bus is a bounded, concurrency-safe event log
type Bus struct {
	mu     sync.Mutex
	ring   []model.AgentEvent
	oldest int   // ring index of the oldest retained event
	count  int   // events currently retained
	next   int64 // sequence number of the next event
	lastTS int64

	sessions *gocache.Cache
	grace    time.Duration
	now      func() time.Time
}

// NewBus creates a bus retaining capacity events. Zero values fall back to
// the defaults.
func NewBus(capacity int, grace time.Duration) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if grace <= 0 {
		grace = DefaultSessionGrace
	}
	return &Bus{
		ring:     make([]model.AgentEvent, capacity),
		sessions: gocache.New(gocache.NoExpiration, grace),
		grace:    grace,
		now:      time.Now,
	}
}

// Push appends an event to the log and to the session carried by ctx
func (b *Bus) Push(ctx context.Context, typ model.EventType, message string) model.AgentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ts := b.now().UnixMilli()
	if ts < b.lastTS {
		ts = b.lastTS
	}
	b.lastTS = ts

	ev := model.AgentEvent{Type: typ, Message: message, Timestamp: ts, Seq: b.next}
	b.next++

	capacity := len(b.ring)
	if b.count < capacity {
		b.ring[(b.oldest+b.count)%capacity] = ev
		b.count++
	} else {
		b.ring[b.oldest] = ev
		b.oldest = (b.oldest + 1) % capacity
	}

	if s := SessionFrom(ctx); s != nil {
		if v, ok := b.sessions.Get(s.ID); ok {
			log := v.(*sessionLog)
			if !log.closed {
				log.events = append(log.events, ev)
			}
		}
	}

	return ev
}

// Head returns the cursor just past the newest event
func (b *Bus) Head() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

// ReadFrom returns the retained events at or after cursor and the cursor to
// use next. Cursors older than the retained window resume at the oldest
// event still held.
func (b *Bus) ReadFrom(cursor int64) ([]model.AgentEvent, int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	first := b.next - int64(b.count)
	if cursor < first {
		cursor = first
	}
	if cursor >= b.next {
		return nil, b.next
	}

	n := int(b.next - cursor)
	out := make([]model.AgentEvent, n)
	offset := int(cursor - first)
	for i := 0; i < n; i++ {
		out[i] = b.ring[(b.oldest+offset+i)%len(b.ring)]
	}
	return out, b.next
}

// StartSession opens a session and returns a context that carries it
func (b *Bus) StartSession(ctx context.Context) (context.Context, *Session) {
	b.mu.Lock()
	s := &Session{ID: uuid.NewString(), Start: b.next}
	b.sessions.Set(s.ID, &sessionLog{}, gocache.NoExpiration)
	b.mu.Unlock()

	return WithSession(ctx, s), s
}

// EndSession stops recording for id and drops its events after the grace
// period.
func (b *Bus) EndSession(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.sessions.Get(id)
	if !ok {
		return
	}
	log := v.(*sessionLog)
	log.closed = true
	b.sessions.Set(id, log, b.grace)
}

// SessionEvents returns a copy of the events recorded for id, or nil when
// the session is unknown or has expired.
func (b *Bus) SessionEvents(id string) []model.AgentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.sessions.Get(id)
	if !ok {
		return nil
	}
	log := v.(*sessionLog)
	out := make([]model.AgentEvent, len(log.events))
	copy(out, log.events)
	return out
}

// Subscribe polls the log every interval, starting at the current head, and
// delivers new events until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, interval time.Duration) <-chan model.AgentEvent {
	if interval <= 0 {
		interval = 300 * time.Millisecond
	}
	ch := make(chan model.AgentEvent, 64)
	cursor := b.Head()

	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var batch []model.AgentEvent
				batch, cursor = b.ReadFrom(cursor)
				for _, ev := range batch {
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}
