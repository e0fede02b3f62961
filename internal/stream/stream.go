package stream

import (
	"context"
	"sync"
	"time"
)

// EventKind distinguishes billing events on the live stream.
type EventKind string

const (
	KindChargeCreated  EventKind = "charge.created"
	KindObligationPaid EventKind = "obligation.paid"
)

// Event describes one billing event for dashboard consumers. Managers watch
// the stream to see charges fan out and obligations settle in real time.
type Event struct {
	Kind        EventKind `json:"kind"`
	SocietyID   string    `json:"societyId"`
	ChargeID    string    `json:"chargeId"`
	MemberID    string    `json:"memberId,omitempty"`
	Amount      int64     `json:"amount"`
	Obligations int       `json:"obligations,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Stream fans out billing events to all active subscribers (SSE clients).
// A slow subscriber drops events instead of blocking publishers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a consumer. The returned channel closes when ctx ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Publish delivers the event to every subscriber without blocking.
func (s *Stream) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// drop for slow consumers
		}
	}
}

// Subscribers reports the number of active consumers.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
