package eventstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/event"
)

// memoryEntry is one committed event in the global log.
type memoryEntry struct {
	StoredEvent
	storedAt  time.Time
	published bool
}

// MemoryStore is an in-process EventStore and Outbox with the same
// semantics as the MySQL implementation.  Not durable.
var (
	_ EventStore = (*MemoryStore)(nil)
	_ Outbox     = (*MemoryStore)(nil)
)

type MemoryStore struct {
	mu      sync.Mutex
	log     []*memoryEntry            // commit order across all streams
	streams map[string][]*memoryEntry // per-stream, ascending version
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{streams: make(map[string][]*memoryEntry)}
}

// AppendEvents implements EventStore.  The mutex makes the version check
// and the insert one atomic step, so of two racing writers exactly one
// commits.
func (s *MemoryStore) AppendEvents(ctx context.Context, streamID string, events []event.DomainEvent, expectedVersion int) error {
	if len(events) == 0 {
		return nil
	}
	if expectedVersion < 0 {
		return fmt.Errorf("eventstore: negative expected version %d", expectedVersion)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	actual := len(s.streams[streamID])
	if actual != expectedVersion {
		return &ConcurrencyError{StreamID: streamID, Expected: expectedVersion, Actual: actual}
	}
	now := time.Now().UTC()
	for i, ev := range events {
		version := expectedVersion + i + 1
		if v, ok := ev.(versioned); ok {
			v.SetEventVersion(version)
		}
		entry := &memoryEntry{
			StoredEvent: StoredEvent{StreamID: streamID, Version: version, Event: ev},
			storedAt:    now,
		}
		s.streams[streamID] = append(s.streams[streamID], entry)
		s.log = append(s.log, entry)
	}
	return nil
}

// GetEvents implements EventStore.
func (s *MemoryStore) GetEvents(ctx context.Context, streamID string) ([]event.DomainEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.streams[streamID]
	out := make([]event.DomainEvent, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Event)
	}
	return out, nil
}

// GetEventsByType implements EventStore.  Results are ordered by occurrence
// time with commit order as the tiebreaker, matching the SQL query.
func (s *MemoryStore) GetEventsByType(ctx context.Context, eventType string, limit int) ([]event.DomainEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []event.DomainEvent
	for _, e := range s.log {
		if e.Event.EventType() == eventType {
			out = append(out, e.Event)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt().Before(out[j].OccurredAt())
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetVersion implements EventStore.
func (s *MemoryStore) GetVersion(ctx context.Context, streamID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams[streamID]), nil
}

// Unpublished implements Outbox.
func (s *MemoryStore) Unpublished(ctx context.Context, olderThan time.Duration, limit int) ([]StoredEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []StoredEvent
	for _, e := range s.log {
		if e.published || e.storedAt.After(cutoff) {
			continue
		}
		out = append(out, e.StoredEvent)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkPublished implements Outbox.
func (s *MemoryStore) MarkPublished(ctx context.Context, streamID string, versions []int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[int]bool, len(versions))
	for _, v := range versions {
		want[v] = true
	}
	for _, e := range s.streams[streamID] {
		if want[e.Version] {
			e.published = true
		}
	}
	return nil
}
