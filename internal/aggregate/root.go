// Package aggregate contains the reservation aggregate and the small
// contract every event-sourced aggregate in this codebase satisfies.  An
// aggregate is pure: it validates commands and folds events, and performs
// no I/O of any kind.
package aggregate

import "github.com/iliyamo/hotel-reservation/internal/event"

// Root is the contract the repository works against.  Concrete aggregates
// embed Base for the bookkeeping and implement ApplyEvent themselves.
type Root interface {
	// ID returns the stream identifier.
	ID() string
	// Version is the number of events folded into the state so far.
	Version() int
	// LoadedVersion is the stream version the aggregate was at when it was
	// loaded (or last saved).  It is tracked explicitly rather than derived
	// from Version minus the buffer length, so the save-time expected
	// version stays correct even if a caller ever drops buffered events.
	LoadedVersion() int
	// UncommittedEvents returns the events produced since load, in order.
	UncommittedEvents() []event.DomainEvent
	// MarkCommitted clears the buffer after a successful append and moves
	// LoadedVersion up to Version.
	MarkCommitted()
	// ApplyEvent folds a single event into the in-memory state.
	ApplyEvent(ev event.DomainEvent) error
}

// Base carries the identity, version counters and the uncommitted-events
// buffer.  Embedding it keeps aggregates free of inheritance while still
// sharing the bookkeeping.
type Base struct {
	id            string
	version       int
	loadedVersion int
	uncommitted   []event.DomainEvent
}

func (b *Base) ID() string         { return b.id }
func (b *Base) Version() int       { return b.version }
func (b *Base) LoadedVersion() int { return b.loadedVersion }

// UncommittedEvents returns a copy of the buffer so callers cannot mutate
// the aggregate's view of what still needs persisting.
func (b *Base) UncommittedEvents() []event.DomainEvent {
	out := make([]event.DomainEvent, len(b.uncommitted))
	copy(out, b.uncommitted)
	return out
}

// MarkCommitted is called by the repository once the buffered events are
// durable.
func (b *Base) MarkCommitted() {
	b.uncommitted = nil
	b.loadedVersion = b.version
}

// Advance records that one more event has been folded into the state.  The
// id is adopted from the first event of the stream.
func (b *Base) Advance(ev event.DomainEvent) {
	if b.id == "" {
		b.id = ev.AggregateID()
	}
	b.version++
}

// Append buffers a freshly produced event for the next save.
func (b *Base) Append(ev event.DomainEvent) {
	b.uncommitted = append(b.uncommitted, ev)
}

// MarkLoaded pins LoadedVersion to the current version after a replay.
func (b *Base) MarkLoaded() {
	b.loadedVersion = b.version
}
