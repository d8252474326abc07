package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/hotel-reservation/internal/event"
)

// MySQLStore persists events in the events table described in
// internal/database.  The UNIQUE(stream_id, version) key backs the
// optimistic-concurrency check at commit time.
var (
	_ EventStore = (*MySQLStore)(nil)
	_ Outbox     = (*MySQLStore)(nil)
)

type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore returns a store bound to the given database.  The pool is
// shared across all streams; there is no per-stream connection.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	if db == nil {
		panic("nil db passed to NewMySQLStore")
	}
	return &MySQLStore{db: db}
}

// versioned is satisfied by every event embedding event.Base.  The store
// stamps versions at append time so the stream owns its numbering.
type versioned interface {
	SetEventVersion(v int)
}

// AppendEvents implements EventStore.  It reads the current max version
// under a row lock and compares it to expectedVersion, then inserts the
// batch.  The unique key remains the backstop: a racing writer that slips
// past the read still collides on the constraint and is reported as the
// same ConcurrencyError.  No row is visible unless the whole batch commits.
func (s *MySQLStore) AppendEvents(ctx context.Context, streamID string, events []event.DomainEvent, expectedVersion int) error {
	if len(events) == 0 {
		return nil
	}
	if expectedVersion < 0 {
		return fmt.Errorf("eventstore: negative expected version %d", expectedVersion)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("eventstore: begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var actual int
	const cur = `SELECT COALESCE(MAX(version), 0) FROM events WHERE stream_id = ? FOR UPDATE`
	if err := tx.QueryRowContext(ctx, cur, streamID).Scan(&actual); err != nil {
		return fmt.Errorf("eventstore: read stream version: %w", err)
	}
	if actual != expectedVersion {
		return &ConcurrencyError{StreamID: streamID, Expected: expectedVersion, Actual: actual}
	}

	const ins = `INSERT INTO events (stream_id, version, event_type, event_data, metadata, occurred_at)
	             VALUES (?, ?, ?, ?, ?, ?)`
	for i, ev := range events {
		version := expectedVersion + i + 1
		if v, ok := ev.(versioned); ok {
			v.SetEventVersion(version)
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("eventstore: marshal %s: %w", ev.EventType(), err)
		}
		var meta []byte
		if m := ev.EventMetadata(); len(m) > 0 {
			if meta, err = json.Marshal(m); err != nil {
				return fmt.Errorf("eventstore: marshal metadata: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, ins, streamID, version, ev.EventType(), data, meta, ev.OccurredAt().UTC()); err != nil {
			if isVersionRace(err) {
				// A concurrent transaction won the version race after our
				// read.  Release our locks, then report the version it
				// produced.
				_ = tx.Rollback()
				won, verr := s.GetVersion(ctx, streamID)
				if verr != nil {
					won = actual
				}
				return &ConcurrencyError{StreamID: streamID, Expected: expectedVersion, Actual: won}
			}
			return fmt.Errorf("eventstore: insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("eventstore: commit: %w", err)
	}
	committed = true
	return nil
}

// GetEvents implements EventStore.
func (s *MySQLStore) GetEvents(ctx context.Context, streamID string) ([]event.DomainEvent, error) {
	const q = `SELECT event_type, event_data FROM events WHERE stream_id = ? ORDER BY version ASC`
	rows, err := s.db.QueryContext(ctx, q, streamID)
	if err != nil {
		return nil, fmt.Errorf("eventstore: query stream: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetEventsByType implements EventStore.  Results are ordered by occurrence
// time with the surrogate key as a tiebreaker, which is the order the
// projection rebuild path depends on.
func (s *MySQLStore) GetEventsByType(ctx context.Context, eventType string, limit int) ([]event.DomainEvent, error) {
	q := `SELECT event_type, event_data FROM events WHERE event_type = ? ORDER BY occurred_at ASC, id ASC`
	args := []interface{}{eventType}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("eventstore: query by type: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetVersion implements EventStore.
func (s *MySQLStore) GetVersion(ctx context.Context, streamID string) (int, error) {
	const q = `SELECT COALESCE(MAX(version), 0) FROM events WHERE stream_id = ?`
	var v int
	if err := s.db.QueryRowContext(ctx, q, streamID).Scan(&v); err != nil {
		return 0, fmt.Errorf("eventstore: read stream version: %w", err)
	}
	return v, nil
}

// Unpublished implements Outbox.
func (s *MySQLStore) Unpublished(ctx context.Context, olderThan time.Duration, limit int) ([]StoredEvent, error) {
	q := `SELECT stream_id, version, event_type, event_data FROM events
	      WHERE published_at IS NULL AND occurred_at <= ? ORDER BY id ASC`
	args := []interface{}{time.Now().UTC().Add(-olderThan)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("eventstore: query unpublished: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			streamID  string
			version   int
			eventType string
			data      []byte
		)
		if err := rows.Scan(&streamID, &version, &eventType, &data); err != nil {
			return nil, fmt.Errorf("eventstore: scan unpublished: %w", err)
		}
		ev, err := event.Decode(eventType, data)
		if err != nil {
			return nil, err
		}
		out = append(out, StoredEvent{StreamID: streamID, Version: version, Event: ev})
	}
	return out, rows.Err()
}

// MarkPublished implements Outbox.
func (s *MySQLStore) MarkPublished(ctx context.Context, streamID string, versions []int) error {
	if len(versions) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(versions)), ",")
	q := fmt.Sprintf(`UPDATE events SET published_at = UTC_TIMESTAMP(6)
	                  WHERE stream_id = ? AND published_at IS NULL AND version IN (%s)`, placeholders)
	args := make([]interface{}, 0, len(versions)+1)
	args = append(args, streamID)
	for _, v := range versions {
		args = append(args, v)
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("eventstore: mark published: %w", err)
	}
	return nil
}

func scanEvents(rows *sql.Rows) ([]event.DomainEvent, error) {
	var out []event.DomainEvent
	for rows.Next() {
		var (
			eventType string
			data      []byte
		)
		if err := rows.Scan(&eventType, &data); err != nil {
			return nil, fmt.Errorf("eventstore: scan event: %w", err)
		}
		ev, err := event.Decode(eventType, data)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// isVersionRace reports whether an insert failed because a concurrent
// writer took the same version slot.  1062 is the duplicate-key error from
// the UNIQUE(stream_id, version) constraint.  1213 is a deadlock rollback:
// on an empty stream the locking read only takes a gap lock, which two
// transactions can hold at once, so the loser of the racing first inserts
// is rolled back with ER_LOCK_DEADLOCK instead of a duplicate key.
func isVersionRace(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == 1062 || me.Number == 1213
}
