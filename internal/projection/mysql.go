package projection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MySQLReadModel stores the projection in the reservation_read_model table.
var _ ReadModel = (*MySQLReadModel)(nil)

type MySQLReadModel struct {
	db *sql.DB
}

// NewMySQLReadModel returns a read model bound to the given database.
func NewMySQLReadModel(db *sql.DB) *MySQLReadModel {
	if db == nil {
		panic("nil db passed to NewMySQLReadModel")
	}
	return &MySQLReadModel{db: db}
}

// UpsertDetails implements ReadModel.  The ON DUPLICATE KEY branch fills
// every detail column but deliberately leaves status and updated_at alone:
// if a status event was projected first, its result stands.
func (m *MySQLReadModel) UpsertDetails(ctx context.Context, row ReservationRow) error {
	const q = `INSERT INTO reservation_read_model
	             (id, hotel_id, guest_name, check_in, check_out, status, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE
	             hotel_id = VALUES(hotel_id),
	             guest_name = VALUES(guest_name),
	             check_in = VALUES(check_in),
	             check_out = VALUES(check_out),
	             created_at = VALUES(created_at)`
	_, err := m.db.ExecContext(ctx, q,
		row.ID, row.HotelID, row.GuestName, row.CheckIn.UTC(), row.CheckOut.UTC(),
		row.Status, row.CreatedAt.UTC(), row.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("projection: upsert details: %w", err)
	}
	return nil
}

// SetStatus implements ReadModel.  A stub row is created when the Created
// event has not arrived yet; its detail columns are filled in later by
// UpsertDetails.
func (m *MySQLReadModel) SetStatus(ctx context.Context, id, status string, at time.Time) error {
	const q = `INSERT INTO reservation_read_model (id, status, created_at, updated_at)
	           VALUES (?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE
	             status = VALUES(status),
	             updated_at = VALUES(updated_at)`
	if _, err := m.db.ExecContext(ctx, q, id, status, at.UTC(), at.UTC()); err != nil {
		return fmt.Errorf("projection: set status: %w", err)
	}
	return nil
}

// GetByID implements ReadModel.
func (m *MySQLReadModel) GetByID(ctx context.Context, id string) (*ReservationRow, error) {
	const q = `SELECT id, hotel_id, guest_name, check_in, check_out, status, created_at, updated_at
	           FROM reservation_read_model WHERE id = ?`
	row, err := scanRow(m.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return row, err
}

// List implements ReadModel.
func (m *MySQLReadModel) List(ctx context.Context, hotelID, status string) ([]ReservationRow, error) {
	q := `SELECT id, hotel_id, guest_name, check_in, check_out, status, created_at, updated_at
	      FROM reservation_read_model WHERE 1=1`
	var args []interface{}
	if hotelID != "" {
		q += ` AND hotel_id = ?`
		args = append(args, hotelID)
	}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("projection: list: %w", err)
	}
	defer rows.Close()

	var out []ReservationRow
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Truncate implements ReadModel.
func (m *MySQLReadModel) Truncate(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM reservation_read_model`); err != nil {
		return fmt.Errorf("projection: truncate: %w", err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(s scanner) (*ReservationRow, error) {
	var (
		row      ReservationRow
		checkIn  sql.NullTime
		checkOut sql.NullTime
	)
	err := s.Scan(&row.ID, &row.HotelID, &row.GuestName, &checkIn, &checkOut,
		&row.Status, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if checkIn.Valid {
		row.CheckIn = checkIn.Time
	}
	if checkOut.Valid {
		row.CheckOut = checkOut.Time
	}
	return &row, nil
}
