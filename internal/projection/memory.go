package projection

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryReadModel is the in-process ReadModel used by the test suite.  Its
// write semantics mirror the MySQL implementation exactly, including the
// stub rows created by out-of-order status events.
var _ ReadModel = (*MemoryReadModel)(nil)

type MemoryReadModel struct {
	mu   sync.Mutex
	rows map[string]*ReservationRow
}

// NewMemoryReadModel returns an empty read model.
func NewMemoryReadModel() *MemoryReadModel {
	return &MemoryReadModel{rows: make(map[string]*ReservationRow)}
}

// UpsertDetails implements ReadModel.
func (m *MemoryReadModel) UpsertDetails(ctx context.Context, row ReservationRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.rows[row.ID]; ok {
		existing.HotelID = row.HotelID
		existing.GuestName = row.GuestName
		existing.CheckIn = row.CheckIn
		existing.CheckOut = row.CheckOut
		existing.CreatedAt = row.CreatedAt
		return nil
	}
	cp := row
	m.rows[row.ID] = &cp
	return nil
}

// SetStatus implements ReadModel.
func (m *MemoryReadModel) SetStatus(ctx context.Context, id, status string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.rows[id]; ok {
		existing.Status = status
		existing.UpdatedAt = at
		return nil
	}
	m.rows[id] = &ReservationRow{ID: id, Status: status, CreatedAt: at, UpdatedAt: at}
	return nil
}

// GetByID implements ReadModel.
func (m *MemoryReadModel) GetByID(ctx context.Context, id string) (*ReservationRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

// List implements ReadModel.
func (m *MemoryReadModel) List(ctx context.Context, hotelID, status string) ([]ReservationRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ReservationRow
	for _, row := range m.rows {
		if hotelID != "" && row.HotelID != hotelID {
			continue
		}
		if status != "" && row.Status != status {
			continue
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Truncate implements ReadModel.
func (m *MemoryReadModel) Truncate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = make(map[string]*ReservationRow)
	return nil
}
