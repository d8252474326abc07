package projection

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noRowsScanner struct{}

func (noRowsScanner) Scan(dest ...interface{}) error {
	return fmt.Errorf("scan: %w", sql.ErrNoRows)
}

// GetByID treats a missing row as (nil, nil) by matching sql.ErrNoRows with
// errors.Is, so the sentinel must stay recognizable even when wrapped.
func TestScanRowKeepsNoRowsRecognizable(t *testing.T) {
	row, err := scanRow(noRowsScanner{})
	assert.Nil(t, row)
	require.ErrorIs(t, err, sql.ErrNoRows)
}
