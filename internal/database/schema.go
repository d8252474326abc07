package database

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the event store and read model tables when they do
// not exist yet.  The UNIQUE KEY on (stream_id, version) is load-bearing:
// it is what turns the optimistic-concurrency check into a constraint the
// database enforces at commit time.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			stream_id     VARCHAR(64)  NOT NULL,
			version       INT UNSIGNED NOT NULL,
			event_type    VARCHAR(64)  NOT NULL,
			event_data    JSON         NOT NULL,
			metadata      JSON         NULL,
			occurred_at   DATETIME(6)  NOT NULL,
			published_at  DATETIME(6)  NULL,
			PRIMARY KEY (id),
			UNIQUE KEY uq_stream_version (stream_id, version),
			KEY idx_event_type (event_type),
			KEY idx_occurred_at (occurred_at),
			KEY idx_published_at (published_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS reservation_read_model (
			id          VARCHAR(64)  NOT NULL,
			hotel_id    VARCHAR(64)  NOT NULL DEFAULT '',
			guest_name  VARCHAR(255) NOT NULL DEFAULT '',
			check_in    DATETIME     NULL,
			check_out   DATETIME     NULL,
			status      VARCHAR(16)  NOT NULL,
			created_at  DATETIME(6)  NOT NULL,
			updated_at  DATETIME(6)  NOT NULL,
			PRIMARY KEY (id),
			KEY idx_hotel_id (hotel_id),
			KEY idx_status (status)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database: ensure schema: %w", err)
		}
	}
	return nil
}
