package store

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS rows (
	tenant     TEXT NOT NULL,
	table_name TEXT NOT NULL,
	id         TEXT NOT NULL,
	payload    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (tenant, table_name, id)
);

CREATE TABLE IF NOT EXISTS change_log (
	seq        BIGSERIAL PRIMARY KEY,
	tenant     TEXT NOT NULL,
	table_name TEXT NOT NULL,
	version    BIGINT NOT NULL,
	ids        TEXT[] NOT NULL
);

CREATE INDEX IF NOT EXISTS change_log_partition_version
	ON change_log (tenant, table_name, version);
`

// Migrate creates the rows and change_log tables if they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to run schema migration: %w", err)
	}
	return nil
}
