package store

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/alselawi/apexo-database/internal/model"
)

// PostgresStore implements Store for PostgreSQL. Rows live in the rows table,
// change-log entries in the change_log table, both partitioned by
// (tenant, table_name).
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(
	host string,
	port int,
	database, user, password string,
	maxConns, minConns int,
	logger *zap.Logger,
) (*PostgresStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, maxConns, minConns,
	)

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{
		pool:   pool,
		logger: logger,
	}, nil
}

// PutRow idempotently overwrites a row
func (s *PostgresStore) PutRow(ctx context.Context, tenant, table, id, payload string) error {
	if id == "" {
		return ErrEmptyID
	}

	query := `
		INSERT INTO rows (tenant, table_name, id, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant, table_name, id) DO UPDATE SET payload = EXCLUDED.payload
	`

	_, err := s.pool.Exec(ctx, query, tenant, table, id, payload)
	if err != nil {
		return fmt.Errorf("failed to put row: %w", err)
	}

	return nil
}

// GetRows returns the rows with the given ids belonging to tenant
func (s *PostgresStore) GetRows(ctx context.Context, tenant, table string, ids []string) ([]model.Row, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []model.Row{}, nil
	}

	query := `
		SELECT id, payload
		FROM rows
		WHERE tenant = $1 AND table_name = $2 AND id = ANY($3)
	`

	result := make([]model.Row, 0, len(ids))
	for _, batch := range chunk(ids, MaxVariables) {
		rows, err := s.pool.Query(ctx, query, tenant, table, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to get rows: %w", err)
		}

		for rows.Next() {
			row := model.Row{Tenant: tenant}
			if err := rows.Scan(&row.ID, &row.Payload); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan row: %w", err)
			}
			result = append(result, row)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return result, nil
}

// ScanRows returns one page of rows in storage order
func (s *PostgresStore) ScanRows(ctx context.Context, tenant, table string, page, pageSize int64) ([]model.Row, error) {
	// The overflow guard keeps a huge page from reaching Postgres as a
	// negative OFFSET; past-the-end pages are an empty result, not an error.
	if page < 0 || pageSize <= 0 || page > math.MaxInt64/pageSize {
		return []model.Row{}, nil
	}

	query := `
		SELECT id, payload
		FROM rows
		WHERE tenant = $1 AND table_name = $2
		ORDER BY id
		OFFSET $3 LIMIT $4
	`

	rows, err := s.pool.Query(ctx, query, tenant, table, page*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to scan rows: %w", err)
	}
	defer rows.Close()

	result := make([]model.Row, 0)
	for rows.Next() {
		row := model.Row{Tenant: tenant}
		if err := rows.Scan(&row.ID, &row.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

// DeleteRows removes the rows with the given ids
func (s *PostgresStore) DeleteRows(ctx context.Context, tenant, table string, ids []string) error {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil
	}

	query := `DELETE FROM rows WHERE tenant = $1 AND table_name = $2 AND id = ANY($3)`

	for _, batch := range chunk(ids, MaxVariables) {
		if _, err := s.pool.Exec(ctx, query, tenant, table, batch); err != nil {
			return fmt.Errorf("failed to delete rows: %w", err)
		}
	}

	return nil
}

// DeleteAll erases every row and change-log entry for the tenant+table
func (s *PostgresStore) DeleteAll(ctx context.Context, tenant, table string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM rows WHERE tenant = $1 AND table_name = $2`,
		tenant, table,
	); err != nil {
		return fmt.Errorf("failed to delete rows: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM change_log WHERE tenant = $1 AND table_name = $2`,
		tenant, table,
	); err != nil {
		return fmt.Errorf("failed to delete change log: %w", err)
	}

	s.logger.Info("Erased tenant table partition",
		zap.String("tenant", tenant),
		zap.String("table", table))

	return nil
}

// AppendChange records one change-log entry
func (s *PostgresStore) AppendChange(ctx context.Context, tenant, table string, version int64, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		INSERT INTO change_log (tenant, table_name, version, ids)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := s.pool.Exec(ctx, query, tenant, table, version, ids); err != nil {
		return fmt.Errorf("failed to append change: %w", err)
	}

	return nil
}

// ChangesSince returns all entries newer than the baseline version, ascending
func (s *PostgresStore) ChangesSince(ctx context.Context, tenant, table string, version int64) ([]model.ChangeLogEntry, error) {
	query := `
		SELECT version, ids
		FROM change_log
		WHERE tenant = $1 AND table_name = $2 AND version > $3
		ORDER BY version ASC, seq ASC
	`

	rows, err := s.pool.Query(ctx, query, tenant, table, version)
	if err != nil {
		return nil, fmt.Errorf("failed to query change log: %w", err)
	}
	defer rows.Close()

	entries := make([]model.ChangeLogEntry, 0)
	for rows.Next() {
		entry := model.ChangeLogEntry{Tenant: tenant}
		if err := rows.Scan(&entry.Version, &entry.IDs); err != nil {
			return nil, fmt.Errorf("failed to scan change log entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// LatestVersion returns the maximum version ever appended, or 0
func (s *PostgresStore) LatestVersion(ctx context.Context, tenant, table string) (int64, error) {
	query := `
		SELECT COALESCE(MAX(version), 0)
		FROM change_log
		WHERE tenant = $1 AND table_name = $2
	`

	var version int64
	if err := s.pool.QueryRow(ctx, query, tenant, table).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to query latest version: %w", err)
	}

	return version, nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}
