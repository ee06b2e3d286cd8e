package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/perfgate/perfgate/internal/budget"
	"github.com/perfgate/perfgate/internal/perf"
)

const migrationUp = `
CREATE TABLE IF NOT EXISTS perf_history (
    id          UUID PRIMARY KEY,
    test_name   TEXT        NOT NULL,
    ts          TIMESTAMPTZ NOT NULL,
    environment TEXT        NOT NULL,
    snapshot    JSONB       NOT NULL,
    validation  JSONB       NOT NULL,
    metadata    JSONB       NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_perf_history_test_name ON perf_history (test_name);
CREATE INDEX IF NOT EXISTS idx_perf_history_ts        ON perf_history (ts DESC);
`

// PostgresStore is the shared-backend alternative to FileStore, for
// teams recording runs from several CI workers into one database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func Connect(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to history database: %w", err)
	}

	store := NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationUp)
	if err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Record(ctx context.Context, entry Entry) error {
	snapshotJSON, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	validationJSON, err := json.Marshal(entry.Validation)
	if err != nil {
		return fmt.Errorf("encoding validation: %w", err)
	}
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO perf_history (id, test_name, ts, environment, snapshot, validation, metadata)
		VALUES ($1, $2, GREATEST($3, COALESCE((
			SELECT max(ts) FROM perf_history WHERE test_name = $2
		), $3)), $4, $5, $6, $7)`,
		entry.ID, entry.TestName, entry.Timestamp, entry.Environment,
		snapshotJSON, validationJSON, metadataJSON)
	if err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}

	return s.pruneTest(ctx, entry.TestName)
}

// pruneTest applies the same dual retention as FileStore: drop rows
// outside the rolling window, then rows beyond the per-test cap.
func (s *PostgresStore) pruneTest(ctx context.Context, testName string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM perf_history
		WHERE test_name = $1 AND ts < now() - $2::interval`,
		testName, fmt.Sprintf("%d hours", int(RetentionWindow.Hours())))
	if err != nil {
		return fmt.Errorf("pruning expired entries: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		DELETE FROM perf_history
		WHERE id IN (
			SELECT id FROM perf_history
			WHERE test_name = $1
			ORDER BY ts DESC
			OFFSET $2
		)`, testName, RetentionCap)
	if err != nil {
		return fmt.Errorf("pruning capped entries: %w", err)
	}

	return nil
}

func (s *PostgresStore) History(ctx context.Context, testName string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, test_name, ts, environment, snapshot, validation, metadata
		FROM perf_history
		WHERE test_name = $1
		ORDER BY ts ASC`, testName)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var snapshotJSON, validationJSON, metadataJSON []byte

		if err := rows.Scan(&entry.ID, &entry.TestName, &entry.Timestamp,
			&entry.Environment, &snapshotJSON, &validationJSON, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}

		var snapshot perf.Snapshot
		if err := json.Unmarshal(snapshotJSON, &snapshot); err != nil {
			return nil, fmt.Errorf("decoding snapshot: %w", err)
		}
		var validation budget.ValidationResult
		if err := json.Unmarshal(validationJSON, &validation); err != nil {
			return nil, fmt.Errorf("decoding validation: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}

		entry.Snapshot = snapshot
		entry.Validation = validation
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (s *PostgresStore) Tests(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT test_name FROM perf_history ORDER BY test_name`)
	if err != nil {
		return nil, fmt.Errorf("querying test names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning test name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}
