package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marshallshelly/fenceorders/pkg/runtime"
)

// DefaultLockID is the advisory lock key shared by every migrator of this
// schema.
const DefaultLockID int64 = 7_341_002_211

// ErrAlreadyApplied is returned by Apply when the version is already applied.
var ErrAlreadyApplied = errors.New("migration already applied")

// ErrNotApplied is returned by Rollback when the version is not applied.
var ErrNotApplied = errors.New("migration not applied")

// Executor executes and tracks database migrations.
type Executor struct {
	db     *runtime.DB
	lockID int64
}

// NewExecutor creates a new migration executor.
func NewExecutor(db *runtime.DB) *Executor {
	return &Executor{db: db, lockID: DefaultLockID}
}

// WithLockID sets a custom advisory lock ID.
func (e *Executor) WithLockID(lockID int64) *Executor {
	e.lockID = lockID
	return e
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (e *Executor) Initialize(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(14) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			applied_at TIMESTAMPTZ,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`
	if _, err := e.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// Records returns every migration record ordered by version.
func (e *Executor) Records(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := e.db.Query(ctx, `
		SELECT version, name, status, applied_at, error
		FROM schema_migrations
		ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var record MigrationRecord
		if err := rows.Scan(&record.Version, &record.Name, &record.Status, &record.AppliedAt, &record.Error); err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Status merges the records with the known migrations; versions without a
// record are pending.
func (e *Executor) Status(ctx context.Context, migrations []Migration) ([]MigrationRecord, error) {
	records, err := e.Records(ctx)
	if err != nil {
		return nil, err
	}
	byVersion := make(map[string]MigrationRecord, len(records))
	for _, r := range records {
		byVersion[r.Version] = r
	}

	status := make([]MigrationRecord, 0, len(migrations))
	for _, m := range migrations {
		if r, ok := byVersion[m.Version]; ok {
			status = append(status, r)
			continue
		}
		status = append(status, MigrationRecord{Version: m.Version, Name: m.Name, Status: StatusPending})
	}
	return status, nil
}

// Apply executes a migration's up SQL in one transaction guarded by a
// transaction-scoped advisory lock. A failure rolls the schema change back
// and records the error separately.
func (e *Executor) Apply(ctx context.Context, m Migration) error {
	err := e.db.WithTx(ctx, func(tx *runtime.Tx) error {
		if err := e.lock(ctx, tx); err != nil {
			return err
		}
		applied, err := isApplied(ctx, tx, m.Version)
		if err != nil {
			return err
		}
		if applied {
			return fmt.Errorf("%s: %w", m.Version, ErrAlreadyApplied)
		}

		for i, stmt := range splitSQL(m.UpSQL) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return &runtime.MigrationError{
					Version: m.Version,
					Message: fmt.Sprintf("statement %d failed", i+1),
					Err:     err,
				}
			}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO schema_migrations (version, name, status, applied_at, error)
			VALUES ($1, $2, 'applied', $3, NULL)
			ON CONFLICT (version) DO UPDATE SET status = 'applied', applied_at = $3, error = NULL`,
			m.Version, m.Name, time.Now(),
		)
		return err
	})

	var migErr *runtime.MigrationError
	if errors.As(err, &migErr) {
		e.recordFailure(ctx, m, migErr)
	}
	return err
}

// Rollback executes a migration's down SQL and removes its record.
func (e *Executor) Rollback(ctx context.Context, m Migration) error {
	return e.db.WithTx(ctx, func(tx *runtime.Tx) error {
		if err := e.lock(ctx, tx); err != nil {
			return err
		}
		applied, err := isApplied(ctx, tx, m.Version)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("%s: %w", m.Version, ErrNotApplied)
		}

		for i, stmt := range splitSQL(m.DownSQL) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return &runtime.MigrationError{
					Version: m.Version,
					Message: fmt.Sprintf("rollback statement %d failed", i+1),
					Err:     err,
				}
			}
		}

		_, err = tx.Exec(ctx, "DELETE FROM schema_migrations WHERE version = $1", m.Version)
		return err
	})
}

// Pending returns the migrations not yet applied, in order.
func (e *Executor) Pending(ctx context.Context, migrations []Migration) ([]Migration, error) {
	status, err := e.Status(ctx, migrations)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for i, s := range status {
		if s.Status != StatusApplied {
			pending = append(pending, migrations[i])
		}
	}
	return pending, nil
}

// ApplyAll applies all pending migrations and returns the applied versions.
func (e *Executor) ApplyAll(ctx context.Context, migrations []Migration) ([]string, error) {
	pending, err := e.Pending(ctx, migrations)
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, m := range pending {
		if err := e.Apply(ctx, m); err != nil {
			return applied, fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}

// RollbackLast rolls back the most recently applied migration, if any.
func (e *Executor) RollbackLast(ctx context.Context, migrations []Migration) (string, error) {
	status, err := e.Status(ctx, migrations)
	if err != nil {
		return "", err
	}
	for i := len(status) - 1; i >= 0; i-- {
		if status[i].Status == StatusApplied {
			return migrations[i].Version, e.Rollback(ctx, migrations[i])
		}
	}
	return "", nil
}

func (e *Executor) lock(ctx context.Context, tx *runtime.Tx) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", e.lockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	return nil
}

func (e *Executor) recordFailure(ctx context.Context, m Migration, cause error) {
	msg := cause.Error()
	_, _ = e.db.Exec(ctx, `
		INSERT INTO schema_migrations (version, name, status, error)
		VALUES ($1, $2, 'failed', $3)
		ON CONFLICT (version) DO UPDATE SET status = 'failed', error = $3`,
		m.Version, m.Name, msg,
	)
}

func isApplied(ctx context.Context, q runtime.Querier, version string) (bool, error) {
	var applied bool
	err := q.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1 AND status = 'applied')",
		version,
	).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return applied, nil
}
