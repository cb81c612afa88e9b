// Package runtime provides the connection pool, transactions and error
// translation used by the query builder.
package runtime

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidModel is returned when a builder is instantiated with a
	// type that is not a struct.
	ErrInvalidModel = errors.New("invalid model")

	// ErrDuplicateKey is returned when a unique constraint is violated.
	ErrDuplicateKey = errors.New("duplicate key value")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrCheckViolation is returned when a CHECK constraint rejects a row.
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrNumericOutOfRange is returned when a value does not fit its column,
	// such as an amount above the precision of a NUMERIC column.
	ErrNumericOutOfRange = errors.New("numeric value out of range")

	// ErrNoConnection is returned when no database connection is available.
	ErrNoConnection = errors.New("no database connection")
)

// PostgreSQL SQLSTATE codes mapped to sentinel errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNumericOutOfRange   = "22003"
)

// QueryError represents a query execution error.
type QueryError struct {
	Query string
	Err   error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %v\nQuery: %s", e.Err, e.Query)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// ConstraintError is a constraint violation reported by PostgreSQL. It
// matches both its sentinel (ErrDuplicateKey, ErrForeignKeyViolation,
// ErrCheckViolation, ErrNumericOutOfRange) and the original
// *pgconn.PgError with errors.Is/As.
type ConstraintError struct {
	Kind       error
	Constraint string
	Detail     string
	Err        error
}

// Error implements the error interface.
func (e *ConstraintError) Error() string {
	if e.Constraint == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v (%s): %v", e.Kind, e.Constraint, e.Err)
}

// Unwrap exposes both the sentinel and the driver error.
func (e *ConstraintError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// MigrationError represents a migration error.
type MigrationError struct {
	Version string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration error (version %s): %s: %v", e.Version, e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Translate maps driver errors onto the package sentinels and attaches the
// query text. A nil error stays nil.
func Translate(query string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &QueryError{Query: query, Err: fmt.Errorf("%w: %w", ErrNotFound, err)}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		var kind error
		switch pgErr.Code {
		case codeUniqueViolation:
			kind = ErrDuplicateKey
		case codeForeignKeyViolation:
			kind = ErrForeignKeyViolation
		case codeCheckViolation:
			kind = ErrCheckViolation
		case codeNumericOutOfRange:
			kind = ErrNumericOutOfRange
		}
		if kind != nil {
			err = &ConstraintError{
				Kind:       kind,
				Constraint: pgErr.ConstraintName,
				Detail:     pgErr.Detail,
				Err:        err,
			}
		}
	}

	return &QueryError{Query: query, Err: err}
}

// IsNotFound reports whether err means no row matched.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
