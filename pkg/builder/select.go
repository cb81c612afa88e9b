package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/marshallshelly/fenceorders/pkg/runtime"
	"github.com/marshallshelly/fenceorders/pkg/schema"
)

// SelectQuery represents a SELECT query with type safety.
type SelectQuery[T any] struct {
	q         runtime.Querier
	table     *schema.TableMetadata
	err       error
	columns   []string
	where     []Condition
	orderBy   []OrderBy
	limit     *int
	offset    *int
	forUpdate bool
	preloads  []string
}

// Select creates a new SELECT query for T.
// Usage: builder.Select[models.Order](tx).Where(builder.Eq("id", 1)).First(ctx)
func Select[T any](q runtime.Querier) *SelectQuery[T] {
	table, err := tableFor[T]()
	return &SelectQuery[T]{
		q:       q,
		table:   table,
		err:     err,
		columns: []string{"*"},
	}
}

// Columns specifies which columns to select.
func (s *SelectQuery[T]) Columns(cols ...string) *SelectQuery[T] {
	s.columns = cols
	return s
}

// Where adds a WHERE condition.
func (s *SelectQuery[T]) Where(condition Condition) *SelectQuery[T] {
	s.where = append(s.where, condition)
	return s
}

// And adds an AND condition.
func (s *SelectQuery[T]) And(condition Condition) *SelectQuery[T] {
	condition.Logic = LogicAnd
	return s.Where(condition)
}

// Or adds an OR condition.
func (s *SelectQuery[T]) Or(condition Condition) *SelectQuery[T] {
	condition.Logic = LogicOr
	return s.Where(condition)
}

// OrderByAsc adds an ascending ORDER BY clause.
func (s *SelectQuery[T]) OrderByAsc(column string) *SelectQuery[T] {
	s.orderBy = append(s.orderBy, OrderBy{Column: column, Direction: Asc})
	return s
}

// OrderByDesc adds a descending ORDER BY clause.
func (s *SelectQuery[T]) OrderByDesc(column string) *SelectQuery[T] {
	s.orderBy = append(s.orderBy, OrderBy{Column: column, Direction: Desc})
	return s
}

// Limit sets the LIMIT clause.
func (s *SelectQuery[T]) Limit(limit int) *SelectQuery[T] {
	s.limit = &limit
	return s
}

// Offset sets the OFFSET clause.
func (s *SelectQuery[T]) Offset(offset int) *SelectQuery[T] {
	s.offset = &offset
	return s
}

// ForUpdate locks the selected rows until the transaction ends.
func (s *SelectQuery[T]) ForUpdate() *SelectQuery[T] {
	s.forUpdate = true
	return s
}

// Preload names relationship fields to load after the main query.
func (s *SelectQuery[T]) Preload(fields ...string) *SelectQuery[T] {
	s.preloads = append(s.preloads, fields...)
	return s
}

// ToSQL generates the SQL query and parameter values.
func (s *SelectQuery[T]) ToSQL() (string, []any, error) {
	if s.err != nil {
		return "", nil, s.err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(s.columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(s.table.Name)

	where, args, err := buildWhere(s.where, 1)
	if err != nil {
		return "", nil, err
	}
	b.WriteString(where)

	if len(s.orderBy) > 0 {
		parts := make([]string, len(s.orderBy))
		for i, o := range s.orderBy {
			parts[i] = o.Column + " " + string(o.Direction)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if s.limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *s.limit)
	}
	if s.offset != nil {
		fmt.Fprintf(&b, " OFFSET %d", *s.offset)
	}
	if s.forUpdate {
		b.WriteString(" FOR UPDATE")
	}

	return b.String(), args, nil
}

// All executes the query and returns every matching row.
func (s *SelectQuery[T]) All(ctx context.Context) ([]T, error) {
	sql, args, err := s.ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	results, err := collectRows[T](rows, s.table)
	if err != nil {
		return nil, runtime.Translate(sql, err)
	}

	if len(s.preloads) > 0 && len(results) > 0 {
		if err := preload(ctx, s.q, s.table, results, s.preloads); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// First returns the first matching row or runtime.ErrNotFound.
func (s *SelectQuery[T]) First(ctx context.Context) (T, error) {
	var zero T
	s.Limit(1)
	results, err := s.All(ctx)
	if err != nil {
		return zero, err
	}
	if len(results) == 0 {
		return zero, fmt.Errorf("%s: %w", s.table.Name, runtime.ErrNotFound)
	}
	return results[0], nil
}

// Count returns the number of matching rows.
func (s *SelectQuery[T]) Count(ctx context.Context) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	where, args, err := buildWhere(s.where, 1)
	if err != nil {
		return 0, err
	}
	sql := "SELECT COUNT(*) FROM " + s.table.Name + where

	var count int64
	if err := s.q.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Exists reports whether at least one row matches.
func (s *SelectQuery[T]) Exists(ctx context.Context) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	where, args, err := buildWhere(s.where, 1)
	if err != nil {
		return false, err
	}
	sql := "SELECT EXISTS (SELECT 1 FROM " + s.table.Name + where + ")"

	var exists bool
	if err := s.q.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
