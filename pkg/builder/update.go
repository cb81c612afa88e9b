package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/marshallshelly/fenceorders/pkg/runtime"
	"github.com/marshallshelly/fenceorders/pkg/schema"
)

// UpdateQuery represents an UPDATE query.
type UpdateQuery[T any] struct {
	q         runtime.Querier
	table     *schema.TableMetadata
	err       error
	sets      []setClause
	where     []Condition
	returning []string
}

type setClause struct {
	column string
	value  any
}

// Update creates a new UPDATE query for T.
func Update[T any](q runtime.Querier) *UpdateQuery[T] {
	table, err := tableFor[T]()
	return &UpdateQuery[T]{q: q, table: table, err: err}
}

// Set assigns value to column. Setting a column twice keeps the last value.
func (u *UpdateQuery[T]) Set(column string, value any) *UpdateQuery[T] {
	for n := range u.sets {
		if u.sets[n].column == column {
			u.sets[n].value = value
			return u
		}
	}
	u.sets = append(u.sets, setClause{column: column, value: value})
	return u
}

// Where adds a WHERE condition.
func (u *UpdateQuery[T]) Where(condition Condition) *UpdateQuery[T] {
	u.where = append(u.where, condition)
	return u
}

// And adds an AND condition.
func (u *UpdateQuery[T]) And(condition Condition) *UpdateQuery[T] {
	condition.Logic = LogicAnd
	return u.Where(condition)
}

// Returning sets the RETURNING columns.
func (u *UpdateQuery[T]) Returning(columns ...string) *UpdateQuery[T] {
	u.returning = columns
	return u
}

// ToSQL generates the SQL query and parameter values. Updates without a
// WHERE clause are refused.
func (u *UpdateQuery[T]) ToSQL() (string, []any, error) {
	if u.err != nil {
		return "", nil, u.err
	}
	if len(u.sets) == 0 {
		return "", nil, fmt.Errorf("update %s: no columns to set", u.table.Name)
	}
	if len(u.where) == 0 {
		return "", nil, fmt.Errorf("update %s: refusing to update without WHERE", u.table.Name)
	}

	args := make([]any, 0, len(u.sets))
	assignments := make([]string, len(u.sets))
	for n, set := range u.sets {
		if u.table.GetColumnByName(set.column) == nil {
			return "", nil, fmt.Errorf("update %s: unknown column %s", u.table.Name, set.column)
		}
		args = append(args, set.value)
		assignments[n] = fmt.Sprintf("%s = $%d", set.column, len(args))
	}

	where, whereArgs, err := buildWhere(u.where, len(args)+1)
	if err != nil {
		return "", nil, err
	}
	args = append(args, whereArgs...)

	sql := fmt.Sprintf("UPDATE %s SET %s%s", u.table.Name, strings.Join(assignments, ", "), where)
	if len(u.returning) > 0 {
		sql += " RETURNING " + strings.Join(u.returning, ", ")
	}
	return sql, args, nil
}

// Exec executes the update and returns the number of affected rows.
func (u *UpdateQuery[T]) Exec(ctx context.Context) (int64, error) {
	sql, args, err := u.ToSQL()
	if err != nil {
		return 0, err
	}
	return u.q.Exec(ctx, sql, args...)
}

// ExecReturning executes the update and scans the updated rows.
func (u *UpdateQuery[T]) ExecReturning(ctx context.Context) ([]T, error) {
	if len(u.returning) == 0 {
		u.returning = []string{"*"}
	}
	sql, args, err := u.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := u.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	results, err := collectRows[T](rows, u.table)
	if err != nil {
		return nil, runtime.Translate(sql, err)
	}
	return results, nil
}
