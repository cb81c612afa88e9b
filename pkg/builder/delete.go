package builder

import (
	"context"
	"fmt"

	"github.com/marshallshelly/fenceorders/pkg/runtime"
	"github.com/marshallshelly/fenceorders/pkg/schema"
)

// DeleteQuery represents a DELETE query.
type DeleteQuery[T any] struct {
	q     runtime.Querier
	table *schema.TableMetadata
	err   error
	where []Condition
}

// Delete creates a new DELETE query for T.
func Delete[T any](q runtime.Querier) *DeleteQuery[T] {
	table, err := tableFor[T]()
	return &DeleteQuery[T]{q: q, table: table, err: err}
}

// Where adds a WHERE condition.
func (d *DeleteQuery[T]) Where(condition Condition) *DeleteQuery[T] {
	d.where = append(d.where, condition)
	return d
}

// And adds an AND condition.
func (d *DeleteQuery[T]) And(condition Condition) *DeleteQuery[T] {
	condition.Logic = LogicAnd
	return d.Where(condition)
}

// ToSQL generates the SQL query and parameter values. Deletes without a
// WHERE clause are refused.
func (d *DeleteQuery[T]) ToSQL() (string, []any, error) {
	if d.err != nil {
		return "", nil, d.err
	}
	if len(d.where) == 0 {
		return "", nil, fmt.Errorf("delete from %s: refusing to delete without WHERE", d.table.Name)
	}
	where, args, err := buildWhere(d.where, 1)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + d.table.Name + where, args, nil
}

// Exec executes the delete and returns the number of deleted rows.
func (d *DeleteQuery[T]) Exec(ctx context.Context) (int64, error) {
	sql, args, err := d.ToSQL()
	if err != nil {
		return 0, err
	}
	return d.q.Exec(ctx, sql, args...)
}
