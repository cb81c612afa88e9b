package builder

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/marshallshelly/fenceorders/pkg/runtime"
	"github.com/marshallshelly/fenceorders/pkg/schema"
)

// InsertQuery represents an INSERT query.
type InsertQuery[T any] struct {
	q               runtime.Querier
	table           *schema.TableMetadata
	err             error
	values          []T
	returning       []string
	conflictNothing bool
	conflictColumns []string
}

// Insert creates a new INSERT query for T.
func Insert[T any](q runtime.Querier) *InsertQuery[T] {
	table, err := tableFor[T]()
	return &InsertQuery[T]{q: q, table: table, err: err}
}

// Values adds rows to insert.
func (i *InsertQuery[T]) Values(values ...T) *InsertQuery[T] {
	i.values = append(i.values, values...)
	return i
}

// Returning sets the RETURNING columns.
func (i *InsertQuery[T]) Returning(columns ...string) *InsertQuery[T] {
	i.returning = columns
	return i
}

// OnConflictDoNothing skips rows that violate a unique constraint on columns.
func (i *InsertQuery[T]) OnConflictDoNothing(columns ...string) *InsertQuery[T] {
	i.conflictNothing = true
	i.conflictColumns = columns
	return i
}

// ToSQL generates the SQL query and parameter values. A column is written
// when any row needs it; rows that would leave it to the database get
// DEFAULT in that position.
func (i *InsertQuery[T]) ToSQL() (string, []any, error) {
	if i.err != nil {
		return "", nil, i.err
	}
	if len(i.values) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no values", i.table.Name)
	}

	rows := make([]reflect.Value, len(i.values))
	for n := range i.values {
		rows[n] = reflect.ValueOf(&i.values[n]).Elem()
	}

	var columns []schema.ColumnMetadata
	for _, col := range i.table.Columns {
		for _, row := range rows {
			if insertable(col, row.FieldByIndex(col.FieldIndex)) {
				columns = append(columns, col)
				break
			}
		}
	}
	if len(columns) == 0 {
		sql := fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", i.table.Name)
		if len(rows) > 1 {
			return "", nil, fmt.Errorf("insert into %s: multiple rows without values", i.table.Name)
		}
		return sql + i.returningSQL(), nil, nil
	}

	names := make([]string, len(columns))
	for n, col := range columns {
		names[n] = col.Name
	}

	var args []any
	tuples := make([]string, len(rows))
	for r, row := range rows {
		placeholders := make([]string, len(columns))
		for c, col := range columns {
			field := row.FieldByIndex(col.FieldIndex)
			if !insertable(col, field) {
				placeholders[c] = "DEFAULT"
				continue
			}
			args = append(args, field.Interface())
			placeholders[c] = fmt.Sprintf("$%d", len(args))
		}
		tuples[r] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES %s", i.table.Name, strings.Join(names, ", "), strings.Join(tuples, ", "))
	if i.conflictNothing {
		b.WriteString(" ON CONFLICT")
		if len(i.conflictColumns) > 0 {
			b.WriteString(" (" + strings.Join(i.conflictColumns, ", ") + ")")
		}
		b.WriteString(" DO NOTHING")
	}
	b.WriteString(i.returningSQL())

	return b.String(), args, nil
}

func (i *InsertQuery[T]) returningSQL() string {
	if len(i.returning) == 0 {
		return ""
	}
	return " RETURNING " + strings.Join(i.returning, ", ")
}

// Exec executes the insert and returns the number of inserted rows.
func (i *InsertQuery[T]) Exec(ctx context.Context) (int64, error) {
	sql, args, err := i.ToSQL()
	if err != nil {
		return 0, err
	}
	return i.q.Exec(ctx, sql, args...)
}

// ExecReturning executes the insert and scans the returned rows. RETURNING *
// is used when no columns were set.
func (i *InsertQuery[T]) ExecReturning(ctx context.Context) ([]T, error) {
	if len(i.returning) == 0 {
		i.returning = []string{"*"}
	}
	sql, args, err := i.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := i.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	results, err := collectRows[T](rows, i.table)
	if err != nil {
		return nil, runtime.Translate(sql, err)
	}
	return results, nil
}

// One inserts a single row and returns it as stored.
func (i *InsertQuery[T]) One(ctx context.Context) (T, error) {
	var zero T
	results, err := i.ExecReturning(ctx)
	if err != nil {
		return zero, err
	}
	if len(results) == 0 {
		return zero, fmt.Errorf("%s: %w", i.table.Name, runtime.ErrNotFound)
	}
	return results[0], nil
}
