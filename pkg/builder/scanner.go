package builder

import (
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/marshallshelly/fenceorders/pkg/schema"
)

// scanIntoStruct scans the current row into dest, a pointer to a struct
// described by table. Result columns without a mapped field are discarded.
func scanIntoStruct(rows pgx.Rows, dest reflect.Value, table *schema.TableMetadata) error {
	if dest.Kind() != reflect.Ptr || dest.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dest must be a pointer to struct")
	}
	elem := dest.Elem()

	fields := rows.FieldDescriptions()
	targets := make([]any, len(fields))
	for i, fd := range fields {
		col := table.GetColumnByName(fd.Name)
		if col == nil {
			var discard any
			targets[i] = &discard
			continue
		}
		targets[i] = elem.FieldByIndex(col.FieldIndex).Addr().Interface()
	}

	if err := rows.Scan(targets...); err != nil {
		return fmt.Errorf("failed to scan row into %s: %w", table.Name, err)
	}
	return nil
}

// collectRows scans all remaining rows into a slice of T.
func collectRows[T any](rows pgx.Rows, table *schema.TableMetadata) ([]T, error) {
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		var item T
		if err := scanIntoStruct(rows, reflect.ValueOf(&item), table); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return results, nil
}

// insertable reports whether a column value should be written on INSERT.
// Auto-increment and defaulted columns are left to the database when zero;
// read-only columns are never written.
func insertable(col schema.ColumnMetadata, value reflect.Value) bool {
	if col.ReadOnly {
		return false
	}
	if (col.AutoIncrement || col.Default != nil) && value.IsZero() {
		return false
	}
	return true
}
