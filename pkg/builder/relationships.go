package builder

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/marshallshelly/fenceorders/pkg/registry"
	"github.com/marshallshelly/fenceorders/pkg/runtime"
	"github.com/marshallshelly/fenceorders/pkg/schema"
)

// preload loads each named relationship for results with one extra query
// per relationship.
func preload[T any](ctx context.Context, q runtime.Querier, table *schema.TableMetadata, results []T, fields []string) error {
	items := reflect.ValueOf(results)

	for _, name := range fields {
		rel := table.GetRelationship(name)
		if rel == nil {
			return fmt.Errorf("%s has no relationship %s", table.Name, name)
		}
		target, err := registry.GetOrRegister(rel.TargetType)
		if err != nil {
			return fmt.Errorf("target of %s.%s not registered: %w", table.Name, name, err)
		}

		switch rel.Type {
		case schema.BelongsTo:
			err = loadRelated(ctx, q, table, target, rel, items, rel.ForeignKey, rel.References)
		case schema.HasOne, schema.HasMany:
			err = loadRelated(ctx, q, table, target, rel, items, rel.References, rel.ForeignKey)
		default:
			err = fmt.Errorf("unsupported relationship type %s", rel.Type)
		}
		if err != nil {
			return fmt.Errorf("failed to preload %s: %w", name, err)
		}
	}
	return nil
}

// loadRelated matches source.localColumn against target.remoteColumn and
// assigns the matches to the relationship field.
func loadRelated(ctx context.Context, q runtime.Querier, source, target *schema.TableMetadata, rel *schema.RelationshipMetadata, items reflect.Value, localColumn, remoteColumn string) error {
	local := source.GetColumnByName(localColumn)
	if local == nil {
		return fmt.Errorf("column %s.%s not found", source.Name, localColumn)
	}
	remote := target.GetColumnByName(remoteColumn)
	if remote == nil {
		return fmt.Errorf("column %s.%s not found", target.Name, remoteColumn)
	}

	keyType := local.GoType
	if keyType.Kind() == reflect.Ptr {
		keyType = keyType.Elem()
	}
	keys := reflect.MakeSlice(reflect.SliceOf(keyType), 0, items.Len())
	owners := make(map[any][]int, items.Len())

	for i := 0; i < items.Len(); i++ {
		item := items.Index(i)
		if rel.Type == schema.HasMany {
			field := item.FieldByName(rel.SourceField)
			field.Set(reflect.MakeSlice(field.Type(), 0, 0))
		}

		key, ok := keyValue(item.FieldByIndex(local.FieldIndex))
		if !ok {
			continue
		}
		k := key.Interface()
		if _, seen := owners[k]; !seen {
			keys = reflect.Append(keys, key)
		}
		owners[k] = append(owners[k], i)
	}
	if keys.Len() == 0 {
		return nil
	}

	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s = ANY($1)", target.Name, remoteColumn)
	if target.PrimaryKey != nil {
		sql += " ORDER BY " + strings.Join(target.PrimaryKey.Columns, ", ")
	}

	rows, err := q.Query(ctx, sql, keys.Interface())
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		related := reflect.New(target.GoType)
		if err := scanIntoStruct(rows, related, target); err != nil {
			return err
		}
		key, ok := keyValue(related.Elem().FieldByIndex(remote.FieldIndex))
		if !ok {
			continue
		}
		for _, idx := range owners[key.Interface()] {
			assign(items.Index(idx).FieldByName(rel.SourceField), related)
		}
	}
	return runtime.Translate(sql, rows.Err())
}

// keyValue dereferences pointer keys; nil pointers have no key.
func keyValue(v reflect.Value) (reflect.Value, bool) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		return v.Elem(), true
	}
	return v, true
}

// assign stores related (a pointer to struct) into field, appending when the
// field is a slice.
func assign(field reflect.Value, related reflect.Value) {
	switch field.Kind() {
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.Ptr {
			field.Set(reflect.Append(field, related))
		} else {
			field.Set(reflect.Append(field, related.Elem()))
		}
	case reflect.Ptr:
		field.Set(related)
	default:
		field.Set(related.Elem())
	}
}
