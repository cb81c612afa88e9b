// Package builder provides a type-safe query builder for PostgreSQL.
//
// Every builder takes a runtime.Querier, so the same query runs against the
// connection pool or inside a transaction:
//
//	err := db.WithTx(ctx, func(tx *runtime.Tx) error {
//	    order, err := builder.Select[models.Order](tx).
//	        Where(builder.Eq("id", id)).
//	        Preload("Products", "Jobs").
//	        First(ctx)
//	    ...
//	})
package builder

import (
	"fmt"
	"reflect"

	"github.com/marshallshelly/fenceorders/pkg/registry"
	"github.com/marshallshelly/fenceorders/pkg/runtime"
	"github.com/marshallshelly/fenceorders/pkg/schema"
)

// Query represents a generic database query.
type Query interface {
	// ToSQL generates the SQL query and parameter values.
	ToSQL() (sql string, args []any, err error)
}

// Condition represents a WHERE condition.
type Condition struct {
	Column   string
	Operator Operator
	Value    any
	Logic    LogicOperator
	Not      bool
	Group    []Condition
}

// OrderBy represents an ORDER BY clause.
type OrderBy struct {
	Column    string
	Direction OrderDirection
}

// Operator represents a comparison operator.
type Operator string

const (
	OpEqual     Operator = "="
	OpNotEqual  Operator = "!="
	OpAny       Operator = "= ANY"
	OpILike     Operator = "ILIKE"
	OpIsNotNull Operator = "IS NOT NULL"
)

// LogicOperator represents a logical operator (AND/OR).
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// OrderDirection represents the sort direction.
type OrderDirection string

const (
	Asc  OrderDirection = "ASC"
	Desc OrderDirection = "DESC"
)

// tableFor resolves metadata for T through the global registry.
func tableFor[T any]() (*schema.TableMetadata, error) {
	var model T
	modelType := reflect.TypeOf(model)
	if modelType == nil || modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: type parameter must be a struct, got %T", runtime.ErrInvalidModel, model)
	}
	return registry.GetOrRegister(modelType)
}
