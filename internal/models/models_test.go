package models

import (
	"reflect"
	"testing"

	"github.com/marshallshelly/fenceorders/pkg/registry"
	"github.com/marshallshelly/fenceorders/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAll(t *testing.T) {
	require.NoError(t, RegisterAll())
	// idempotent
	require.NoError(t, RegisterAll())

	names := registry.TableNames()
	for _, want := range []string{
		"users", "managers", "administrators", "clients", "products", "jobs",
		"orders", "order_products", "order_jobs", "documents", "comments",
	} {
		assert.Contains(t, names, want)
	}
}

func TestOrderMetadata(t *testing.T) {
	table, err := registry.GetOrRegister(reflect.TypeOf(Order{}))
	require.NoError(t, err)

	assert.Equal(t, []string{"id"}, table.PrimaryKey.Columns)

	products := table.GetRelationship("Products")
	require.NotNil(t, products)
	assert.Equal(t, schema.HasMany, products.Type)
	assert.Equal(t, "order_id", products.ForeignKey)
	assert.Equal(t, reflect.TypeOf(OrderProduct{}), products.TargetType)

	manager := table.GetForeignKey("manager_id")
	require.NotNil(t, manager)
	assert.Equal(t, "users", manager.ReferencedTable)
	assert.Equal(t, schema.SetNull, manager.OnDelete)
}

func TestLineItemMetadata(t *testing.T) {
	table, err := registry.GetOrRegister(reflect.TypeOf(OrderProduct{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id", "product_id"}, table.PrimaryKey.Columns)

	fk := table.GetForeignKey("product_id")
	require.NotNil(t, fk)
	assert.Equal(t, schema.Restrict, fk.OnDelete)
}

func TestManagerBelongsToUser(t *testing.T) {
	table, err := registry.GetOrRegister(reflect.TypeOf(Manager{}))
	require.NoError(t, err)

	rel := table.GetRelationship("User")
	require.NotNil(t, rel)
	assert.Equal(t, schema.BelongsTo, rel.Type)
	assert.Equal(t, "user_id", rel.ForeignKey)
	assert.Equal(t, "id", rel.References)
}
