// Package schema turns po-tagged Go structs into table metadata.
package schema

import "reflect"

// TableMetadata describes a table mapped from a Go struct.
type TableMetadata struct {
	Name          string
	GoType        reflect.Type
	Columns       []ColumnMetadata
	PrimaryKey    *PrimaryKeyMetadata
	ForeignKeys   []ForeignKeyMetadata
	Relationships []RelationshipMetadata
}

// ColumnMetadata describes a single mapped column.
type ColumnMetadata struct {
	Name          string
	GoField       string
	FieldIndex    []int
	GoType        reflect.Type
	Default       *string
	AutoIncrement bool
	ReadOnly      bool
}

// PrimaryKeyMetadata lists the primary key columns in declaration order.
type PrimaryKeyMetadata struct {
	Name    string
	Columns []string
}

// ReferenceAction is a foreign key ON DELETE/ON UPDATE action.
type ReferenceAction string

const (
	NoAction   ReferenceAction = "NO ACTION"
	Restrict   ReferenceAction = "RESTRICT"
	Cascade    ReferenceAction = "CASCADE"
	SetNull    ReferenceAction = "SET NULL"
	SetDefault ReferenceAction = "SET DEFAULT"
)

// ForeignKeyMetadata describes a column that references another table.
type ForeignKeyMetadata struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnDelete          ReferenceAction
}

// RelationType is the kind of association between two tables.
type RelationType string

const (
	BelongsTo RelationType = "belongsTo"
	HasOne    RelationType = "hasOne"
	HasMany   RelationType = "hasMany"
)

// RelationshipMetadata describes a preloadable association field.
type RelationshipMetadata struct {
	SourceTable string
	SourceField string
	Type        RelationType
	// ForeignKey is the column holding the reference: on the source table for
	// belongsTo, on the target table for hasOne/hasMany.
	ForeignKey string
	// References is the referenced column, "id" unless overridden.
	References string
	TargetType reflect.Type
}

// GetColumnByName returns the column with the given name, or nil.
func (t *TableMetadata) GetColumnByName(name string) *ColumnMetadata {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// IsPrimaryKey reports whether column is part of the primary key.
func (t *TableMetadata) IsPrimaryKey(column string) bool {
	if t.PrimaryKey == nil {
		return false
	}
	for _, c := range t.PrimaryKey.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// GetRelationship returns a relationship by source field name.
func (t *TableMetadata) GetRelationship(fieldName string) *RelationshipMetadata {
	for i := range t.Relationships {
		if t.Relationships[i].SourceField == fieldName {
			return &t.Relationships[i]
		}
	}
	return nil
}

// GetForeignKey returns the foreign key declared on column, or nil.
func (t *TableMetadata) GetForeignKey(column string) *ForeignKeyMetadata {
	for i := range t.ForeignKeys {
		for _, c := range t.ForeignKeys[i].Columns {
			if c == column {
				return &t.ForeignKeys[i]
			}
		}
	}
	return nil
}
