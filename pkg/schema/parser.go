package schema

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

const (
	// StructTagKey is the key used in struct tags (e.g., `po:"..."`).
	StructTagKey = "po"
)

// Tabler lets a model choose its own table name.
type Tabler interface {
	TableName() string
}

var tablerType = reflect.TypeOf((*Tabler)(nil)).Elem()

// customTableNames maps struct names to table names registered at init time.
var customTableNames = make(map[string]string)

// RegisterTableName registers a custom table name for a struct type.
func RegisterTableName(structName, tableName string) {
	customTableNames[structName] = tableName
}

// Parser parses struct definitions to extract table metadata. It is not safe
// for concurrent use; the registry serializes access.
type Parser struct {
	cache map[reflect.Type]*TableMetadata
}

// NewParser creates a new Parser instance.
func NewParser() *Parser {
	return &Parser{
		cache: make(map[reflect.Type]*TableMetadata),
	}
}

// Parse extracts TableMetadata from a Go struct type.
func (p *Parser) Parse(modelType reflect.Type) (*TableMetadata, error) {
	for modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a struct, got %s", modelType.Kind())
	}
	if cached, ok := p.cache[modelType]; ok {
		return cached, nil
	}

	table := &TableMetadata{
		Name:   tableName(modelType),
		GoType: modelType,
	}

	for i := 0; i < modelType.NumField(); i++ {
		field := modelType.Field(i)
		if !field.IsExported() {
			continue
		}
		tagValue := field.Tag.Get(StructTagKey)
		if tagValue == "" {
			continue
		}

		opts, err := parseTag(tagValue)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tag for field %s: %w", field.Name, err)
		}

		if opts.isRelationship() {
			rel, err := parseRelationship(field, opts, table)
			if err != nil {
				return nil, fmt.Errorf("failed to parse relationship for field %s: %w", field.Name, err)
			}
			table.Relationships = append(table.Relationships, *rel)
			continue
		}
		if opts.Name == "-" {
			continue
		}

		column := ColumnMetadata{
			Name:          opts.Name,
			GoField:       field.Name,
			FieldIndex:    field.Index,
			GoType:        field.Type,
			AutoIncrement: opts.Has("autoIncrement") || opts.Has("serial"),
			ReadOnly:      opts.Has("readOnly"),
		}
		if def, ok := opts.Options["default"]; ok {
			column.Default = &def
		}

		if opts.Has("primaryKey") {
			if table.PrimaryKey == nil {
				table.PrimaryKey = &PrimaryKeyMetadata{Name: table.Name + "_pkey"}
			}
			table.PrimaryKey.Columns = append(table.PrimaryKey.Columns, column.Name)
		}

		if ref := opts.Get("fk"); ref != "" {
			fk, err := parseForeignKey(table.Name, column.Name, ref, opts.Get("onDelete"))
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Name, err)
			}
			table.ForeignKeys = append(table.ForeignKeys, fk)
		}

		table.Columns = append(table.Columns, column)
	}

	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("model %s has no po-tagged columns", modelType.Name())
	}

	p.cache[modelType] = table
	return table, nil
}

// tableName resolves the table name: TableName() method, then the custom
// name registry, then snake_case of the struct name.
func tableName(modelType reflect.Type) string {
	if modelType.Implements(tablerType) {
		return reflect.Zero(modelType).Interface().(Tabler).TableName()
	}
	if reflect.PointerTo(modelType).Implements(tablerType) {
		return reflect.New(modelType).Interface().(Tabler).TableName()
	}
	if name, ok := customTableNames[modelType.Name()]; ok {
		return name
	}
	return ToSnakeCase(modelType.Name())
}

func parseRelationship(field reflect.StructField, opts *TagOptions, source *TableMetadata) (*RelationshipMetadata, error) {
	rel := &RelationshipMetadata{
		SourceTable: source.Name,
		SourceField: field.Name,
		ForeignKey:  opts.Get("foreignKey"),
		References:  opts.Get("references"),
	}

	switch {
	case opts.Has(string(BelongsTo)):
		rel.Type = BelongsTo
	case opts.Has(string(HasOne)):
		rel.Type = HasOne
	case opts.Has(string(HasMany)):
		rel.Type = HasMany
	}

	target := field.Type
	if target.Kind() == reflect.Slice {
		if rel.Type != HasMany {
			return nil, fmt.Errorf("slice field requires hasMany")
		}
		target = target.Elem()
	}
	for target.Kind() == reflect.Ptr {
		target = target.Elem()
	}
	if target.Kind() != reflect.Struct {
		return nil, fmt.Errorf("relationship target must be a struct, got %s", target.Kind())
	}
	rel.TargetType = target

	if rel.ForeignKey == "" {
		switch rel.Type {
		case BelongsTo:
			rel.ForeignKey = ToSnakeCase(target.Name()) + "_id"
		default:
			rel.ForeignKey = ToSnakeCase(source.GoType.Name()) + "_id"
		}
	}
	if rel.References == "" {
		rel.References = "id"
	}

	return rel, nil
}

// parseForeignKey reads "table.column" references.
func parseForeignKey(table, column, ref, onDelete string) (ForeignKeyMetadata, error) {
	refTable, refColumn, ok := strings.Cut(ref, ".")
	if !ok || refTable == "" || refColumn == "" {
		return ForeignKeyMetadata{}, fmt.Errorf("invalid fk reference %q, want table.column", ref)
	}
	return ForeignKeyMetadata{
		Name:              fmt.Sprintf("fk_%s_%s", table, column),
		Columns:           []string{column},
		ReferencedTable:   refTable,
		ReferencedColumns: []string{refColumn},
		OnDelete:          parseReferenceAction(onDelete),
	}, nil
}

func parseReferenceAction(action string) ReferenceAction {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(action), "_", " ")) {
	case "CASCADE":
		return Cascade
	case "RESTRICT":
		return Restrict
	case "SETNULL", "SET NULL":
		return SetNull
	case "SETDEFAULT", "SET DEFAULT":
		return SetDefault
	default:
		return NoAction
	}
}

// TagOptions represents parsed tag options.
type TagOptions struct {
	Name    string
	Options map[string]string
}

// Has checks if an option exists.
func (t *TagOptions) Has(key string) bool {
	_, ok := t.Options[key]
	return ok
}

// Get returns the value of an option.
func (t *TagOptions) Get(key string) string {
	return t.Options[key]
}

func (t *TagOptions) isRelationship() bool {
	return t.Has(string(BelongsTo)) || t.Has(string(HasOne)) || t.Has(string(HasMany))
}

// parseTag parses "column_name,option1,option2(value)" into TagOptions.
func parseTag(tag string) (*TagOptions, error) {
	parts := splitTag(tag)
	if len(parts) == 0 || parts[0] == "" {
		return nil, fmt.Errorf("empty tag value")
	}
	opts := &TagOptions{
		Name:    parts[0],
		Options: make(map[string]string),
	}
	for _, opt := range parts[1:] {
		if idx := strings.Index(opt, "("); idx != -1 {
			if !strings.HasSuffix(opt, ")") {
				return nil, fmt.Errorf("invalid option format: %s", opt)
			}
			opts.Options[opt[:idx]] = opt[idx+1 : len(opt)-1]
			continue
		}
		opts.Options[opt] = ""
	}
	return opts, nil
}

// splitTag splits on commas that are not inside parentheses.
func splitTag(tag string) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	for _, ch := range tag {
		switch {
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case ch == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
			continue
		}
		current.WriteRune(ch)
	}
	if current.Len() > 0 {
		parts = append(parts, strings.TrimSpace(current.String()))
	}
	return parts
}

// ToSnakeCase converts PascalCase to snake_case, keeping initialisms together
// (OrderID -> order_id, HTTPServer -> http_server).
func ToSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
