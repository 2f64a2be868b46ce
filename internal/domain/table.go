package domain

import (
	"fmt"
	"strings"

	"github.com/rpattn/eveql/internal/clause"
)

// ColumnType represents the storage type of a mapped column
type ColumnType string

const (
	ColumnTypeInteger  ColumnType = "integer"
	ColumnTypeString   ColumnType = "string"
	ColumnTypeText     ColumnType = "text"
	ColumnTypeFloat    ColumnType = "float"
	ColumnTypeBoolean  ColumnType = "boolean"
	ColumnTypeDateTime ColumnType = "datetime"
	ColumnTypeDate     ColumnType = "date"
	ColumnTypeJSON     ColumnType = "json"
	ColumnTypeUUID     ColumnType = "uuid"
)

// Column represents a column bound to a mapped table
type Column struct {
	Name       string
	Type       ColumnType
	Length     int // maximum length for string columns, 0 means unbounded
	PrimaryKey bool
	Unique     bool
	Nullable   bool
}

// Property is a read-only computed attribute, built from other columns.
type Property struct {
	Name  string
	Type  ColumnType
	Build func(t *Table) clause.Expression
}

// Table maps a relational table to a model. Attribute lookups made by
// filter expressions resolve against its columns and properties.
type Table struct {
	Name       string
	Model      string
	Columns    []Column
	Properties []Property
}

// Column returns the column definition with the given name.
func (t *Table) Column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Property returns the computed property with the given name.
func (t *Table) Property(name string) (Property, bool) {
	for _, prop := range t.Properties {
		if prop.Name == name {
			return prop, true
		}
	}
	return Property{}, false
}

// C returns a reference to the named column. It panics when the column
// does not exist, so it is meant for table definitions, not user input.
func (t *Table) C(name string) *clause.Column {
	if _, ok := t.Column(name); !ok {
		panic(fmt.Sprintf("domain: table %s has no column %s", t.Name, name))
	}
	return clause.Col(t.Name, name)
}

// Lookup resolves an attribute name to its expression and type.
func (t *Table) Lookup(name string) (clause.Expression, ColumnType, bool) {
	if col, ok := t.Column(name); ok {
		return clause.Col(t.Name, col.Name), col.Type, true
	}
	if prop, ok := t.Property(name); ok {
		return prop.Build(t), prop.Type, true
	}
	return nil, "", false
}

// Matches reports whether name refers to this table, either by table name
// or by model name.
func (t *Table) Matches(name string) bool {
	return name == t.Name || (t.Model != "" && strings.EqualFold(name, t.Model))
}

// PrimaryKey returns the primary key column.
func (t *Table) PrimaryKey() (Column, bool) {
	for _, col := range t.Columns {
		if col.PrimaryKey {
			return col, true
		}
	}
	return Column{}, false
}

// ColumnNames returns column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		names = append(names, col.Name)
	}
	return names
}

// FieldNames returns column names followed by property names.
func (t *Table) FieldNames() []string {
	names := t.ColumnNames()
	for _, prop := range t.Properties {
		names = append(names, prop.Name)
	}
	return names
}
