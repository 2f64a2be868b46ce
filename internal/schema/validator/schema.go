package validator

import (
	"errors"
	"fmt"

	"github.com/rpattn/eveql/internal/domain"
)

var compatibleColumns = map[string][]domain.ColumnType{
	TypeString:   {domain.ColumnTypeString, domain.ColumnTypeText, domain.ColumnTypeUUID},
	TypeInteger:  {domain.ColumnTypeInteger},
	TypeFloat:    {domain.ColumnTypeFloat},
	TypeNumber:   {domain.ColumnTypeInteger, domain.ColumnTypeFloat},
	TypeBoolean:  {domain.ColumnTypeBoolean},
	TypeDateTime: {domain.ColumnTypeDateTime, domain.ColumnTypeDate},
	TypeDict:     {domain.ColumnTypeJSON},
	TypeList:     {domain.ColumnTypeJSON},
	TypeObjectID: {domain.ColumnTypeString, domain.ColumnTypeText},
	TypeUUID:     {domain.ColumnTypeUUID, domain.ColumnTypeString, domain.ColumnTypeText},
}

// ValidateSchema checks that a schema can be enforced against table: every
// field must map to a column or a computed property, properties must be
// read-only and types must agree with the column types.
func ValidateSchema(schema Schema, table *domain.Table) error {
	if table == nil {
		return errors.New("table is required")
	}

	var errs []error
	for _, field := range schema.Fields() {
		rules := schema[field]

		if prop, ok := table.Property(field); ok {
			if !rules.ReadOnly {
				errs = append(errs, fmt.Errorf("field '%s' is computed and must be readonly", field))
			}
			if rules.Unique {
				errs = append(errs, fmt.Errorf("field '%s' is computed and cannot be unique", field))
			}
			if err := checkCompatible(field, rules.Type, prop.Type); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		col, ok := table.Column(field)
		if !ok {
			errs = append(errs, fmt.Errorf("field '%s' is not a column of %s", field, table.Name))
			continue
		}
		if err := checkCompatible(field, rules.Type, col.Type); err != nil {
			errs = append(errs, err)
		}
		if col.Length > 0 && rules.MaxLength != nil && *rules.MaxLength > col.Length {
			errs = append(errs, fmt.Errorf("field '%s' maxlength %d exceeds column length %d", field, *rules.MaxLength, col.Length))
		}
	}

	return errors.Join(errs...)
}

func checkCompatible(field, typeName string, columnType domain.ColumnType) error {
	if typeName == "" {
		return nil
	}
	for _, candidate := range compatibleColumns[typeName] {
		if candidate == columnType {
			return nil
		}
	}
	return fmt.Errorf("field '%s' of type %s cannot be stored in a %s column", field, typeName, columnType)
}
