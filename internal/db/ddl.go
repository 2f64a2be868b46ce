package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rpattn/eveql/internal/clause"
	"github.com/rpattn/eveql/internal/domain"
)

var columnTypes = map[domain.ColumnType]string{
	domain.ColumnTypeInteger:  "integer",
	domain.ColumnTypeString:   "varchar",
	domain.ColumnTypeText:     "text",
	domain.ColumnTypeFloat:    "double precision",
	domain.ColumnTypeBoolean:  "boolean",
	domain.ColumnTypeDateTime: "timestamp",
	domain.ColumnTypeDate:     "date",
	domain.ColumnTypeJSON:     "jsonb",
	domain.ColumnTypeUUID:     "uuid",
}

// CreateTableSQL returns the CREATE TABLE statement of a mapped table.
// Computed properties have no storage and are skipped. An integer primary
// key becomes a serial column.
func CreateTableSQL(table *domain.Table) (string, error) {
	if len(table.Columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", table.Name)
	}

	defs := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		sqlType, ok := columnTypes[col.Type]
		if !ok {
			return "", fmt.Errorf("column %s.%s has unsupported type %q", table.Name, col.Name, col.Type)
		}
		if col.Type == domain.ColumnTypeString && col.Length > 0 {
			sqlType = fmt.Sprintf("varchar(%d)", col.Length)
		}
		if col.PrimaryKey && col.Type == domain.ColumnTypeInteger {
			sqlType = "serial"
		}

		def := clause.QuoteIdent(col.Name) + " " + sqlType
		switch {
		case col.PrimaryKey:
			def += " PRIMARY KEY"
		case !col.Nullable:
			def += " NOT NULL"
		}
		if col.Unique && !col.PrimaryKey {
			def += " UNIQUE"
		}
		defs = append(defs, def)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", clause.QuoteIdent(table.Name), strings.Join(defs, ", ")), nil
}

// CreateAll creates every table that does not exist yet.
func CreateAll(ctx context.Context, exec DBTX, tables ...*domain.Table) error {
	for _, table := range tables {
		stmt, err := CreateTableSQL(table)
		if err != nil {
			return err
		}
		if _, err := exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.Name, err)
		}
		log.Info().Str("table", table.Name).Msg("Ensured table exists")
	}
	return nil
}
