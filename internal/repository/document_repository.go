package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/rpattn/eveql/internal/clause"
	"github.com/rpattn/eveql/internal/db"
	"github.com/rpattn/eveql/internal/domain"
)

// ErrNotFound is returned when an update matches no row.
var ErrNotFound = errors.New("document not found")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// DocumentRepository stores documents of mapped tables.
type DocumentRepository interface {
	Find(ctx context.Context, table *domain.Table, query domain.Query) ([]domain.Document, error)
	Count(ctx context.Context, table *domain.Table, filters []clause.Expression) (int64, error)
	Insert(ctx context.Context, table *domain.Table, doc domain.Document) (domain.Document, error)
	Update(ctx context.Context, table *domain.Table, id any, doc domain.Document) (domain.Document, error)
	Exists(ctx context.Context, table *domain.Table, where clause.Expression) (bool, error)
}

type documentRepository struct {
	db db.DBTX
}

// NewDocumentRepository creates a repository on top of a pool or transaction.
func NewDocumentRepository(exec db.DBTX) DocumentRepository {
	return &documentRepository{db: exec}
}

// BuildSelect builds the listing statement of query. Computed properties
// are selected as aliased expressions.
func BuildSelect(table *domain.Table, query domain.Query) (sq.SelectBuilder, error) {
	builder := psql.Select().From(clause.QuoteIdent(table.Name))
	for _, col := range table.Columns {
		builder = builder.Column(table.C(col.Name).String())
	}
	for _, prop := range table.Properties {
		builder = builder.Column(sq.Alias(prop.Build(table), clause.QuoteIdent(prop.Name)))
	}

	if where := clause.And(query.Filters...); where != nil {
		builder = builder.Where(where)
	}

	for _, s := range query.Sort {
		expr, _, ok := table.Lookup(s.Field)
		if !ok {
			return builder, fmt.Errorf("cannot sort %s by unknown field %q", table.Name, s.Field)
		}
		rendered, err := clause.Render(expr)
		if err != nil {
			return builder, fmt.Errorf("failed to render sort field %q: %w", s.Field, err)
		}
		direction := "ASC"
		if s.Direction == domain.SortDirectionDesc {
			direction = "DESC"
		}
		builder = builder.OrderBy(rendered + " " + direction)
	}

	if query.Limit > 0 {
		builder = builder.Limit(uint64(query.Limit))
	}
	if query.Offset > 0 {
		builder = builder.Offset(uint64(query.Offset))
	}
	return builder, nil
}

// BuildCount builds the statement counting rows matching filters.
func BuildCount(table *domain.Table, filters []clause.Expression) sq.SelectBuilder {
	builder := psql.Select("count(*)").From(clause.QuoteIdent(table.Name))
	if where := clause.And(filters...); where != nil {
		builder = builder.Where(where)
	}
	return builder
}

// BuildInsert builds the INSERT statement of doc. Values are coerced to
// their column types and the stored row is returned.
func BuildInsert(table *domain.Table, doc domain.Document) (sq.InsertBuilder, error) {
	columns, values, err := storedValues(table, doc)
	if err != nil {
		return sq.InsertBuilder{}, err
	}
	if len(columns) == 0 {
		return sq.InsertBuilder{}, fmt.Errorf("document for %s has no stored fields", table.Name)
	}

	return psql.Insert(clause.QuoteIdent(table.Name)).
		Columns(columns...).
		Values(values...).
		Suffix("RETURNING " + strings.Join(returning(table), ", ")), nil
}

// BuildUpdate builds the UPDATE statement setting the fields of doc on the
// row with primary key id.
func BuildUpdate(table *domain.Table, id any, doc domain.Document) (sq.UpdateBuilder, error) {
	pk, ok := table.PrimaryKey()
	if !ok {
		return sq.UpdateBuilder{}, fmt.Errorf("table %s has no primary key", table.Name)
	}
	columns, values, err := storedValues(table, doc)
	if err != nil {
		return sq.UpdateBuilder{}, err
	}
	if len(columns) == 0 {
		return sq.UpdateBuilder{}, fmt.Errorf("update of %s has no stored fields", table.Name)
	}

	builder := psql.Update(clause.QuoteIdent(table.Name))
	for i, name := range columns {
		builder = builder.Set(name, values[i])
	}
	return builder.
		Where(clause.Eq(table.C(pk.Name), &clause.Literal{Value: id, Bind: domain.Coerce(pk.Type, id)})).
		Suffix("RETURNING " + strings.Join(returning(table), ", ")), nil
}

// BuildExists builds a statement reporting whether any row matches where.
func BuildExists(table *domain.Table, where clause.Expression) sq.SelectBuilder {
	builder := psql.Select("1").Prefix("SELECT EXISTS (").From(clause.QuoteIdent(table.Name))
	if where != nil {
		builder = builder.Where(where)
	}
	return builder.Suffix(")")
}

func (r *documentRepository) Find(ctx context.Context, table *domain.Table, query domain.Query) ([]domain.Document, error) {
	builder, err := BuildSelect(table, query)
	if err != nil {
		return nil, err
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	log.Debug().Str("table", table.Name).Str("sql", sql).Msg("Finding documents")
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", table.Name, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", table.Name, err)
	}

	docs := make([]domain.Document, len(maps))
	for i, m := range maps {
		docs[i] = domain.Document(m)
	}
	return docs, nil
}

func (r *documentRepository) Count(ctx context.Context, table *domain.Table, filters []clause.Expression) (int64, error) {
	sql, args, err := BuildCount(table, filters).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table.Name, err)
	}
	return total, nil
}

func (r *documentRepository) Insert(ctx context.Context, table *domain.Table, doc domain.Document) (domain.Document, error) {
	builder, err := BuildInsert(table, doc)
	if err != nil {
		return nil, err
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", table.Name, err)
	}
	stored, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", table.Name, err)
	}
	return domain.Document(stored), nil
}

func (r *documentRepository) Update(ctx context.Context, table *domain.Table, id any, doc domain.Document) (domain.Document, error) {
	builder, err := BuildUpdate(table, id, doc)
	if err != nil {
		return nil, err
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", table.Name, err)
	}
	stored, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update %s: %w", table.Name, err)
	}
	return domain.Document(stored), nil
}

func (r *documentRepository) Exists(ctx context.Context, table *domain.Table, where clause.Expression) (bool, error) {
	sql, args, err := BuildExists(table, where).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build exists: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query %s: %w", table.Name, err)
	}
	return exists, nil
}

func storedValues(table *domain.Table, doc domain.Document) ([]string, []interface{}, error) {
	for field := range doc {
		if _, ok := table.Column(field); !ok {
			if _, computed := table.Property(field); computed {
				return nil, nil, fmt.Errorf("field %q of %s is computed", field, table.Name)
			}
			return nil, nil, fmt.Errorf("unknown field %q for %s", field, table.Name)
		}
	}

	columns := make([]string, 0, len(doc))
	values := make([]interface{}, 0, len(doc))
	for _, col := range table.Columns {
		value, ok := doc[col.Name]
		if !ok {
			continue
		}
		columns = append(columns, clause.QuoteIdent(col.Name))
		values = append(values, domain.Coerce(col.Type, value))
	}
	return columns, values, nil
}

func returning(table *domain.Table) []string {
	names := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		names = append(names, clause.QuoteIdent(col.Name))
	}
	return names
}
