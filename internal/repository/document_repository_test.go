package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/eveql/internal/clause"
	"github.com/rpattn/eveql/internal/domain"
)

type stubRow struct {
	value any
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	switch d := dest[0].(type) {
	case *int64:
		*d = r.value.(int64)
	case *bool:
		*d = r.value.(bool)
	}
	return nil
}

type stubDB struct {
	row  stubRow
	sql  string
	args []any
}

func (s *stubDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not implemented")
}

func (s *stubDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (s *stubDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	s.sql = sql
	s.args = args
	return s.row
}

func lit(v any) *clause.Literal { return clause.Lit(v) }

func TestBuildSelect(t *testing.T) {
	table := domain.People()
	query := domain.Query{
		Filters: []clause.Expression{
			clause.Or(clause.Eq(table.C("firstname"), lit("1")), clause.Eq(table.C("lastname"), lit("2"))),
			clause.IsNull(table.C("born")),
		},
		Sort: []domain.Sort{
			{Field: "lastname", Direction: domain.SortDirectionDesc},
			{Field: "fullname", Direction: domain.SortDirectionAsc},
		},
		Limit:  25,
		Offset: 25,
	}

	builder, err := BuildSelect(table, query)
	require.NoError(t, err)
	sql, args, err := builder.ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT people.id, people.firstname, people.lastname, people.born, "+
			"(people.firstname || $1 || people.lastname) AS fullname FROM people "+
			"WHERE (people.firstname = $2 OR people.lastname = $3) AND people.born IS NULL "+
			"ORDER BY people.lastname DESC, people.firstname || ' ' || people.lastname ASC "+
			"LIMIT 25 OFFSET 25",
		sql)
	assert.Equal(t, []interface{}{" ", "1", "2"}, args)

	_, err = pg_query.Parse(sql)
	assert.NoError(t, err)
}

func TestBuildSelectWithoutFilters(t *testing.T) {
	builder, err := BuildSelect(domain.People(), domain.Query{})
	require.NoError(t, err)
	sql, _, err := builder.ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "WHERE")
	assert.NotContains(t, sql, "LIMIT")
}

func TestBuildSelectUnknownSortField(t *testing.T) {
	_, err := BuildSelect(domain.People(), domain.Query{Sort: []domain.Sort{{Field: "nickname"}}})
	assert.Error(t, err)
}

func TestBuildCount(t *testing.T) {
	table := domain.People()
	sql, args, err := BuildCount(table, []clause.Expression{clause.Gt(table.C("id"), lit(int64(3)))}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT count(*) FROM people WHERE people.id > $1", sql)
	assert.Equal(t, []interface{}{int64(3)}, args)
}

func TestBuildInsert(t *testing.T) {
	born := time.Date(1961, 8, 4, 0, 0, 0, 0, time.UTC)
	builder, err := BuildInsert(domain.People(), domain.Document{
		"lastname":  "Obama",
		"firstname": "Barack",
		"born":      "1961-08-04",
	})
	require.NoError(t, err)

	sql, args, err := builder.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO people (firstname,lastname,born) VALUES ($1,$2,$3) RETURNING id, firstname, lastname, born",
		sql)
	assert.Equal(t, []interface{}{"Barack", "Obama", born}, args)

	_, err = pg_query.Parse(sql)
	assert.NoError(t, err)
}

func TestBuildInsertRejectsUnstoredFields(t *testing.T) {
	_, err := BuildInsert(domain.People(), domain.Document{"fullname": "Barack Obama"})
	assert.ErrorContains(t, err, "computed")

	_, err = BuildInsert(domain.People(), domain.Document{"nickname": "B"})
	assert.ErrorContains(t, err, "unknown field")

	_, err = BuildInsert(domain.People(), domain.Document{})
	assert.Error(t, err)
}

func TestBuildUpdate(t *testing.T) {
	builder, err := BuildUpdate(domain.People(), "7", domain.Document{"lastname": "Obama"})
	require.NoError(t, err)

	sql, args, err := builder.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE people SET lastname = $1 WHERE people.id = $2 RETURNING id, firstname, lastname, born",
		sql)
	assert.Equal(t, []interface{}{"Obama", int64(7)}, args)
}

func TestExists(t *testing.T) {
	table := domain.People()
	stub := &stubDB{row: stubRow{value: true}}
	repo := NewDocumentRepository(stub)

	exists, err := repo.Exists(context.Background(), table, clause.Eq(table.C("lastname"), lit("Obama")))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "SELECT EXISTS ( SELECT 1 FROM people WHERE people.lastname = $1 )", stub.sql)
	assert.Equal(t, []any{"Obama"}, stub.args)

	_, err = pg_query.Parse(stub.sql)
	assert.NoError(t, err)
}

func TestCount(t *testing.T) {
	stub := &stubDB{row: stubRow{value: int64(42)}}
	repo := NewDocumentRepository(stub)

	total, err := repo.Count(context.Background(), domain.People(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
	assert.Equal(t, "SELECT count(*) FROM people", stub.sql)

	stub.row = stubRow{err: errors.New("connection reset")}
	_, err = repo.Count(context.Background(), domain.People(), nil)
	assert.ErrorContains(t, err, "connection reset")
}
