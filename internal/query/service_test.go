package query

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/eveql/internal/clause"
	"github.com/rpattn/eveql/internal/config"
	"github.com/rpattn/eveql/internal/domain"
	"github.com/rpattn/eveql/internal/parser"
	"github.com/rpattn/eveql/internal/schema/validator"
)

type stubRepository struct {
	docs     []domain.Document
	total    int64
	exists   bool
	query    domain.Query
	inserted domain.Document
	updated  domain.Document
	updateID any
	lookups  []string
}

func (s *stubRepository) Find(_ context.Context, _ *domain.Table, q domain.Query) ([]domain.Document, error) {
	s.query = q
	return s.docs, nil
}

func (s *stubRepository) Count(context.Context, *domain.Table, []clause.Expression) (int64, error) {
	return s.total, nil
}

func (s *stubRepository) Insert(_ context.Context, _ *domain.Table, doc domain.Document) (domain.Document, error) {
	s.inserted = doc
	stored := domain.Document{"id": int64(1)}
	for k, v := range doc {
		stored[k] = v
	}
	return stored, nil
}

func (s *stubRepository) Update(_ context.Context, _ *domain.Table, id any, doc domain.Document) (domain.Document, error) {
	s.updateID = id
	s.updated = doc
	return doc, nil
}

func (s *stubRepository) Exists(_ context.Context, _ *domain.Table, where clause.Expression) (bool, error) {
	sql, err := clause.Render(where)
	if err != nil {
		return false, err
	}
	s.lookups = append(s.lookups, sql)
	return s.exists, nil
}

func newService(t *testing.T, repo *stubRepository) *Service {
	t.Helper()
	svc, err := NewService(repo, config.QueryConfig{DefaultPageSize: 25, MaxPageSize: 50, CacheSize: 16})
	require.NoError(t, err)
	require.NoError(t, svc.Register(PeopleResource()))
	return svc
}

func TestFind(t *testing.T) {
	repo := &stubRepository{
		docs:  []domain.Document{{"id": int64(1), "firstname": "Barack"}},
		total: 51,
	}
	svc := newService(t, repo)

	result, err := svc.Find(context.Background(), "people", FindRequest{
		Where: `firstname == "Barack" or lastname == "Obama"`,
		Sort:  `[("born", -1)]`,
		Page:  3,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(51), result.Total)
	assert.Equal(t, 3, result.Page)
	assert.Equal(t, 25, result.MaxResults)
	assert.Len(t, result.Items, 1)

	assert.Equal(t, 25, repo.query.Limit)
	assert.Equal(t, 50, repo.query.Offset)
	assert.Equal(t, []domain.Sort{{Field: "born", Direction: domain.SortDirectionDesc}}, repo.query.Sort)
	require.Len(t, repo.query.Filters, 1)
	rendered, err := clause.Render(repo.query.Filters[0])
	require.NoError(t, err)
	assert.Equal(t, "people.firstname = 'Barack' OR people.lastname = 'Obama'", rendered)
}

func TestFindPagination(t *testing.T) {
	svc := newService(t, &stubRepository{})

	result, err := svc.Find(context.Background(), "people", FindRequest{MaxResults: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 50, result.MaxResults)

	_, err = svc.Find(context.Background(), "people", FindRequest{Page: -1})
	assert.Error(t, err)

	_, err = svc.Find(context.Background(), "people", FindRequest{MaxResults: -5})
	assert.Error(t, err)
}

func TestFindErrors(t *testing.T) {
	svc := newService(t, &stubRepository{})

	_, err := svc.Find(context.Background(), "accounts", FindRequest{})
	assert.ErrorIs(t, err, ErrUnknownResource)

	_, err = svc.Find(context.Background(), "people", FindRequest{Where: "a | 2"})
	assert.True(t, parser.IsParseError(err), "expected parse error, got %v", err)

	_, err = svc.Find(context.Background(), "people", FindRequest{Sort: "-nickname"})
	assert.True(t, parser.IsParseError(err), "expected parse error, got %v", err)
}

func TestFindRejectsPageBeyondOffsetRange(t *testing.T) {
	repo := &stubRepository{}
	svc := newService(t, repo)

	_, err := svc.Find(context.Background(), "people", FindRequest{Page: math.MaxInt, MaxResults: 10})
	assert.ErrorContains(t, err, "out of range")
	assert.Zero(t, repo.query.Limit, "repository should not be queried")

	_, err = svc.Explain("people", FindRequest{Page: math.MaxInt/10 + 2, MaxResults: 10})
	assert.ErrorContains(t, err, "out of range")

	result, err := svc.Find(context.Background(), "people", FindRequest{Page: math.MaxInt/10 + 1, MaxResults: 10})
	require.NoError(t, err)
	assert.Equal(t, (math.MaxInt/10)*10, repo.query.Offset)
	assert.Equal(t, math.MaxInt/10+1, result.Page)
}

func TestExplain(t *testing.T) {
	svc := newService(t, &stubRepository{})

	explanation, err := svc.Explain("people", FindRequest{
		Where:      "id > 1; lastname == 'Obama'",
		MaxResults: 10,
		Page:       2,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"people.id > 1", "people.lastname = 'Obama'"}, explanation.Filters)
	assert.Equal(t,
		"SELECT people.id, people.firstname, people.lastname, people.born, "+
			"(people.firstname || $1 || people.lastname) AS fullname FROM people "+
			"WHERE people.id > $2 AND people.lastname = $3 LIMIT 10 OFFSET 10",
		explanation.SQL)
	assert.Equal(t, []any{" ", int64(1), "Obama"}, explanation.Args)
}

func TestInsert(t *testing.T) {
	repo := &stubRepository{}
	svc := newService(t, repo)

	stored, err := svc.Insert(context.Background(), "people", domain.Document{
		"firstname": "Barack",
		"lastname":  "Obama",
		"born":      "1961-08-04T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored["id"])
	assert.Equal(t, "Barack", repo.inserted["firstname"])
	assert.Equal(t, []string{"people.lastname = 'Obama'"}, repo.lookups)
}

func TestInsertRejectsInvalidDocument(t *testing.T) {
	repo := &stubRepository{exists: true}
	svc := newService(t, repo)

	_, err := svc.Insert(context.Background(), "people", domain.Document{
		"id":       int64(9),
		"lastname": "Obama",
		"born":     "someday",
	})
	require.Error(t, err)

	var verr *validator.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := verr.Result.ByField()
	assert.Contains(t, fields, "id")
	assert.Contains(t, fields, "lastname")
	assert.Contains(t, fields, "born")
	assert.Nil(t, repo.inserted)
}

func TestUpdate(t *testing.T) {
	repo := &stubRepository{}
	svc := newService(t, repo)

	_, err := svc.Update(context.Background(), "people", int64(4), domain.Document{"lastname": "Obama"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), repo.updateID)
	assert.Equal(t, []string{"people.lastname = 'Obama' AND people.id != 4"}, repo.lookups)
}

func TestRegisterRejectsMismatchedSchema(t *testing.T) {
	svc, err := NewService(&stubRepository{}, config.QueryConfig{})
	require.NoError(t, err)

	resource := PeopleResource().WithSchema(validator.RawSchema{"born": {"type": "integer"}})
	assert.Error(t, svc.Register(resource))

	require.NoError(t, svc.Register(PeopleResource()))
	assert.Error(t, svc.Register(PeopleResource()))
	assert.Equal(t, []string{"people"}, svc.Registry().Names())
}

func TestWithSchemaMergesRules(t *testing.T) {
	base := PeopleResource()
	merged := base.WithSchema(validator.RawSchema{
		"firstname": {"required": true},
	})

	assert.Equal(t, true, merged.Schema["firstname"]["required"])
	assert.Equal(t, "string", merged.Schema["firstname"]["type"])
	assert.NotContains(t, base.Schema["firstname"], "required")
}
