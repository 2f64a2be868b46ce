// Package query serves filtered, sorted and paginated listings of mapped
// tables, and validated writes to them.
package query

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/rpattn/eveql/internal/clause"
	"github.com/rpattn/eveql/internal/config"
	"github.com/rpattn/eveql/internal/domain"
	"github.com/rpattn/eveql/internal/parser"
	"github.com/rpattn/eveql/internal/repository"
	"github.com/rpattn/eveql/internal/schema/validator"
)

// FindRequest carries the listing arguments of a resource. Where is a
// filter expression and Sort a sort expression, both optional. Page starts
// at 1; zero selects the first page.
type FindRequest struct {
	Where      string
	Sort       string
	Page       int
	MaxResults int
}

// FindResult is one page of documents.
type FindResult struct {
	Items      []domain.Document `json:"_items"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	MaxResults int               `json:"max_results"`
}

// Explanation describes the statement a FindRequest runs.
type Explanation struct {
	Filters []string `json:"filters"`
	SQL     string   `json:"sql"`
	Args    []any    `json:"args"`
}

// Service runs requests against registered resources.
type Service struct {
	registry *Registry
	repo     repository.DocumentRepository
	cache    *parser.Cache
	cfg      config.QueryConfig
}

// NewService creates a service storing documents in repo.
func NewService(repo repository.DocumentRepository, cfg config.QueryConfig) (*Service, error) {
	if cfg.DefaultPageSize < 1 {
		cfg.DefaultPageSize = 25
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	if cfg.CacheSize < 1 {
		cfg.CacheSize = 256
	}

	cache, err := parser.NewCache(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		registry: NewRegistry(),
		repo:     repo,
		cache:    cache,
		cfg:      cfg,
	}, nil
}

// Registry returns the service's resources.
func (s *Service) Registry() *Registry { return s.registry }

// Table returns the mapped table of the named resource.
func (s *Service) Table(name string) (*domain.Table, error) {
	entry, err := s.registry.get(name)
	if err != nil {
		return nil, err
	}
	return entry.resource.Table, nil
}

// Register validates the resource schema against its table and makes the
// resource available.
func (s *Service) Register(resource Resource) error {
	if resource.Name == "" || resource.Table == nil {
		return errors.New("resource needs a name and a table")
	}

	v, err := validator.New(resource.Schema,
		validator.WithTable(resource.Table),
		validator.WithUniqueChecker(s.repo),
	)
	if err != nil {
		return fmt.Errorf("invalid schema for %s: %w", resource.Name, err)
	}
	if err := validator.ValidateSchema(v.Schema(), resource.Table); err != nil {
		return fmt.Errorf("invalid schema for %s: %w", resource.Name, err)
	}

	if err := s.registry.add(&registered{resource: resource, validator: v}); err != nil {
		return err
	}
	log.Debug().Str("resource", resource.Name).Str("table", resource.Table.Name).Msg("Registered resource")
	return nil
}

// Find returns one page of the resource's documents matching req.
func (s *Service) Find(ctx context.Context, name string, req FindRequest) (FindResult, error) {
	entry, err := s.registry.get(name)
	if err != nil {
		return FindResult{}, err
	}
	q, page, size, err := s.buildQuery(entry.resource.Table, req)
	if err != nil {
		return FindResult{}, err
	}

	items, err := s.repo.Find(ctx, entry.resource.Table, q)
	if err != nil {
		return FindResult{}, err
	}
	total, err := s.repo.Count(ctx, entry.resource.Table, q.Filters)
	if err != nil {
		return FindResult{}, err
	}

	return FindResult{Items: items, Total: total, Page: page, MaxResults: size}, nil
}

// Explain returns the filters and statement Find would run for req.
func (s *Service) Explain(name string, req FindRequest) (Explanation, error) {
	entry, err := s.registry.get(name)
	if err != nil {
		return Explanation{}, err
	}
	q, _, _, err := s.buildQuery(entry.resource.Table, req)
	if err != nil {
		return Explanation{}, err
	}

	filters := make([]string, 0, len(q.Filters))
	for _, f := range q.Filters {
		rendered, err := clause.Render(f)
		if err != nil {
			return Explanation{}, err
		}
		filters = append(filters, rendered)
	}

	builder, err := repository.BuildSelect(entry.resource.Table, q)
	if err != nil {
		return Explanation{}, err
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return Explanation{}, fmt.Errorf("failed to build select: %w", err)
	}
	if args == nil {
		args = []any{}
	}
	return Explanation{Filters: filters, SQL: sql, Args: args}, nil
}

// Insert validates doc and stores it. A rejected document yields a
// *validator.ValidationError.
func (s *Service) Insert(ctx context.Context, name string, doc domain.Document) (domain.Document, error) {
	entry, err := s.registry.get(name)
	if err != nil {
		return nil, err
	}

	result, err := entry.validator.Validate(ctx, doc)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, &validator.ValidationError{Result: result}
	}
	return s.repo.Insert(ctx, entry.resource.Table, doc)
}

// Update validates the partial document doc and applies it to the stored
// document with primary key id.
func (s *Service) Update(ctx context.Context, name string, id any, doc domain.Document) (domain.Document, error) {
	entry, err := s.registry.get(name)
	if err != nil {
		return nil, err
	}

	result, err := entry.validator.ValidateUpdate(ctx, doc, id)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, &validator.ValidationError{Result: result}
	}
	return s.repo.Update(ctx, entry.resource.Table, id, doc)
}

// Validate checks doc against the resource schema without storing it.
func (s *Service) Validate(ctx context.Context, name string, doc domain.Document) (validator.Result, error) {
	entry, err := s.registry.get(name)
	if err != nil {
		return validator.Result{}, err
	}
	return entry.validator.Validate(ctx, doc)
}

func (s *Service) buildQuery(table *domain.Table, req FindRequest) (domain.Query, int, int, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return domain.Query{}, 0, 0, fmt.Errorf("page must be positive, got %d", req.Page)
	}
	if req.MaxResults < 0 {
		return domain.Query{}, 0, 0, fmt.Errorf("max_results must not be negative, got %d", req.MaxResults)
	}

	size := req.MaxResults
	if size == 0 {
		size = s.cfg.DefaultPageSize
	}
	if size > s.cfg.MaxPageSize {
		size = s.cfg.MaxPageSize
	}
	if page-1 > math.MaxInt/size {
		return domain.Query{}, 0, 0, fmt.Errorf("page %d is out of range", req.Page)
	}

	filters, err := s.cache.Parse(req.Where, table)
	if err != nil {
		return domain.Query{}, 0, 0, err
	}
	sorts, err := parser.ParseSort(req.Sort, table)
	if err != nil {
		return domain.Query{}, 0, 0, err
	}

	return domain.Query{
		Filters: filters,
		Sort:    sorts,
		Limit:   size,
		Offset:  (page - 1) * size,
	}, page, size, nil
}
