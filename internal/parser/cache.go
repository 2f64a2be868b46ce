package parser

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/rpattn/eveql/internal/clause"
	"github.com/rpattn/eveql/internal/domain"
)

// Cache memoizes successful parses per table and expression. Clause trees
// are immutable, so cached results are shared between callers.
type Cache struct {
	entries *lru.Cache[string, []clause.Expression]
}

// NewCache creates a cache holding at most size expressions.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[string, []clause.Expression](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Parse behaves like the package level Parse. Errors are never cached.
func (c *Cache) Parse(expr string, table *domain.Table) ([]clause.Expression, error) {
	key := table.Name + "\x00" + expr
	if clauses, ok := c.entries.Get(key); ok {
		return append([]clause.Expression(nil), clauses...), nil
	}

	log.Debug().Str("table", table.Name).Str("expr", expr).Msg("Parsing filter expression")
	clauses, err := Parse(expr, table)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, clauses)
	return append([]clause.Expression(nil), clauses...), nil
}

// Len returns the number of cached expressions.
func (c *Cache) Len() int {
	return c.entries.Len()
}
