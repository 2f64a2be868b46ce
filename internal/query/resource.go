package query

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rpattn/eveql/internal/domain"
	"github.com/rpattn/eveql/internal/schema/validator"
)

// ErrUnknownResource is returned for a resource name that was never
// registered.
var ErrUnknownResource = errors.New("unknown resource")

// Resource exposes a mapped table under a name, with the schema its
// documents are validated against.
type Resource struct {
	Name   string
	Table  *domain.Table
	Schema validator.RawSchema
}

// PeopleResource is the reference resource backed by the people table.
func PeopleResource() Resource {
	return Resource{
		Name:  "people",
		Table: domain.People(),
		Schema: validator.RawSchema{
			"id":        {"type": "integer", "readonly": true},
			"firstname": {"type": "string", "maxlength": 80, "nullable": true},
			"lastname":  {"type": "string", "maxlength": 120, "nullable": true, "unique": true},
			"born":      {"type": "datetime", "nullable": true},
			"fullname":  {"type": "string", "readonly": true},
		},
	}
}

// WithSchema returns a copy of r whose schema has the fields of overrides
// merged in, rule by rule.
func (r Resource) WithSchema(overrides validator.RawSchema) Resource {
	merged := make(validator.RawSchema, len(r.Schema)+len(overrides))
	for field, rules := range r.Schema {
		merged[field] = copyRules(rules)
	}
	for field, rules := range overrides {
		if merged[field] == nil {
			merged[field] = map[string]any{}
		}
		for name, value := range rules {
			merged[field][name] = value
		}
	}
	r.Schema = merged
	return r
}

func copyRules(rules map[string]any) map[string]any {
	out := make(map[string]any, len(rules))
	for k, v := range rules {
		out[k] = v
	}
	return out
}

type registered struct {
	resource  Resource
	validator *validator.Validator
}

// Registry holds the resources served by a Service.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]*registered
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string]*registered)}
}

func (r *Registry) add(entry *registered) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[entry.resource.Name]; exists {
		return fmt.Errorf("resource %q is already registered", entry.resource.Name)
	}
	r.resources[entry.resource.Name] = entry
	return nil
}

func (r *Registry) get(name string) (*registered, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.resources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}
	return entry, nil
}

// Names returns the registered resource names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resource returns the registered resource called name.
func (r *Registry) Resource(name string) (Resource, error) {
	entry, err := r.get(name)
	if err != nil {
		return Resource{}, err
	}
	return entry.resource, nil
}
