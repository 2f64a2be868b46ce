package validator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rpattn/eveql/internal/clause"
	"github.com/rpattn/eveql/internal/domain"
)

// Error message formats. Field specific formats take the field name first.
const (
	ErrorBadType          = "value of field '%s' must be of %s type"
	ErrorRequiredField    = "required field"
	ErrorUnknownField     = "unknown field"
	ErrorReadOnlyField    = "field is read-only"
	ErrorNotNullable      = "null value not allowed"
	ErrorEmptyNotAllowed  = "empty values not allowed"
	ErrorMinLength        = "min length for field '%s' is %d"
	ErrorMaxLength        = "max length for field '%s' is %d"
	ErrorMinValue         = "min value for field '%s' is %v"
	ErrorMaxValue         = "max value for field '%s' is %v"
	ErrorUnallowedValue   = "unallowed value '%v' for field '%s'"
	ErrorRegex            = "value of field '%s' does not match regex '%s'"
	ErrorNotUnique        = "value '%v' is not unique"
	ErrorUniqueNotChecked = "unique rule for field '%s' requires a data store"
)

// UniqueChecker looks up whether any stored row matches a clause.
type UniqueChecker interface {
	Exists(ctx context.Context, table *domain.Table, where clause.Expression) (bool, error)
}

// FieldError is a validation failure of one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// Result is the outcome of validating one document.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}

// Messages returns every error message in field order.
func (r Result) Messages() []string {
	messages := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		messages = append(messages, e.Message)
	}
	return messages
}

// ByField groups error messages by field.
func (r Result) ByField() map[string][]string {
	grouped := make(map[string][]string, len(r.Errors))
	for _, e := range r.Errors {
		grouped[e.Field] = append(grouped[e.Field], e.Message)
	}
	return grouped
}

func (r *Result) add(field, message string, value any) {
	r.Valid = false
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message, Value: value})
}

// ValidationError reports a document rejected by the validator.
type ValidationError struct {
	Result Result
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Result.Errors))
	for _, fe := range e.Result.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "document failed validation: " + strings.Join(parts, "; ")
}

// Option configures a Validator.
type Option func(*Validator)

// WithTable binds the validator to a mapped table, which the unique rule
// queries.
func WithTable(table *domain.Table) Option {
	return func(v *Validator) { v.table = table }
}

// WithUniqueChecker sets the data store used by the unique rule.
func WithUniqueChecker(checker UniqueChecker) Option {
	return func(v *Validator) { v.unique = checker }
}

// WithTransparentRules controls whether unknown schema rules are ignored.
// It defaults to true.
func WithTransparentRules(transparent bool) Option {
	return func(v *Validator) { v.transparent = transparent }
}

// Validator checks documents against a schema. It is safe for concurrent
// use once built.
type Validator struct {
	schema      Schema
	table       *domain.Table
	unique      UniqueChecker
	transparent bool
}

// New builds a validator from a raw schema.
func New(raw RawSchema, opts ...Option) (*Validator, error) {
	v := &Validator{transparent: true}
	for _, opt := range opts {
		opt(v)
	}
	schema, err := ParseSchema(raw, v.transparent)
	if err != nil {
		return nil, err
	}
	v.schema = schema
	return v, nil
}

// Schema returns the parsed schema.
func (v *Validator) Schema() Schema { return v.schema }

// TransparentRules reports whether unknown schema rules are ignored.
func (v *Validator) TransparentRules() bool { return v.transparent }

// Validate checks a document about to be inserted.
func (v *Validator) Validate(ctx context.Context, doc domain.Document) (Result, error) {
	return v.validate(ctx, doc, false, nil)
}

// ValidateUpdate checks a partial update of the stored document with the
// given primary key. Required fields may be absent and unique checks skip
// the document itself.
func (v *Validator) ValidateUpdate(ctx context.Context, doc domain.Document, id any) (Result, error) {
	return v.validate(ctx, doc, true, id)
}

func (v *Validator) validate(ctx context.Context, doc domain.Document, update bool, id any) (Result, error) {
	result := Result{Valid: true, Errors: []FieldError{}}

	unknown := make([]string, 0)
	for field := range doc {
		if _, ok := v.schema[field]; !ok {
			unknown = append(unknown, field)
		}
	}
	sort.Strings(unknown)
	for _, field := range unknown {
		result.add(field, ErrorUnknownField, doc[field])
	}

	for _, field := range v.schema.Fields() {
		rules := v.schema[field]
		value, present := doc[field]

		if !present {
			if rules.Required && !update {
				result.add(field, ErrorRequiredField, nil)
			}
			continue
		}
		if rules.ReadOnly {
			result.add(field, ErrorReadOnlyField, value)
			continue
		}
		if value == nil {
			if !rules.Nullable {
				result.add(field, ErrorNotNullable, nil)
			}
			continue
		}
		if !checkType(rules.Type, value) {
			result.add(field, fmt.Sprintf(ErrorBadType, field, typeLabels[rules.Type]), value)
			continue
		}

		v.checkValue(&result, field, rules, value)

		if rules.Unique {
			if err := v.checkUnique(ctx, &result, field, value, id); err != nil {
				return Result{}, err
			}
		}
	}

	return result, nil
}

func (v *Validator) checkValue(result *Result, field string, rules Rules, value any) {
	if s, ok := value.(string); ok && s == "" && !rules.Empty {
		result.add(field, ErrorEmptyNotAllowed, value)
		return
	}

	if n, ok := length(value); ok {
		if rules.MinLength != nil && n < *rules.MinLength {
			result.add(field, fmt.Sprintf(ErrorMinLength, field, *rules.MinLength), value)
		}
		if rules.MaxLength != nil && n > *rules.MaxLength {
			result.add(field, fmt.Sprintf(ErrorMaxLength, field, *rules.MaxLength), value)
		}
	}

	if f, ok := toFloat(value); ok {
		if rules.Min != nil && f < *rules.Min {
			result.add(field, fmt.Sprintf(ErrorMinValue, field, *rules.Min), value)
		}
		if rules.Max != nil && f > *rules.Max {
			result.add(field, fmt.Sprintf(ErrorMaxValue, field, *rules.Max), value)
		}
	}

	if len(rules.Allowed) > 0 {
		for _, item := range listItems(value) {
			if !allowed(rules.Allowed, item) {
				result.add(field, fmt.Sprintf(ErrorUnallowedValue, item, field), value)
			}
		}
	}

	if rules.Regex != nil {
		if s, ok := value.(string); ok && !rules.Regex.MatchString(s) {
			pattern := strings.TrimSuffix(strings.TrimPrefix(rules.Regex.String(), "^(?:"), ")$")
			result.add(field, fmt.Sprintf(ErrorRegex, field, pattern), value)
		}
	}
}

func (v *Validator) checkUnique(ctx context.Context, result *Result, field string, value any, id any) error {
	if v.unique == nil || v.table == nil {
		return fmt.Errorf(ErrorUniqueNotChecked, field)
	}
	col, ok := v.table.Column(field)
	if !ok {
		return fmt.Errorf("unique field '%s' is not a column of %s", field, v.table.Name)
	}

	var where clause.Expression = clause.Eq(v.table.C(col.Name), &clause.Literal{Value: value, Bind: domain.Coerce(col.Type, value)})
	if pk, ok := v.table.PrimaryKey(); ok && id != nil {
		where = clause.And(where, clause.NotEq(v.table.C(pk.Name), &clause.Literal{Value: id, Bind: domain.Coerce(pk.Type, id)}))
	}

	exists, err := v.unique.Exists(ctx, v.table, where)
	if err != nil {
		return fmt.Errorf("failed to check uniqueness of %s: %w", field, err)
	}
	if exists {
		log.Debug().Str("table", v.table.Name).Str("field", field).Msg("Rejected duplicate value")
		result.add(field, fmt.Sprintf(ErrorNotUnique, value), value)
	}
	return nil
}

func listItems(value any) []any {
	if items, ok := value.([]any); ok {
		return items
	}
	if items, ok := value.([]string); ok {
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out
	}
	return []any{value}
}

func allowed(options []any, value any) bool {
	for _, option := range options {
		if sameValue(option, value) {
			return true
		}
	}
	return false
}
