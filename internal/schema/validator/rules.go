package validator

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// Supported values of the type rule.
const (
	TypeString   = "string"
	TypeInteger  = "integer"
	TypeFloat    = "float"
	TypeNumber   = "number"
	TypeBoolean  = "boolean"
	TypeDateTime = "datetime"
	TypeDict     = "dict"
	TypeList     = "list"
	TypeObjectID = "objectid"
	TypeUUID     = "uuid"
)

var typeLabels = map[string]string{
	TypeString:   "string",
	TypeInteger:  "integer",
	TypeFloat:    "float",
	TypeNumber:   "number",
	TypeBoolean:  "boolean",
	TypeDateTime: "datetime",
	TypeDict:     "dict",
	TypeList:     "list",
	TypeObjectID: "ObjectId",
	TypeUUID:     "UUID",
}

// RawSchema is a schema as written in configuration: field name to rule
// name to rule value.
type RawSchema map[string]map[string]any

// Rules holds the validation rules of one field.
type Rules struct {
	Type      string
	Required  bool
	Nullable  bool
	Unique    bool
	ReadOnly  bool
	Empty     bool // whether the empty string is accepted
	MinLength *int
	MaxLength *int
	Min       *float64
	Max       *float64
	Allowed   []any
	Regex     *regexp.Regexp

	// Extra keeps rules this validator does not know about. They are
	// only accepted when the schema is parsed with transparent rules.
	Extra map[string]any
}

// Schema maps field names to their rules.
type Schema map[string]Rules

// Fields returns the schema's field names in sorted order.
func (s Schema) Fields() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseSchema builds a Schema from raw rule maps. Unknown rules are an
// error unless transparent is set, in which case they are kept in Extra.
func ParseSchema(raw RawSchema, transparent bool) (Schema, error) {
	schema := make(Schema, len(raw))
	for field, ruleMap := range raw {
		rules := Rules{Empty: true}
		for name, value := range ruleMap {
			if err := applyRule(&rules, name, value); err != nil {
				if errors.Is(err, errUnknownRule) {
					if !transparent {
						return nil, fmt.Errorf("unknown rule '%s' for field '%s'", name, field)
					}
					if rules.Extra == nil {
						rules.Extra = map[string]any{}
					}
					rules.Extra[name] = value
					continue
				}
				return nil, fmt.Errorf("field '%s': %w", field, err)
			}
		}
		schema[field] = rules
	}
	return schema, nil
}

var errUnknownRule = errors.New("unknown rule")

func applyRule(rules *Rules, name string, value any) error {
	var err error
	switch name {
	case "type":
		typeName, ok := value.(string)
		if !ok {
			return fmt.Errorf("rule 'type' must be a string, got %T", value)
		}
		if _, known := typeLabels[typeName]; !known {
			return fmt.Errorf("unrecognized data-type '%s'", typeName)
		}
		rules.Type = typeName
	case "required":
		rules.Required, err = toBool(name, value)
	case "nullable":
		rules.Nullable, err = toBool(name, value)
	case "unique":
		rules.Unique, err = toBool(name, value)
	case "readonly":
		rules.ReadOnly, err = toBool(name, value)
	case "empty":
		rules.Empty, err = toBool(name, value)
	case "minlength":
		rules.MinLength, err = toIntPtr(name, value)
	case "maxlength":
		rules.MaxLength, err = toIntPtr(name, value)
	case "min":
		rules.Min, err = toFloatPtr(name, value)
	case "max":
		rules.Max, err = toFloatPtr(name, value)
	case "allowed":
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("rule 'allowed' must be a list, got %T", value)
		}
		rules.Allowed = items
	case "regex":
		pattern, ok := value.(string)
		if !ok {
			return fmt.Errorf("rule 'regex' must be a string, got %T", value)
		}
		rules.Regex, err = regexp.Compile("^(?:" + pattern + ")$")
	default:
		return errUnknownRule
	}
	return err
}

func toBool(rule string, value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("rule '%s' must be a boolean, got %T", rule, value)
}

func toIntPtr(rule string, value any) (*int, error) {
	f, ok := toFloat(value)
	if !ok || f != float64(int(f)) {
		return nil, fmt.Errorf("rule '%s' must be an integer, got %v", rule, value)
	}
	n := int(f)
	return &n, nil
}

func toFloatPtr(rule string, value any) (*float64, error) {
	f, ok := toFloat(value)
	if !ok {
		return nil, fmt.Errorf("rule '%s' must be a number, got %v", rule, value)
	}
	return &f, nil
}
