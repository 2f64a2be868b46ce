package validator

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/eveql/internal/domain"
)

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// checkType reports whether value is of the named schema type.
func checkType(typeName string, value any) bool {
	switch typeName {
	case "":
		return true
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeInteger:
		return isInteger(value)
	case TypeFloat:
		return isFloat(value)
	case TypeNumber:
		return isInteger(value) || isFloat(value)
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeDateTime:
		switch v := value.(type) {
		case time.Time:
			return true
		case string:
			_, err := domain.ParseTime(v)
			return err == nil
		}
		return false
	case TypeDict:
		_, ok := value.(map[string]any)
		return ok
	case TypeList:
		kind := reflect.ValueOf(value).Kind()
		return kind == reflect.Slice || kind == reflect.Array
	case TypeObjectID:
		s, ok := value.(string)
		return ok && objectIDPattern.MatchString(s)
	case TypeUUID:
		s, ok := value.(string)
		if !ok {
			return false
		}
		_, err := uuid.Parse(strings.TrimSpace(s))
		return err == nil
	}
	return false
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		// JSON decoding yields float64 for every number
		return v == float64(int64(v))
	default:
		return false
	}
}

func isFloat(value any) bool {
	switch value.(type) {
	case float32, float64:
		return true
	default:
		return false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func length(value any) (int, bool) {
	if s, ok := value.(string); ok {
		return len([]rune(s)), true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	}
	return 0, false
}

func sameValue(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}
