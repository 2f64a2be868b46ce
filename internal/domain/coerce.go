package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05.000000",
	"2006/01/02",
	"01/02/2006",
}

// ParseTime parses a timestamp in any of the accepted layouts. RFC1123 is
// the date format of the REST API.
func ParseTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

// FloatToInt converts an integral float to int64. It reports false for
// fractions and for values outside the int64 range.
func FloatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Coerce converts v into the value the driver expects for a column of type
// ct. Values that cannot be converted are returned unchanged so the data
// store reports the mismatch.
func Coerce(ct ColumnType, v any) any {
	switch ct {
	case ColumnTypeString, ColumnTypeText, ColumnTypeUUID:
		switch val := v.(type) {
		case int64:
			return strconv.FormatInt(val, 10)
		case int:
			return strconv.Itoa(val)
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(val)
		}
	case ColumnTypeInteger:
		switch val := v.(type) {
		case int:
			return int64(val)
		case float64:
			if n, ok := FloatToInt(val); ok {
				return n
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
				return n
			}
		}
	case ColumnTypeFloat:
		switch val := v.(type) {
		case int64:
			return float64(val)
		case int:
			return float64(val)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
				return f
			}
		}
	case ColumnTypeBoolean:
		if s, ok := v.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return b
			}
		}
	case ColumnTypeDateTime, ColumnTypeDate:
		if s, ok := v.(string); ok {
			if ts, err := ParseTime(s); err == nil {
				return ts
			}
		}
	}
	return v
}
