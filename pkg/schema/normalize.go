package schema

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Normalize returns a copy of data coerced toward the schema:
//
//   - keys that are not schema fields are dropped
//   - empty or "null"-like strings become nil on nullable fields
//   - numeric-looking strings become int64 on integer fields and float64 on
//     number fields; json.Number and integral floats are unwrapped likewise
//   - enum values are matched case-insensitively to their canonical spelling
//
// Values that cannot be coerced are kept as they are, so Validate reports
// them against the field that carries them. Missing keys stay missing.
func (s Schema) Normalize(data map[string]any) map[string]any {
	out := make(map[string]any, len(s.Fields))
	for _, field := range s.Fields {
		val, ok := data[field.Name]
		if !ok {
			continue
		}
		out[field.Name] = normalizeValue(field, val)
	}
	return out
}

func normalizeValue(field Field, val any) any {
	if str, ok := val.(string); ok {
		trimmed := strings.TrimSpace(str)
		if field.Nullable && isNullString(trimmed) {
			return nil
		}
		val = trimmed
	}

	switch field.Type {
	case TypeInteger:
		if n, ok := toInt64(val); ok {
			return n
		}
	case TypeNumber:
		if f, ok := toFloat64(val); ok {
			return f
		}
	case TypeString:
		if field.IsEnum() {
			if str, ok := val.(string); ok {
				for _, allowed := range field.Enum {
					if strings.EqualFold(allowed, str) {
						return allowed
					}
				}
			}
		}
	}
	return val
}

func isNullString(s string) bool {
	switch strings.ToLower(s) {
	case "", "null", "none", "n/a", "na", "nr", "not reported", "unknown":
		return true
	}
	return false
}

func toInt64(val any) (int64, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if fitsInt64(v) {
			return int64(v), true
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil && fitsInt64(f) {
			return int64(f), true
		}
	case string:
		cleaned := strings.NewReplacer(",", "", "_", "", " ", "").Replace(v)
		if n, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil && fitsInt64(f) {
			return int64(f), true
		}
	}
	return 0, false
}

// fitsInt64 reports whether f is integral and converts to int64 exactly.
func fitsInt64(f float64) bool {
	return f == math.Trunc(f) && math.Abs(f) < 1<<63
}

func toFloat64(val any) (float64, bool) {
	switch v := val.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	case string:
		if f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
