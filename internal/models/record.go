// internal/models/record.go
package models

import (
	"fmt"
	"strconv"
)

// Record is one row from the remote store. The schema is unknown until
// runtime, so every access goes through a defensive getter that falls back
// to a placeholder instead of failing the request.
type Record map[string]interface{}

// Placeholder returned for absent or null fields.
const Placeholder = "N/A"

// GetString returns the field as a string, or Placeholder when the field
// is missing or null.
func (r Record) GetString(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return Placeholder
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return Placeholder
		}
		return t
	case float64:
		// JSON numbers decode as float64; render integers without a dot.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// FirstString returns the first present, non-null field among keys, or
// "" when none is set. Used for fallback chains like member_id/user_id.
func (r Record) FirstString(keys ...string) string {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			if s := r.GetString(k); s != Placeholder {
				return s
			}
		}
	}
	return ""
}

// Has reports whether the field is present and non-null.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}
