package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap stores a freeform structured blob as a JSON text column.
// Used for the per-type content metadata (game manifests, movie
// compression results).
type JSONMap map[string]any

// Value implements the driver.Valuer interface.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSONMap, %w", err)
	}

	return string(b), nil
}

// Scan implements the sql.Scanner interface.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("failed to scan JSONMap, %v", value)
	}

	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}

	return json.Unmarshal(b, m)
}

// GetString returns the string under key, or "" when absent or not a
// string.
func (m JSONMap) GetString(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// GetStringSlice returns the strings under key. Values that went
// through a JSON round trip come back as []any, so both shapes are
// accepted.
func (m JSONMap) GetStringSlice(key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}

	return nil
}
