package district

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is one precomputed district row from the policy summary dataset.
// The forecasting pipeline owns the schema; this side treats the row as an
// opaque bag of fields. A missing or malformed field is reported through
// the ok return, never a panic.
type Record map[string]any

// Name returns the district name, or "" when the row has none.
func (r Record) Name() string {
	s, _ := r.String("District")
	return s
}

// String returns the named field rendered as a string.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		if strings.TrimSpace(s) == "" {
			return "", false
		}
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return fmt.Sprintf("%v", s), true
	}
}

// Float returns the named field as a float64. String values are parsed;
// anything unparseable reports false.
func (r Record) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Int returns the named field as an int, truncating float values.
func (r Record) Int(key string) (int, bool) {
	f, ok := r.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// FallbackNarrative returns the precomputed policy narrative shipped with
// the row. Every published dataset row carries one; an empty string means
// the row predates the narrative generation script.
func (r Record) FallbackNarrative() string {
	s, _ := r.String("Policy_Narrative")
	return s
}
