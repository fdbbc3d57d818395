package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type (
	// Record is one server-side entity instance, as decoded from the API.
	// Numbers are kept as json.Number so ids survive the round trip untouched.
	Record map[string]interface{}

	// Row is a display-ready Record: cross-references resolved to their display values.
	Row map[string]interface{}

	// Collections holds the records of several resources, keyed by resource name.
	Collections map[string][]Record
)

func (r Record) ID() string { return Text(r["id"]) }

// Text returns the display text of field.
func (r Record) Text(field string) string { return Text(r[field]) }

// Clone returns a shallow copy of r; list values are copied too.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	c := make(Record, len(r))
	for k, v := range r {
		if l, ok := v.([]interface{}); ok {
			v = append([]interface{}(nil), l...)
		}
		c[k] = v
	}
	return c
}

func (r Row) ID() string               { return Text(r["id"]) }
func (r Row) Text(field string) string { return Text(r[field]) }

// Find returns the record of recs whose id is id.
func Find(recs []Record, id string) (Record, bool) {
	if i := indexOf(recs, id); i >= 0 {
		return recs[i], true
	}
	return nil, false
}

func indexOf(recs []Record, id string) int {
	if id == "" {
		return -1
	}
	for i, rec := range recs {
		if rec.ID() == id {
			return i
		}
	}
	return -1
}

// Text renders a record value the way it is displayed and compared.
func Text(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, Text(item))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(val, ", ")
	default:
		return fmt.Sprint(val)
	}
}

// Float returns the numeric value of v, if it has one.
func Float(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}

// IsEmpty tells whether v counts as an unfilled form value.
func IsEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []interface{}:
		return len(val) == 0
	case []string:
		return len(val) == 0
	}
	return false
}
