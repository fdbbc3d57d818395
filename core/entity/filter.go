package entity

import (
	"strings"
	"time"
)

// All is the dropdown value that disables a filter.
const All = "all"

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// FilterState is the search text, the dropdown selections and the date range of a view.
// An empty or "all" selection matches everything; a zero From or To leaves that side open.
type FilterState struct {
	Search  string            `json:"search"`
	Selects map[string]string `json:"selects,omitempty"`
	From    time.Time         `json:"from,omitempty"`
	To      time.Time         `json:"to,omitempty"`
}

func (f FilterState) Clone() FilterState {
	c := f
	if f.Selects != nil {
		c.Selects = make(map[string]string, len(f.Selects))
		for k, v := range f.Selects {
			c.Selects[k] = v
		}
	}
	return c
}

// IsIdentity tells whether f lets every row through.
func (f FilterState) IsIdentity() bool {
	if strings.TrimSpace(f.Search) != "" || !f.From.IsZero() || !f.To.IsZero() {
		return false
	}
	for _, v := range f.Selects {
		if !isAll(v) {
			return false
		}
	}
	return true
}

// Matches is the conjunction of the text search over s.Searchable, every dropdown selection
// and the date range over s.DateField.
func (f FilterState) Matches(row Row, s *Schema) bool {
	return f.matchText(row, s.Searchable) && f.matchSelects(row) && f.matchDates(row, s.DateField)
}

func (f FilterState) matchText(row Row, fields []string) bool {
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	if needle == "" {
		return true
	}
	for _, fld := range fields {
		if strings.Contains(strings.ToLower(row.Text(fld)), needle) {
			return true
		}
	}
	return false
}

func (f FilterState) matchSelects(row Row) bool {
	for fld, want := range f.Selects {
		if isAll(want) {
			continue
		}
		if row.Text(fld) != want {
			return false
		}
	}
	return true
}

func (f FilterState) matchDates(row Row, field string) bool {
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	if field == "" {
		return true
	}
	d, ok := ParseDate(row.Text(field))
	if !ok {
		return false
	}
	if !f.From.IsZero() && d.Before(day(f.From)) {
		return false
	}
	if !f.To.IsZero() && d.After(day(f.To)) {
		return false
	}
	return true
}

// Filter keeps the rows matching f, in order.
func Filter(rows []Row, f FilterState, s *Schema) []Row {
	if f.IsIdentity() {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if f.Matches(row, s) {
			out = append(out, row)
		}
	}
	return out
}

// Options returns the distinct non-empty values of field, in first-seen order.
func Options(rows []Row, field string) []string {
	seen := make(map[string]bool)
	opts := make([]string, 0)
	for _, row := range rows {
		v := row.Text(field)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		opts = append(opts, v)
	}
	return opts
}

// ParseDate reads a record date, truncated to the day.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return day(t), true
		}
	}
	return time.Time{}, false
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, All)
}
