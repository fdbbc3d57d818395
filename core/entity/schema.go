package entity

import (
	"context"
	"sort"
	"strings"
)

// Gateway is the remote API holding the entity collections.
// Any returned error is recoverable: callers surface it and keep their state.
type Gateway interface {
	List(ctx context.Context, resource string) ([]Record, error)
	Create(ctx context.Context, resource string, fields Record) (Record, error)
	Update(ctx context.Context, resource, id string, fields Record) (Record, error)
	Delete(ctx context.Context, resource, id string) error
}

type FieldKind int

const (
	KindText FieldKind = iota
	KindNumber
	KindDate
	KindEmail
	KindRef  // id of a record in another collection
	KindRefs // list of ids
)

type (
	Field struct {
		Name     string
		Label    string
		Kind     FieldKind
		Rules    string // validator tags, e.g. "required,email"
		ReadOnly bool
	}

	// Ref resolves the id held in Field against the Resource collection.
	// The display value (Display fields joined by a space) is written to As.
	Ref struct {
		Field       string
		As          string
		Resource    string
		Display     []string
		Placeholder string
	}

	// Derivation fills Target from the draft and the sibling collections whenever one of On changes.
	Derivation struct {
		Target string
		On     []string
		Needs  []string
		Derive func(draft Record, siblings Collections) (interface{}, bool)
	}

	// UniqueRule rejects a draft whose Fields values are already used by another record.
	UniqueRule struct {
		Fields  []string
		Field   string
		Message func(draft Record) string
	}

	Column struct {
		Field string `json:"field"`
		Label string `json:"label"`
	}

	Schema struct {
		Name     string
		Resource string
		Title    string
		Fields   []Field
		Columns  []Column

		Searchable []string
		Filters    []string
		DateField  string
		SumFields  []string

		Refs        []Ref
		Derivations []Derivation
		Unique      *UniqueRule

		// Scope narrows the collection to the rows the view is about.
		Scope    func(Row) bool
		Defaults func(siblings Collections) Record
		Needs    []string

		PageSize int
	}
)

// Field returns the field definition for name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasFilter tells whether field is one of the schema dropdown filters.
func (s *Schema) HasFilter(field string) bool {
	for _, f := range s.Filters {
		if f == field {
			return true
		}
	}
	return false
}

// Dependencies lists the resources a view of s needs: its own first, then every sibling.
func (s *Schema) Dependencies() []string {
	deps := []string{s.Resource}
	seen := map[string]bool{s.Resource: true}
	add := func(res string) {
		if res != "" && !seen[res] {
			seen[res] = true
			deps = append(deps, res)
		}
	}
	for _, ref := range s.Refs {
		add(ref.Resource)
	}
	for _, d := range s.Derivations {
		for _, res := range d.Needs {
			add(res)
		}
	}
	for _, res := range s.Needs {
		add(res)
	}
	return deps
}

// EditOrder sorts fields the way a form fills them in: derived fields come last,
// so a value given for them is not overwritten by their derivation.
func (s *Schema) EditOrder(fields []string) []string {
	derived := make(map[string]bool, len(s.Derivations))
	for _, d := range s.Derivations {
		derived[d.Target] = true
	}
	ordered := append([]string(nil), fields...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if derived[ordered[i]] != derived[ordered[j]] {
			return !derived[ordered[i]]
		}
		return ordered[i] < ordered[j]
	})
	return ordered
}

func (d Derivation) controlledBy(field string) bool {
	for _, f := range d.On {
		if f == field {
			return true
		}
	}
	return false
}

func (r Ref) placeholder() string {
	if r.Placeholder == "" {
		return Unknown
	}
	return r.Placeholder
}

func (r Ref) display(rec Record) string {
	parts := make([]string, 0, len(r.Display))
	for _, f := range r.Display {
		if t := strings.TrimSpace(rec.Text(f)); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
