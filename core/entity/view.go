package entity

import "strings"

const (
	Unknown  = "Inconnu"
	NotAvail = "N/A"
)

// Project builds the display row of rec: every Ref is resolved by a linear scan of its sibling collection.
// A missing or empty referent shows the ref placeholder.
func Project(rec Record, refs []Ref, siblings Collections) Row {
	row := make(Row, len(rec)+len(refs))
	for k, v := range rec {
		row[k] = v
	}
	for _, ref := range refs {
		row[ref.As] = resolve(rec[ref.Field], ref, siblings[ref.Resource])
	}
	return row
}

// ProjectAll projects recs, keeping their order.
func ProjectAll(recs []Record, refs []Ref, siblings Collections) []Row {
	rows := make([]Row, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, Project(rec, refs, siblings))
	}
	return rows
}

func resolve(val interface{}, ref Ref, sibling []Record) string {
	switch ids := val.(type) {
	case []interface{}:
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			names = append(names, lookup(Text(id), ref, sibling))
		}
		return strings.Join(names, ", ")
	case []string:
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			names = append(names, lookup(id, ref, sibling))
		}
		return strings.Join(names, ", ")
	default:
		return lookup(Text(val), ref, sibling)
	}
}

func lookup(id string, ref Ref, sibling []Record) string {
	rec, ok := Find(sibling, id)
	if !ok {
		return ref.placeholder()
	}
	if name := ref.display(rec); name != "" {
		return name
	}
	return ref.placeholder()
}
