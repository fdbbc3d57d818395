package entity

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/esdes/campus/core"
)

type DialogState int

const (
	Closed DialogState = iota
	OpenCreate
	OpenEdit
	Submitting
)

func (s DialogState) String() string {
	switch s {
	case OpenCreate:
		return "create"
	case OpenEdit:
		return "edit"
	case Submitting:
		return "submitting"
	default:
		return "closed"
	}
}

var (
	ErrBusy         = errors.New("a submission is already in progress")
	ErrDialogClosed = errors.New("dialog is not open")
	ErrReadOnly     = errors.New("field is read-only")
	ErrUnknownField = errors.New("unknown field")

	requiredMessage = "ce champ est obligatoire"
)

// Dialog is the create/edit form of one entity.
//
//	Closed -> OpenCreate|OpenEdit -> Submitting -> Closed
//	                                 Submitting -> OpenCreate|OpenEdit (with Err)
type Dialog struct {
	schema *Schema
	gw     Gateway
	cache  *Cache

	mu      sync.Mutex
	state   DialogState
	mode    DialogState
	id      string
	draft   Record
	touched map[string]bool
	err     error
}

func NewDialog(schema *Schema, gw Gateway, cache *Cache) *Dialog {
	return &Dialog{schema: schema, gw: gw, cache: cache}
}

func (d *Dialog) State() DialogState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// ID is the id of the record being edited ("" in create mode).
func (d *Dialog) ID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.id
}

// Err is the error of the last failed submit, kept until the dialog closes.
func (d *Dialog) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *Dialog) Draft() Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draft.Clone()
}

// Touched tells whether field was explicitly set since the dialog opened.
func (d *Dialog) Touched(field string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.touched[field]
}

// OpenCreate starts an empty draft filled with the schema defaults.
func (d *Dialog) OpenCreate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Submitting {
		return ErrBusy
	}
	siblings := d.cache.Snapshot()

	draft := make(Record, len(d.schema.Fields))
	for _, f := range d.schema.Fields {
		if !f.ReadOnly {
			draft[f.Name] = nil
		}
	}
	if d.schema.Defaults != nil {
		for k, v := range d.schema.Defaults(siblings) {
			draft[k] = v
		}
	}
	d.open(OpenCreate, "", draft)
	for _, der := range d.schema.Derivations {
		d.derive(der, siblings)
	}
	return nil
}

// OpenEdit clones the editable fields of rec into the draft.
// Derived fields left empty by the record are filled in.
func (d *Dialog) OpenEdit(rec Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Submitting {
		return ErrBusy
	}
	draft := make(Record, len(d.schema.Fields))
	for _, f := range d.schema.Fields {
		if f.ReadOnly {
			continue
		}
		v := rec[f.Name]
		if l, ok := v.([]interface{}); ok {
			v = append([]interface{}(nil), l...)
		}
		draft[f.Name] = v
	}
	d.open(OpenEdit, rec.ID(), draft)

	siblings := d.cache.Snapshot()
	for _, der := range d.schema.Derivations {
		if IsEmpty(d.draft[der.Target]) {
			d.derive(der, siblings)
		}
	}
	return nil
}

// Set edits one draft field. Changing a controlling field re-derives the fields depending on it,
// overwriting them; a derived field stays editable afterwards.
func (d *Dialog) Set(field string, value interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case Closed:
		return ErrDialogClosed
	case Submitting:
		return ErrBusy
	}
	f, ok := d.schema.Field(field)
	if !ok {
		return errors.Wrap(ErrUnknownField, field)
	}
	if f.ReadOnly {
		return errors.Wrap(ErrReadOnly, field)
	}
	d.draft[field] = value
	d.touched[field] = true

	var siblings Collections
	for _, der := range d.schema.Derivations {
		if !der.controlledBy(field) {
			continue
		}
		if siblings == nil {
			siblings = d.cache.Snapshot()
		}
		d.derive(der, siblings)
	}
	return nil
}

// Cancel discards the draft. It is refused while a submission is in flight.
func (d *Dialog) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Submitting {
		return ErrBusy
	}
	d.close()
	return nil
}

// Submit validates the draft, then issues exactly one create or update call.
// A *core.ValidationError means no call was made. On a gateway error the dialog
// goes back to its open state with the draft untouched and the error kept in Err.
func (d *Dialog) Submit(ctx context.Context) (Record, error) {
	mode, id, body, gen, err := d.begin()
	if err != nil {
		return nil, err
	}

	var rec Record
	if mode == OpenCreate {
		rec, err = d.gw.Create(ctx, d.schema.Resource, body)
	} else {
		rec, err = d.gw.Update(ctx, d.schema.Resource, id, body)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.state = d.mode
		d.err = err
		return nil, err
	}
	if rec == nil {
		rec = body
	}
	if mode == OpenCreate {
		d.cache.applyCreate(gen, d.schema.Resource, rec)
	} else {
		if rec.ID() == "" {
			rec["id"] = id
		}
		d.cache.applyUpdate(gen, d.schema.Resource, rec)
	}
	d.close()
	return rec, nil
}

// begin validates the draft and moves the dialog to Submitting.
func (d *Dialog) begin() (mode DialogState, id string, body Record, gen uint64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case Closed:
		return Closed, "", nil, 0, ErrDialogClosed
	case Submitting:
		return Submitting, "", nil, 0, ErrBusy
	}
	if err := d.validate(); err != nil {
		d.err = err
		return d.state, "", nil, 0, err
	}
	mode, id, body = d.state, d.id, d.payload()
	gen = d.cache.Generation()
	d.state, d.mode = Submitting, mode
	return mode, id, body, gen, nil
}

func (d *Dialog) open(mode DialogState, id string, draft Record) {
	d.state, d.mode = mode, mode
	d.id = id
	d.draft = draft
	d.touched = make(map[string]bool)
	d.err = nil
}

func (d *Dialog) close() {
	d.state, d.mode = Closed, Closed
	d.id = ""
	d.draft = nil
	d.touched = nil
	d.err = nil
}

func (d *Dialog) derive(der Derivation, siblings Collections) {
	if der.Derive == nil {
		return
	}
	if v, ok := der.Derive(d.draft, siblings); ok {
		d.draft[der.Target] = v
	}
}

// payload is the request body: the non-empty editable fields of the draft.
func (d *Dialog) payload() Record {
	body := make(Record, len(d.draft))
	for k, v := range d.draft {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		body[k] = v
	}
	return body
}

func (d *Dialog) validate() error {
	var flds []core.FieldError
	for _, f := range d.schema.Fields {
		if f.ReadOnly || f.Rules == "" {
			continue
		}
		v := d.draft[f.Name]
		rules, required := splitRequired(f.Rules)
		if IsEmpty(v) {
			if required {
				flds = append(flds, core.FieldError{Field: f.Name, Error: requiredMessage})
			}
			continue
		}
		switch val := v.(type) {
		case string:
			v = strings.TrimSpace(val)
		case map[string]interface{}, []interface{}:
			if f.Kind != KindRefs {
				flds = append(flds, core.FieldError{Field: f.Name, Error: core.InvalidValueText})
				continue
			}
		}
		if msg := core.ValidateValue(v, rules); msg != "" {
			flds = append(flds, core.FieldError{Field: f.Name, Error: msg})
		}
	}
	if len(flds) == 0 && d.schema.Unique != nil {
		if fe, taken := d.checkUnique(); taken {
			flds = append(flds, fe)
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func (d *Dialog) checkUnique() (core.FieldError, bool) {
	u := d.schema.Unique
	for _, rec := range d.cache.Collection(d.schema.Resource) {
		if d.mode == OpenEdit && rec.ID() == d.id {
			continue
		}
		same := true
		for _, f := range u.Fields {
			if Text(rec[f]) != Text(d.draft[f]) {
				same = false
				break
			}
		}
		if same {
			msg := "cette valeur est déjà utilisée"
			if u.Message != nil {
				msg = u.Message(d.draft)
			}
			return core.FieldError{Field: u.Field, Error: msg}, true
		}
	}
	return core.FieldError{}, false
}

// splitRequired removes the "required" tag from rules; emptiness is checked before the validator runs.
func splitRequired(rules string) (string, bool) {
	var (
		required bool
		kept     []string
	)
	for _, tag := range strings.Split(rules, ",") {
		tag = strings.TrimSpace(tag)
		switch tag {
		case "required":
			required = true
		case "", "omitempty":
		default:
			kept = append(kept, tag)
		}
	}
	return strings.Join(kept, ","), required
}
