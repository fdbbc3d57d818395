package entity

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrUnknownFilter = errors.New("unknown filter")
	ErrNotConfirmed  = errors.New("deletion not confirmed")
)

type (
	Option func(*Manager)

	// View is everything a list screen renders.
	View struct {
		Entity  string              `json:"entity"`
		Title   string              `json:"title"`
		Columns []Column            `json:"columns"`
		Page    Page                `json:"page"`
		Filter  FilterState         `json:"filter"`
		Options map[string][]string `json:"options,omitempty"`
		Totals  map[string]float64  `json:"totals,omitempty"`
		Errors  map[string]string   `json:"errors,omitempty"`
	}
)

// WithPageSize overrides the schema page size (ignored when n < 1).
func WithPageSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.page = NewPageState(n)
		}
	}
}

// Manager drives one list screen: load, project, filter, paginate and mutate one entity.
type Manager struct {
	schema *Schema
	gw     Gateway
	cache  *Cache
	dialog *Dialog

	mu     sync.Mutex
	filter FilterState
	page   PageState
}

func NewManager(schema *Schema, gw Gateway, opts ...Option) *Manager {
	size := schema.PageSize
	if size < 1 {
		size = DefaultPageSize
	}
	cache := NewCache(gw)
	m := &Manager{
		schema: schema,
		gw:     gw,
		cache:  cache,
		dialog: NewDialog(schema, gw, cache),
		page:   NewPageState(size),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Schema() *Schema { return m.schema }
func (m *Manager) Cache() *Cache   { return m.cache }
func (m *Manager) Dialog() *Dialog { return m.dialog }

// Mount loads the entity collection and every sibling collection it depends on.
// A *LoadError lists the sections that failed; the others are usable.
func (m *Manager) Mount(ctx context.Context) error {
	return m.cache.Load(ctx, m.schema.Dependencies()...)
}

// Unmount drops the collections; late responses are ignored.
func (m *Manager) Unmount() {
	m.cache.Unmount()
}

// Rows returns the scoped, projected rows, before filtering.
func (m *Manager) Rows() []Row {
	siblings := m.cache.Snapshot()
	rows := ProjectAll(siblings[m.schema.Resource], m.schema.Refs, siblings)
	if m.schema.Scope == nil {
		return rows
	}
	scoped := make([]Row, 0, len(rows))
	for _, row := range rows {
		if m.schema.Scope(row) {
			scoped = append(scoped, row)
		}
	}
	return scoped
}

// Filtered returns the rows matching the current filter.
func (m *Manager) Filtered() []Row {
	m.mu.Lock()
	f := m.filter.Clone()
	m.mu.Unlock()
	return Filter(m.Rows(), f, m.schema)
}

func (m *Manager) View() View {
	m.mu.Lock()
	f := m.filter.Clone()
	pageNum, size := m.page.Current, m.page.Size
	m.mu.Unlock()

	all := m.Rows()
	rows := Filter(all, f, m.schema)

	v := View{
		Entity:  m.schema.Name,
		Title:   m.schema.Title,
		Columns: m.schema.Columns,
		Page:    Paginate(rows, pageNum, size),
		Filter:  f,
	}
	if len(m.schema.Filters) > 0 {
		v.Options = make(map[string][]string, len(m.schema.Filters))
		for _, fld := range m.schema.Filters {
			v.Options[fld] = Options(all, fld)
		}
	}
	if len(m.schema.SumFields) > 0 {
		v.Totals = make(map[string]float64, len(m.schema.SumFields))
		for _, fld := range m.schema.SumFields {
			var sum float64
			for _, row := range rows {
				if n, ok := Float(row[fld]); ok {
					sum += n
				}
			}
			v.Totals[fld] = sum
		}
	}
	if errs := m.cache.Errs(); len(errs) > 0 {
		v.Errors = make(map[string]string, len(errs))
		for res, err := range errs {
			v.Errors[res] = err.Error()
		}
	}
	return v
}

func (m *Manager) Filter() FilterState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter.Clone()
}

func (m *Manager) CurrentPage() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.page.Current
}

func (m *Manager) SetSearch(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter.Search = text
	m.page.Reset()
}

// SetFilter selects value on a dropdown filter; All (or "") clears it.
func (m *Manager) SetFilter(field, value string) error {
	if !m.schema.HasFilter(field) {
		return errors.Wrap(ErrUnknownFilter, field)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.filter.Selects == nil {
		m.filter.Selects = make(map[string]string)
	}
	m.filter.Selects[field] = value
	m.page.Reset()
	return nil
}

func (m *Manager) SetDateRange(from, to time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter.From, m.filter.To = from, to
	m.page.Reset()
}

// SetFilterState replaces the whole filter at once.
func (m *Manager) SetFilterState(f FilterState) error {
	for fld := range f.Selects {
		if !m.schema.HasFilter(fld) {
			return errors.Wrap(ErrUnknownFilter, fld)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = f.Clone()
	m.page.Reset()
	return nil
}

func (m *Manager) ResetFilters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = FilterState{}
	m.page.Reset()
}

func (m *Manager) Next() { m.move(func(p *PageState, total int) { p.Next(total) }) }
func (m *Manager) Prev() { m.move(func(p *PageState, total int) { p.Prev(total) }) }

func (m *Manager) GoTo(page int) {
	m.move(func(p *PageState, total int) { p.GoTo(page, total) })
}

func (m *Manager) move(fn func(p *PageState, total int)) {
	n := len(m.Filtered())
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.page, TotalPages(n, m.page.Size))
}

// Record returns the cached record with id.
func (m *Manager) Record(id string) (Record, bool) {
	return Find(m.cache.Collection(m.schema.Resource), id)
}

func (m *Manager) OpenCreate() (*Dialog, error) {
	if err := m.dialog.OpenCreate(); err != nil {
		return nil, err
	}
	return m.dialog, nil
}

func (m *Manager) OpenEdit(id string) (*Dialog, error) {
	rec, ok := m.Record(id)
	if !ok {
		return nil, errors.Wrap(ErrNotFound, id)
	}
	if err := m.dialog.OpenEdit(rec); err != nil {
		return nil, err
	}
	return m.dialog, nil
}

// Delete asks confirm, then deletes the record remotely and drops it from the cache.
// The record stays cached when the call fails.
func (m *Manager) Delete(ctx context.Context, id string, confirm func(Record) bool) error {
	rec, ok := m.Record(id)
	if !ok {
		return errors.Wrap(ErrNotFound, id)
	}
	if confirm != nil && !confirm(rec) {
		return ErrNotConfirmed
	}
	gen := m.cache.Generation()
	if err := m.gw.Delete(ctx, m.schema.Resource, id); err != nil {
		return err
	}
	m.cache.applyDelete(gen, m.schema.Resource, id)
	return nil
}
