package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/esdes/campus/core"
	"github.com/esdes/campus/core/entity"
	"github.com/esdes/campus/core/session"
	"github.com/esdes/campus/services/export"
)

var (
	errUnknownEntity = errors.New("entité inconnue")
	errForbidden     = errors.New("accès refusé")
	errAssignment    = errors.New("FIELD=VALUE attendu")
)

// keyValues is a repeatable FIELD=VALUE flag.
type keyValues map[string]string

func (kv keyValues) String() string {
	pairs := make([]string, 0, len(kv))
	for k, v := range kv {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (kv keyValues) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return errors.Wrap(errAssignment, s)
	}
	kv[strings.TrimSpace(k)] = v
	return nil
}

type listFlags struct {
	search  *string
	filters keyValues
	from    *string
	to      *string
	page    *int
}

func newListFlags(fs *flag.FlagSet) *listFlags {
	lf := &listFlags{filters: make(keyValues)}
	lf.search = fs.String("search", "", "Text searched in the searchable columns.")
	fs.Var(lf.filters, "filter", "A dropdown selection FIELD=VALUE (repeatable).")
	lf.from = fs.String("from", "", "Lower bound of the date range (YYYY-MM-DD).")
	lf.to = fs.String("to", "", "Upper bound of the date range (YYYY-MM-DD).")
	lf.page = fs.Int("page", 1, "The page to show.")
	return lf
}

func (lf *listFlags) state() (entity.FilterState, error) {
	f := entity.FilterState{Search: *lf.search}
	if len(lf.filters) > 0 {
		f.Selects = make(map[string]string, len(lf.filters))
		for k, v := range lf.filters {
			f.Selects[k] = v
		}
	}
	var fldErrs []core.FieldError
	for _, bound := range []struct {
		name string
		val  string
		dst  *time.Time
	}{{"from", *lf.from, &f.From}, {"to", *lf.to, &f.To}} {
		if bound.val == "" {
			continue
		}
		t, ok := entity.ParseDate(bound.val)
		if !ok {
			fldErrs = append(fldErrs, core.FieldError{Field: bound.name, Error: "date invalide (AAAA-MM-JJ)"})
			continue
		}
		*bound.dst = t
	}
	if len(fldErrs) > 0 {
		return f, core.NewValidationError(nil, fldErrs...)
	}
	return f, nil
}

func (lf *listFlags) apply(m *entity.Manager) error {
	f, err := lf.state()
	if err != nil {
		return err
	}
	if err := m.SetFilterState(f); err != nil {
		return err
	}
	if *lf.page > 1 {
		m.GoTo(*lf.page)
	}
	return nil
}

// manager mounts the entity name, once the session is known to be allowed on one of its pages.
func (cli *commandLine) manager(ctx context.Context, name string) (*entity.Manager, error) {
	if !cli.sess.IsAuthenticated() {
		return nil, errNotLoggedIn
	}
	schema, ok := entity.Lookup(name)
	if !ok {
		return nil, errors.Wrap(errUnknownEntity, name)
	}
	if !cli.allowed(name) {
		return nil, errors.Wrap(errForbidden, name)
	}

	var opts []entity.Option
	if cli.pageSize > 0 {
		opts = append(opts, entity.WithPageSize(cli.pageSize))
	}
	m := entity.NewManager(schema, cli.gateway(cli.sess.Token()), opts...)
	if err := m.Mount(ctx); err != nil {
		lErr, partial := errors.Cause(err).(*entity.LoadError)
		if !partial {
			return nil, errors.Wrap(err, "mounting "+name)
		}
		for res, e := range lErr.Errs {
			fmt.Fprintf(cli.out, "attention: %s indisponible (%v)\n", res, e)
		}
	}
	return m, nil
}

func (cli *commandLine) allowed(name string) bool {
	for _, r := range session.Routes {
		if r.Entity != name {
			continue
		}
		if d, err := cli.sess.Gate(r.Path); err == nil && d.Allowed() {
			return true
		}
	}
	return false
}

func (cli *commandLine) list(ctx context.Context, name string, lf *listFlags) error {
	m, err := cli.manager(ctx, name)
	if err != nil {
		return err
	}
	defer m.Unmount()
	if err := lf.apply(m); err != nil {
		return err
	}

	v := m.View()
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	cells := make([]string, 0, len(v.Columns)+1)
	cells = append(cells, "ID")
	for _, col := range v.Columns {
		cells = append(cells, col.Label)
	}
	fmt.Fprintln(w, strings.Join(cells, "\t"))
	for _, row := range v.Page.Rows {
		cells = cells[:0]
		cells = append(cells, row.Text("id"))
		for _, col := range v.Columns {
			cells = append(cells, row.Text(col.Field))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "Page %d/%d (%d résultats)\n", v.Page.Number, v.Page.TotalPages, v.Page.Total)
	for _, col := range v.Columns {
		if sum, ok := v.Totals[col.Field]; ok {
			fmt.Fprintf(cli.out, "Total %s: %s\n", col.Label, strconv.FormatFloat(sum, 'f', -1, 64))
		}
	}
	return nil
}

func (cli *commandLine) export(ctx context.Context, name string, lf *listFlags, path string) error {
	m, err := cli.manager(ctx, name)
	if err != nil {
		return err
	}
	defer m.Unmount()
	if err := lf.apply(m); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating export file")
	}
	if err := export.WriteXLSX(f, export.TableFromManager(m)); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "closing export file")
	}
	fmt.Fprintf(cli.out, "%d lignes exportées vers %s\n", len(m.Filtered()), path)
	return nil
}

// save creates a record (id == "") or edits the record id, through the mutation dialog.
func (cli *commandLine) save(ctx context.Context, name, id string, values map[string]string) error {
	m, err := cli.manager(ctx, name)
	if err != nil {
		return err
	}
	defer m.Unmount()

	var dlg *entity.Dialog
	if id == "" {
		dlg, err = m.OpenCreate()
	} else {
		dlg, err = m.OpenEdit(id)
	}
	if err != nil {
		return err
	}
	fields := make([]string, 0, len(values))
	for fld := range values {
		fields = append(fields, fld)
	}
	var fldErrs []core.FieldError
	for _, fld := range m.Schema().EditOrder(fields) {
		raw := values[fld]
		f, ok := m.Schema().Field(fld)
		if !ok {
			fldErrs = append(fldErrs, core.FieldError{Field: fld, Error: "champ inconnu"})
			continue
		}
		if err := dlg.Set(fld, parseValue(f, raw)); err != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: fld, Error: err.Error()})
		}
	}
	if len(fldErrs) > 0 {
		_ = dlg.Cancel()
		return core.NewValidationError(nil, fldErrs...)
	}
	rec, err := dlg.Submit(ctx)
	if err != nil {
		return err
	}
	verb := "créé"
	if id != "" {
		verb = "modifié"
	}
	fmt.Fprintf(cli.out, "%s %s: %s\n", name, verb, rec.ID())
	return nil
}

func (cli *commandLine) delete(ctx context.Context, name, id string, yes bool) error {
	m, err := cli.manager(ctx, name)
	if err != nil {
		return err
	}
	defer m.Unmount()

	var confirmErr error
	err = m.Delete(ctx, id, func(rec entity.Record) bool {
		if yes {
			return true
		}
		ok, err := confirmFunc(fmt.Sprintf("Supprimer %s %s ?", name, describe(m.Schema(), rec)))
		confirmErr = err
		return ok
	})
	if confirmErr != nil {
		return confirmErr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s supprimé: %s\n", name, id)
	return nil
}

// describe names rec by its first column.
func describe(s *entity.Schema, rec entity.Record) string {
	if len(s.Columns) > 0 {
		if txt := rec.Text(s.Columns[0].Field); txt != "" {
			return txt
		}
	}
	return rec.ID()
}

// parseAssignments reads FIELD=VALUE arguments.
func parseAssignments(args []string) (map[string]string, error) {
	values := make(keyValues, len(args))
	for _, arg := range args {
		if err := values.Set(arg); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// parseValue types a command line value the way the API encodes the field.
func parseValue(f entity.Field, raw string) interface{} {
	raw = strings.TrimSpace(raw)
	switch f.Kind {
	case entity.KindNumber, entity.KindRef:
		if raw == "" {
			return nil
		}
		if _, err := strconv.ParseFloat(raw, 64); err == nil {
			return json.Number(raw)
		}
		return raw
	case entity.KindRefs:
		ids := make([]interface{}, 0)
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, json.Number(id))
			}
		}
		return ids
	}
	return raw
}
