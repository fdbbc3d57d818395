package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/esdes/campus/core/entity"
	"github.com/esdes/campus/core/session"
)

var errUnknownArea = errors.New("espace inconnu")

// stats prints the dashboard of area, the session's own area when empty.
func (cli *commandLine) stats(ctx context.Context, area string) error {
	if !cli.sess.IsAuthenticated() {
		return errNotLoggedIn
	}
	if area == "" {
		area = string(cli.sess.Layout())
	}
	d, err := cli.sess.Gate("/" + area + "/dashboard")
	if err != nil {
		if errors.Cause(err) == session.ErrUnknownRoute {
			return errors.Wrap(errUnknownArea, area)
		}
		return err
	}
	if !d.Allowed() {
		return errors.Wrap(errForbidden, area)
	}
	dash, ok := entity.LookupDashboard(d.Route.Dashboard)
	if !ok {
		return errors.Wrap(errUnknownArea, area)
	}

	st, err := dash.Load(ctx, cli.gateway(cli.sess.Token()))
	if err != nil {
		return err
	}
	res := make([]string, 0, len(st.Errors))
	for r := range st.Errors {
		res = append(res, r)
	}
	sort.Strings(res)
	for _, r := range res {
		fmt.Fprintf(cli.out, "attention: %s indisponible (%s)\n", r, st.Errors[r])
	}

	fmt.Fprintln(cli.out, st.Title)
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	for _, c := range st.Cards {
		fmt.Fprintf(w, "%s\t%d\n", c.Label, c.Total)
	}
	if st.Received != nil {
		fmt.Fprintf(w, "Total reçu\t%s\n", formatAmount(*st.Received))
	}
	printCounts(w, "Étudiants par mention", st.ByMention)
	printCounts(w, "Étudiants par niveau", st.ByLevel)
	printAmounts(w, "Paiements par tranche", st.ByTranche)
	printAmounts(w, "Paiements par mois", st.ByMonth)
	return w.Flush()
}

func printCounts(w *tabwriter.Writer, title string, counts []entity.Count) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\t\n", title)
	for _, c := range counts {
		fmt.Fprintf(w, "  %s\t%d\n", c.Label, c.Total)
	}
}

func printAmounts(w *tabwriter.Writer, title string, amounts []entity.Amount) {
	if len(amounts) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\t\t\n", title)
	for _, a := range amounts {
		fmt.Fprintf(w, "  %s\t%d\t%s\n", a.Label, a.Count, formatAmount(a.Total))
	}
}

func formatAmount(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
