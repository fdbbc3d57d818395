package entity

import (
	"context"
	"sort"

	"github.com/pkg/errors"
)

type (
	// Count is one labelled figure of a dashboard.
	Count struct {
		Label string `json:"label"`
		Total int    `json:"total"`
	}

	// Amount is the number and the sum of the payments sharing a label.
	Amount struct {
		Label string  `json:"label"`
		Count int     `json:"count"`
		Total float64 `json:"total"`
	}

	// Stats is what a dashboard renders. Breakdowns a dashboard does not compute stay empty.
	Stats struct {
		Dashboard string            `json:"dashboard"`
		Title     string            `json:"title"`
		Cards     []Count           `json:"cards"`
		ByMention []Count           `json:"etudiants_par_mention,omitempty"`
		ByLevel   []Count           `json:"etudiants_par_niveau,omitempty"`
		Received  *float64          `json:"total_recu,omitempty"`
		ByTranche []Amount          `json:"paiements_par_tranche,omitempty"`
		ByMonth   []Amount          `json:"paiements_par_mois,omitempty"`
		Errors    map[string]string `json:"errors,omitempty"`
	}

	// Dashboard computes its Stats out of the collections of Resources.
	Dashboard struct {
		Name      string
		Title     string
		Resources []string
		Compute   func(st *Stats, cols Collections)
	}
)

var dashboards = map[string]func() *Dashboard{
	"campus":   CampusDashboard,
	"payments": PaymentsDashboard,
}

// LookupDashboard returns the named dashboard.
func LookupDashboard(name string) (*Dashboard, bool) {
	fn, ok := dashboards[name]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// Load lists the dashboard resources concurrently and computes its stats.
// A resource that failed to load counts as empty and is reported in Stats.Errors.
func (d *Dashboard) Load(ctx context.Context, gw Gateway) (Stats, error) {
	cache := NewCache(gw)
	if err := cache.Load(ctx, d.Resources...); err != nil {
		if _, partial := errors.Cause(err).(*LoadError); !partial {
			return Stats{}, errors.Wrap(err, "loading "+d.Name)
		}
	}

	st := Stats{Dashboard: d.Name, Title: d.Title}
	d.Compute(&st, cache.Snapshot())
	if errs := cache.Errs(); len(errs) > 0 {
		st.Errors = make(map[string]string, len(errs))
		for res, err := range errs {
			st.Errors[res] = err.Error()
		}
	}
	return st, nil
}

// CampusDashboard counts the records of each entity and the students per mention and level.
func CampusDashboard() *Dashboard {
	cards := []struct{ label, resource string }{
		{"Utilisateurs", "users"},
		{"Professeurs", "professeurs"},
		{"Étudiants", "etudiants"},
		{"Mentions", "mentions"},
		{"Parcours", "parcours"},
		{"Niveaux", "niveau"},
		{"Cours actifs", "matiere"},
	}
	resources := make([]string, 0, len(cards))
	for _, c := range cards {
		resources = append(resources, c.resource)
	}

	return &Dashboard{
		Name:      "campus",
		Title:     "Tableau de bord",
		Resources: resources,
		Compute: func(st *Stats, cols Collections) {
			for _, c := range cards {
				st.Cards = append(st.Cards, Count{Label: c.label, Total: len(cols[c.resource])})
			}
			students := cols["etudiants"]
			st.ByMention = countBy(students, "mention", cols["mentions"], "nom_mention")
			st.ByLevel = countBy(students, "niveau", cols["niveau"], "nom_niveau")
		},
	}
}

// PaymentsDashboard sums the payments received, per tranche and per month, and counts
// the students still owing a tranche of their level.
func PaymentsDashboard() *Dashboard {
	return &Dashboard{
		Name:      "payments",
		Title:     "Tableau de bord comptable",
		Resources: []string{"paiements", "etudiants", "frais"},
		Compute: func(st *Stats, cols Collections) {
			payments, fees := cols["paiements"], cols["frais"]

			var received float64
			for _, p := range payments {
				if n, ok := Float(p["montant"]); ok {
					received += n
				}
			}
			st.Received = &received
			st.Cards = []Count{
				{Label: "Paiements", Total: len(payments)},
				{Label: "Étudiants en attente", Total: len(owing(cols["etudiants"], fees, payments))},
			}

			// tranches in tariff order, then the ones only found in payments
			var tranches []string
			for _, f := range fees {
				tranches = append(tranches, f.Text("designation"))
			}
			for _, p := range payments {
				tranches = append(tranches, p.Text("designation"))
			}
			st.ByTranche = sumBy(payments, unique(tranches), func(p Record) string { return p.Text("designation") })

			var months []string
			month := func(p Record) string {
				if t, ok := ParseDate(p.Text("date")); ok {
					return t.Format("2006-01")
				}
				return ""
			}
			for _, p := range payments {
				if m := month(p); m != "" {
					months = append(months, m)
				}
			}
			months = unique(months)
			sort.Strings(months)
			st.ByMonth = sumBy(payments, months, month)
		},
	}
}

// countBy counts recs per referenced record, in the order of refs.
// Records pointing to no known reference are counted under Unknown.
func countBy(recs []Record, field string, refs []Record, display string) []Count {
	counts := make(map[string]int, len(refs))
	var unknown int
	for _, rec := range recs {
		id := rec.Text(field)
		if _, ok := Find(refs, id); ok {
			counts[id]++
		} else {
			unknown++
		}
	}
	out := make([]Count, 0, len(refs)+1)
	for _, ref := range refs {
		out = append(out, Count{Label: ref.Text(display), Total: counts[ref.ID()]})
	}
	if unknown > 0 {
		out = append(out, Count{Label: Unknown, Total: unknown})
	}
	return out
}

// sumBy groups payments under labels, in the order given. Payments labelled "" are left out.
func sumBy(payments []Record, labels []string, label func(Record) string) []Amount {
	idx := make(map[string]int, len(labels))
	out := make([]Amount, 0, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		idx[l] = len(out)
		out = append(out, Amount{Label: l})
	}
	for _, p := range payments {
		i, ok := idx[label(p)]
		if !ok {
			continue
		}
		out[i].Count++
		if n, ok := Float(p["montant"]); ok {
			out[i].Total += n
		}
	}
	return out
}

// owing returns the students with a tariff of their level they have not paid yet.
func owing(students, fees, payments []Record) []Record {
	paid := make(map[[2]string]bool, len(payments))
	for _, p := range payments {
		paid[[2]string{p.Text("etudiant"), p.Text("designation")}] = true
	}
	var out []Record
	for _, s := range students {
		for _, f := range fees {
			if f.Text("niveau") != s.Text("niveau") {
				continue
			}
			if !paid[[2]string{s.ID(), f.Text("designation")}] {
				out = append(out, s)
				break
			}
		}
	}
	return out
}
