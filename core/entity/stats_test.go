package entity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esdes/campus/core"
	"github.com/esdes/campus/core/entity"
	inmemdb "github.com/esdes/campus/storage/inmem"
	testutil "github.com/esdes/campus/tests"
)

func loadStats(t *testing.T, name string, gw *inmemdb.Gateway) entity.Stats {
	t.Helper()
	dash, ok := entity.LookupDashboard(name)
	require.True(t, ok, "unknown dashboard %q", name)
	st, err := dash.Load(context.Background(), gw)
	require.NoError(t, err)
	return st
}

func TestCampusDashboard(t *testing.T) {
	gw := inmemdb.NewGateway()
	testutil.SeedCampus(t, gw)
	gw.Seed("users", entity.Record{"id": testutil.ID(1), "username": "admin"})

	st := loadStats(t, "campus", gw)
	assert.Equal(t, "campus", st.Dashboard)
	assert.Equal(t, []entity.Count{
		{Label: "Utilisateurs", Total: 1},
		{Label: "Professeurs", Total: 0},
		{Label: "Étudiants", Total: 3},
		{Label: "Mentions", Total: 2},
		{Label: "Parcours", Total: 1},
		{Label: "Niveaux", Total: 2},
		{Label: "Cours actifs", Total: 0},
	}, st.Cards)
	assert.Equal(t, []entity.Count{{Label: "Informatique", Total: 2}, {Label: "Gestion", Total: 1}}, st.ByMention)
	assert.Equal(t, []entity.Count{{Label: "L1", Total: 1}, {Label: "L2", Total: 2}}, st.ByLevel)
	assert.Nil(t, st.Received)
	assert.Empty(t, st.Errors)
}

func TestCampusDashboardUnknownReference(t *testing.T) {
	gw := inmemdb.NewGateway()
	testutil.SeedCampus(t, gw)
	gw.Seed("etudiants", entity.Record{"id": testutil.ID(4), "nom": "Ravelo", "mention": testutil.ID(9), "niveau": testutil.ID(1)})

	st := loadStats(t, "campus", gw)
	assert.Equal(t, []entity.Count{
		{Label: "Informatique", Total: 2},
		{Label: "Gestion", Total: 1},
		{Label: entity.Unknown, Total: 1},
	}, st.ByMention)
	assert.Equal(t, []entity.Count{{Label: "L1", Total: 2}, {Label: "L2", Total: 2}}, st.ByLevel)
}

func TestPaymentsDashboard(t *testing.T) {
	tests := []struct {
		name        string
		payments    []entity.Record
		wantCards   []entity.Count
		wantTotal   float64
		wantTranche []entity.Amount
		wantMonth   []entity.Amount
	}{
		{
			name: "seeded",
			wantCards: []entity.Count{
				{Label: "Paiements", Total: 1},
				{Label: "Étudiants en attente", Total: 3},
			},
			wantTotal: 150000,
			wantTranche: []entity.Amount{
				{Label: "Tranche 1", Count: 1, Total: 150000},
				{Label: "Tranche 2", Count: 0, Total: 0},
			},
			wantMonth: []entity.Amount{{Label: "2025-01", Count: 1, Total: 150000}},
		},
		{
			name: "more payments",
			payments: []entity.Record{
				{"etudiant": testutil.ID(1), "designation": "Tranche 2", "montant": json.Number("120000"), "date": "2025-03-02", "reference": "REC-002"},
				{"etudiant": testutil.ID(2), "designation": "Tranche 1", "montant": json.Number("200000"), "date": "2025-01-20", "reference": "REC-003"},
				{"etudiant": testutil.ID(3), "designation": "Frais d'examen", "montant": json.Number("10000"), "date": "", "reference": "REC-004"},
			},
			wantCards: []entity.Count{
				{Label: "Paiements", Total: 4},
				{Label: "Étudiants en attente", Total: 2},
			},
			wantTotal: 480000,
			wantTranche: []entity.Amount{
				{Label: "Tranche 1", Count: 2, Total: 350000},
				{Label: "Tranche 2", Count: 1, Total: 120000},
				{Label: "Frais d'examen", Count: 1, Total: 10000},
			},
			wantMonth: []entity.Amount{
				{Label: "2025-01", Count: 2, Total: 350000},
				{Label: "2025-03", Count: 1, Total: 120000},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := inmemdb.NewGateway()
			testutil.SeedCampus(t, gw)
			gw.Seed("paiements", tt.payments...)

			st := loadStats(t, "payments", gw)
			assert.Equal(t, tt.wantCards, st.Cards)
			require.NotNil(t, st.Received)
			assert.Equal(t, tt.wantTotal, *st.Received)
			assert.Equal(t, tt.wantTranche, st.ByTranche)
			assert.Equal(t, tt.wantMonth, st.ByMonth)
			assert.Empty(t, st.ByMention)
		})
	}
}

func TestDashboardPartialLoad(t *testing.T) {
	gw := inmemdb.NewGateway()
	testutil.SeedCampus(t, gw)
	gw.FailWith(inmemdb.OpList, "frais", core.NewGatewayError(http.StatusInternalServerError, nil))

	st := loadStats(t, "payments", gw)
	assert.Contains(t, st.Errors, "frais")
	assert.Equal(t, entity.Count{Label: "Étudiants en attente", Total: 0}, st.Cards[1], "no tariff, nothing owed")
	assert.Equal(t, []entity.Amount{{Label: "Tranche 1", Count: 1, Total: 150000}}, st.ByTranche)
}

func TestLookupDashboard(t *testing.T) {
	_, ok := entity.LookupDashboard("nope")
	assert.False(t, ok)

	a, _ := entity.LookupDashboard("campus")
	b, _ := entity.LookupDashboard("campus")
	assert.NotSame(t, a, b)
}
