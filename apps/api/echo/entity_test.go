package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/esdes/campus/core"
	inmemdb "github.com/esdes/campus/storage/inmem"
)

type viewResponse struct {
	Entity string `json:"entity"`
	Page   struct {
		Rows       []map[string]interface{} `json:"rows"`
		Number     int                      `json:"page"`
		Total      int                      `json:"total"`
		TotalPages int                      `json:"total_pages"`
	} `json:"page"`
	Options map[string][]string `json:"options"`
	Totals  map[string]float64  `json:"totals"`
	Errors  map[string]string   `json:"errors"`
}

func decodeView(t *testing.T, body []byte) viewResponse {
	t.Helper()
	var v viewResponse
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func Test_gateMiddleware(t *testing.T) {
	ts := setup(t)
	admin := ts.login(t, "admin")
	compta := ts.login(t, "compta")

	tests := []httpTest{
		{
			name: "anonymous", path: "/api/admin/students", wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, httpErr{Error: "connexion requise", Redirect: "/login"}),
		},
		{
			name: "comptable in admin area", path: "/api/admin/students", cookie: compta, wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "accès refusé", Redirect: "/comptable/dashboard"}),
		},
		{
			name: "not an entity page", path: "/api/admin/settings", cookie: admin, wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: "page introuvable"}),
		},
		{name: "unknown page", path: "/api/admin/nope", cookie: admin, wantCode: http.StatusNotFound},
		{name: "comptable", path: "/api/comptable/payments", cookie: compta, wantCode: http.StatusOK},
		{name: "admin in comptable area", path: "/api/comptable/tranches/", cookie: admin, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodGet, tt.path, tt.cookie)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_entityApi_dashboard(t *testing.T) {
	ts := setup(t)
	admin := ts.login(t, "admin")
	compta := ts.login(t, "compta")

	tests := []httpTest{
		{
			name: "anonymous", path: "/api/admin/dashboard", wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, httpErr{Error: "connexion requise", Redirect: "/login"}),
		},
		{
			name: "comptable on the admin dashboard", path: "/api/admin/dashboard", cookie: compta, wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "accès refusé", Redirect: "/comptable/dashboard"}),
		},
		{
			name: "admin", path: "/api/admin/dashboard", cookie: admin, wantCode: http.StatusOK,
			wantData: []byte(`{
				"dashboard": "campus",
				"title": "Tableau de bord",
				"cards": [
					{"label": "Utilisateurs", "total": 0},
					{"label": "Professeurs", "total": 0},
					{"label": "Étudiants", "total": 3},
					{"label": "Mentions", "total": 2},
					{"label": "Parcours", "total": 1},
					{"label": "Niveaux", "total": 2},
					{"label": "Cours actifs", "total": 0}
				],
				"etudiants_par_mention": [{"label": "Informatique", "total": 2}, {"label": "Gestion", "total": 1}],
				"etudiants_par_niveau": [{"label": "L1", "total": 1}, {"label": "L2", "total": 2}]
			}`),
		},
		{
			name: "comptable", path: "/api/comptable/dashboard/", cookie: compta, wantCode: http.StatusOK,
			wantData: []byte(`{
				"dashboard": "payments",
				"title": "Tableau de bord comptable",
				"cards": [{"label": "Paiements", "total": 1}, {"label": "Étudiants en attente", "total": 3}],
				"total_recu": 150000,
				"paiements_par_tranche": [
					{"label": "Tranche 1", "count": 1, "total": 150000},
					{"label": "Tranche 2", "count": 0, "total": 0}
				],
				"paiements_par_mois": [{"label": "2025-01", "count": 1, "total": 150000}]
			}`),
		},
		{name: "admin on the comptable dashboard", path: "/api/comptable/dashboard", cookie: admin, wantCode: http.StatusOK},
		{name: "no export", path: "/api/admin/dashboard/export", cookie: admin, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodGet, tt.path, tt.cookie)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_entityApi_list(t *testing.T) {
	ts := setup(t)
	admin := ts.login(t, "admin")

	path := func(page string, query url.Values) string {
		return "/api/admin/" + page + "?" + query.Encode()
	}

	tests := []struct {
		name      string
		path      string
		wantTotal int
		wantNames []string
	}{
		{name: "all", path: path("students", nil), wantTotal: 3, wantNames: []string{"Rakoto", "Rabe", "Randria"}},
		{name: "search", path: path("students", url.Values{"search": {"rabe"}}), wantTotal: 1, wantNames: []string{"Rabe"}},
		{name: "select", path: path("students", url.Values{"niveau_nom": {"L2"}}), wantTotal: 2, wantNames: []string{"Rabe", "Randria"}},
		{name: "select all", path: path("students", url.Values{"niveau_nom": {"all"}}), wantTotal: 3, wantNames: []string{"Rakoto", "Rabe", "Randria"}},
		{name: "scope", path: path("distance", nil), wantTotal: 1, wantNames: []string{"Randria"}},
		{
			name: "combined", path: path("presentiel", url.Values{"search": {"ra"}, "mention_nom": {"Gestion"}}),
			wantTotal: 1, wantNames: []string{"Rabe"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodGet, tt.path, admin)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			v := decodeView(t, rec.Body.Bytes())
			assert.Equal(t, tt.wantTotal, v.Page.Total)
			names := make([]string, 0, len(v.Page.Rows))
			for _, row := range v.Page.Rows {
				names = append(names, row["nom"].(string))
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}

	t.Run("options", func(t *testing.T) {
		rec := ts.do(http.MethodGet, path("students", nil), admin)
		v := decodeView(t, rec.Body.Bytes())
		assert.Equal(t, []string{"L1", "L2"}, v.Options["niveau_nom"])
		assert.Equal(t, []string{"Informatique", "Gestion"}, v.Options["mention_nom"])
	})
}

func Test_entityApi_listQueryErrors(t *testing.T) {
	ts := setup(t)
	admin := ts.login(t, "admin")

	tests := []httpTest{
		{
			name: "page", path: "/api/admin/students?page=zero", wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error": "page: numéro de page invalide", "fields": {"page": "numéro de page invalide"}}`),
		},
		{
			name: "date", path: "/api/comptable/payments?from=04/01/2025", wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error": "from: date invalide (AAAA-MM-JJ)", "fields": {"from": "date invalide (AAAA-MM-JJ)"}}`),
		},
		{name: "unknown filter", path: "/api/admin/students?colour=red", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodGet, tt.path, admin)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_entityApi_paging(t *testing.T) {
	ts := setup(t)
	admin := ts.login(t, "admin")

	// 3 students, 5 per page: any page past the end is clamped
	rec := ts.do(http.MethodGet, "/api/admin/students?page=4", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec.Body.Bytes())
	assert.Equal(t, 1, v.Page.Number)
	assert.Equal(t, 1, v.Page.TotalPages)
	assert.Len(t, v.Page.Rows, 3)
}

func Test_entityApi_partialLoad(t *testing.T) {
	ts := setup(t)
	admin := ts.login(t, "admin")
	ts.gw.FailWith(inmemdb.OpList, "niveau", errors.New("connection reset"))

	rec := ts.do(http.MethodGet, "/api/admin/students", admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decodeView(t, rec.Body.Bytes())
	assert.Equal(t, 3, v.Page.Total)
	assert.Contains(t, v.Errors, "niveau")
	assert.NotContains(t, v.Errors, "etudiants")
}

func Test_entityApi_totals(t *testing.T) {
	ts := setup(t)
	compta := ts.login(t, "compta")

	rec := ts.do(http.MethodGet, "/api/comptable/payments", compta)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec.Body.Bytes())
	assert.Equal(t, float64(150000), v.Totals["montant"])
	require.Len(t, v.Page.Rows, 1)
	assert.Equal(t, "Rakoto Alice", v.Page.Rows[0]["etudiant_nom"])
}

func Test_entityApi_create(t *testing.T) {
	ts := setup(t)
	compta := ts.login(t, "compta")

	t.Run("derived amount", func(t *testing.T) {
		body := []byte(`{"etudiant": 2, "designation": "Tranche 1", "date": "2025-02-01", "reference": "REC-010"}`)
		rec := ts.do(http.MethodPost, "/api/comptable/payments", compta, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, float64(200000), got["montant"])
		assert.Equal(t, "REC-010", got["reference"])
		assert.Equal(t, 1, ts.gw.Calls(inmemdb.OpCreate, "paiements"))
	})

	t.Run("already paid", func(t *testing.T) {
		body := []byte(`{"etudiant": 1, "designation": "Tranche 1", "date": "2025-02-01", "reference": "REC-011"}`)
		rec := ts.do(http.MethodPost, "/api/comptable/payments", compta, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Ce Tranche 1 a déjà été payé par cet étudiant.")
		assert.Equal(t, 1, ts.gw.Calls(inmemdb.OpCreate, "paiements"), "no call on a rejected draft")
	})

	t.Run("required fields", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/comptable/payments", compta, []byte(`{"etudiant": 3}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"reference":"ce champ est obligatoire"`)
	})

	t.Run("values of the wrong type", func(t *testing.T) {
		calls := ts.gw.Calls(inmemdb.OpCreate, "paiements")
		body := []byte(`{"etudiant": 3, "designation": "Tranche 1", "date": true, "reference": {"n": 12}}`)
		rec := ts.do(http.MethodPost, "/api/comptable/payments", compta, body)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"date":"valeur invalide"`)
		assert.Contains(t, rec.Body.String(), `"reference":"valeur invalide"`)
		assert.Equal(t, calls, ts.gw.Calls(inmemdb.OpCreate, "paiements"))
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/comptable/payments", compta, []byte(`{"colour": "red"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "colour: champ inconnu", "fields": {"colour": "champ inconnu"}}`, rec.Body.String())
	})

	t.Run("invalid body", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/comptable/payments", compta, []byte(`{"etudiant":`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_entityApi_gatewayErrors(t *testing.T) {
	ts := setup(t)
	admin := ts.login(t, "admin")

	ts.gw.FailWith(inmemdb.OpCreate, "mentions", core.NewGatewayError(http.StatusBadRequest, map[string]interface{}{
		"nom_mention": []interface{}{"mention with this nom mention already exists."},
	}))
	rec := ts.do(http.MethodPost, "/api/admin/mentions", admin, []byte(`{"nom_mention": "Gestion"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{
		"error": "mention with this nom mention already exists.",
		"fields": {"nom_mention": ["mention with this nom mention already exists."]}
	}`, rec.Body.String())

	ts.gw.FailWith(inmemdb.OpCreate, "mentions", core.NewGatewayError(http.StatusInternalServerError, nil))
	rec = ts.do(http.MethodPost, "/api/admin/mentions", admin, []byte(`{"nom_mention": "Droit"}`))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func Test_entityApi_updateAndDelete(t *testing.T) {
	ts := setup(t)
	admin := ts.login(t, "admin")

	rec := ts.do(http.MethodPut, "/api/admin/mentions/1", admin, []byte(`{"nom_mention": "Informatique et réseaux"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Informatique et réseaux")

	rec = ts.do(http.MethodGet, "/api/admin/mentions?search=r%C3%A9seaux", admin)
	assert.Equal(t, 1, decodeView(t, rec.Body.Bytes()).Page.Total)

	rec = ts.do(http.MethodPut, "/api/admin/mentions/99", admin, []byte(`{"nom_mention": "Droit"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/admin/mentions/2", admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(http.MethodDelete, "/api/admin/mentions/2", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/admin/mentions", admin)
	assert.Equal(t, 1, decodeView(t, rec.Body.Bytes()).Page.Total)
}

func Test_entityApi_export(t *testing.T) {
	ts := setup(t)
	compta := ts.login(t, "compta")

	rec := ts.do(http.MethodGet, "/api/comptable/payments/export", compta)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "payments.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	assert.Len(t, rows, 3, "header, one payment, totals")
}
