package gateway

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esdes/campus/core"
	"github.com/esdes/campus/core/entity"
)

type call struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]interface{}
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]call) {
	t.Helper()
	calls := &[]call{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := call{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
		if data, _ := ioutil.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &c.Body)
		}
		*calls = append(*calls, c)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	conf := &core.Config{}
	conf.API.BaseURL = srv.URL + "/api/"
	return NewClient(conf, nil), calls
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestClientCRUD(t *testing.T) {
	ctx := context.Background()
	cl, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, `[{"id": 1, "nom_niveau": "L1"}, {"id": 2, "nom_niveau": "L2"}]`)
		case http.MethodPost:
			writeJSON(w, http.StatusCreated, `{"id": 3, "nom_niveau": "M1"}`)
		case http.MethodPut:
			writeJSON(w, http.StatusOK, `{"id": 2, "nom_niveau": "L2 bis"}`)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	cl = cl.WithToken("tok")

	recs, err := cl.List(ctx, "niveau")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, json.Number("1"), recs[0]["id"], "numbers are kept as json.Number")

	rec, err := cl.Create(ctx, "niveau", entity.Record{"nom_niveau": "M1"})
	require.NoError(t, err)
	assert.Equal(t, "3", rec.ID())

	rec, err = cl.Update(ctx, "niveau", "2", entity.Record{"nom_niveau": "L2 bis"})
	require.NoError(t, err)
	assert.Equal(t, "L2 bis", rec.Text("nom_niveau"))

	require.NoError(t, cl.Delete(ctx, "niveau", "2"))

	assert.Equal(t, []call{
		{Method: http.MethodGet, Path: "/api/niveau/", Auth: "Bearer tok"},
		{Method: http.MethodPost, Path: "/api/niveau/", Auth: "Bearer tok", Body: map[string]interface{}{"nom_niveau": "M1"}},
		{Method: http.MethodPut, Path: "/api/niveau/2/", Auth: "Bearer tok", Body: map[string]interface{}{"nom_niveau": "L2 bis"}},
		{Method: http.MethodDelete, Path: "/api/niveau/2/", Auth: "Bearer tok"},
	}, *calls)
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		wantFields map[string][]string
	}{
		{
			name:       "field errors",
			status:     http.StatusBadRequest,
			body:       `{"designation": ["already exists"]}`,
			wantMsg:    "already exists",
			wantFields: map[string][]string{"designation": {"already exists"}},
		},
		{
			name:       "several fields",
			status:     http.StatusBadRequest,
			body:       `{"nom": "This field is required.", "matricule": ["already exists", "too long"]}`,
			wantMsg:    "already exists; too long; This field is required.",
			wantFields: map[string][]string{"nom": {"This field is required."}, "matricule": {"already exists", "too long"}},
		},
		{name: "detail", status: http.StatusUnauthorized, body: `{"detail": "Given token not valid"}`, wantMsg: "Given token not valid"},
		{name: "html body", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantMsg: "request failed (502)"},
		{name: "empty body", status: http.StatusNotFound, body: ``, wantMsg: "request failed (404)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := cl.Create(context.Background(), "paiements", entity.Record{"designation": "Tranche 1"})
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())

			gErr, ok := core.IsGatewayError(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, gErr.Status)
			assert.Equal(t, tt.wantFields, gErr.Fields)
		})
	}
}

func TestClientTransportError(t *testing.T) {
	conf := &core.Config{}
	conf.API.BaseURL = "http://127.0.0.1:1/api/"
	cl := NewClient(conf, nil)
	_, err := cl.List(context.Background(), "niveau")
	require.Error(t, err)
	_, ok := core.IsGatewayError(err)
	assert.False(t, ok)
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		base     string
		segments []string
		want     string
	}{
		{base: "http://localhost:8000/api/", segments: []string{"etudiants"}, want: "http://localhost:8000/api/etudiants/"},
		{base: "http://localhost:8000/api", segments: []string{"etudiants", "4"}, want: "http://localhost:8000/api/etudiants/4/"},
		{base: "http://10.0.0.2:8000/api/", segments: []string{"category-etudiant", ""}, want: "http://10.0.0.2:8000/api/category-etudiant/"},
		{base: "https://campus.mg/", segments: []string{"token"}, want: "https://campus.mg/token/"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			cl := &Client{BaseURL: tt.base}
			got, err := cl.endpoint(tt.segments...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthEndpoints(t *testing.T) {
	ctx := context.Background()
	cl, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/token/":
			writeJSON(w, http.StatusOK, `{"access": "a.b.c", "refresh": "d.e.f"}`)
		case "/api/forgot-password/":
			writeJSON(w, http.StatusOK, `{"message": "Code envoyé"}`)
		case "/api/reset-password/":
			writeJSON(w, http.StatusBadRequest, `{"error": "Code invalide"}`)
		}
	})

	pair, err := cl.Login(ctx, "root", "secret")
	require.NoError(t, err)
	assert.Equal(t, TokenPair{Access: "a.b.c", Refresh: "d.e.f"}, pair)

	msg, err := cl.ForgotPassword(ctx, "root@esdes.mg")
	require.NoError(t, err)
	assert.Equal(t, "Code envoyé", msg.String())

	_, err = cl.ResetPassword(ctx, "root@esdes.mg", "1234", "n3w")
	require.Error(t, err)
	assert.Equal(t, "Code invalide", err.Error())

	require.Len(t, *calls, 3)
	assert.Equal(t, map[string]interface{}{"username": "root", "password": "secret"}, (*calls)[0].Body)
	assert.Equal(t, map[string]interface{}{"email": "root@esdes.mg", "reset_pin": "1234", "new_password": "n3w"}, (*calls)[2].Body)
}
