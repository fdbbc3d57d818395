package echoapi_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/esdes/campus/apps/api/echo"
)

func Test_authApi_login(t *testing.T) {
	ts := setup(t)
	required := "ce champ est obligatoire"

	tests := []httpTest{
		{
			name: "missing credentials", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"fields": {"username": "` + required + `", "password": "` + required + `"}}`),
		},
		{
			name: "wrong password", body: marshallObj(t, echoapi.LoginRequest{Username: "admin", Password: "nope"}),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, httpErr{Error: "Identifiants invalides"}),
		},
		{
			name: "no role", body: marshallObj(t, echoapi.LoginRequest{Username: "student", Password: password}),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "ce compte n'a accès à aucun espace"}),
		},
		{
			name: "admin", body: marshallObj(t, echoapi.LoginRequest{Username: "admin", Password: password}),
			wantCode: http.StatusOK,
			wantData: []byte(`{"authenticated": true, "layout": "admin", "username": "admin", "home": "/admin/dashboard"}`),
		},
		{
			name: "comptable", body: marshallObj(t, echoapi.LoginRequest{Username: " compta ", Password: password}),
			wantCode: http.StatusOK,
			wantData: []byte(`{"authenticated": true, "layout": "comptable", "username": "compta", "home": "/comptable/dashboard"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/login", nil, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
	assert.Equal(t, 2, ts.store.Len(), "only successful logins are persisted")
}

func Test_authApi_sessionLifecycle(t *testing.T) {
	ts := setup(t)
	anonymous := `{"authenticated": false, "home": "/login"}`

	rec := ts.do(http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, anonymous, rec.Body.String())

	cookie := ts.login(t, "admin")
	rec = ts.do(http.MethodGet, "/api/session", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated": true, "layout": "admin", "username": "admin", "home": "/admin/dashboard"}`, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/logout", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, anonymous, rec.Body.String())
	assert.Equal(t, 0, ts.store.Len())

	// the old cookie no longer opens anything
	rec = ts.do(http.MethodGet, "/api/session", cookie)
	assert.JSONEq(t, anonymous, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/session", &http.Cookie{Name: cookieName, Value: "not-a-uuid"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, anonymous, rec.Body.String())
}

func Test_authApi_loginRotatesSessionID(t *testing.T) {
	ts := setup(t)
	planted := &http.Cookie{Name: cookieName, Value: "11111111-2222-3333-4444-555555555555"}

	loginWith := func(t *testing.T, cookie *http.Cookie) *http.Cookie {
		t.Helper()
		body := marshallObj(t, echoapi.LoginRequest{Username: "admin", Password: password})
		rec := ts.do(http.MethodPost, "/api/login", cookie, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		for _, c := range rec.Result().Cookies() {
			if c.Name == cookieName {
				return c
			}
		}
		t.Fatal("no session cookie issued")
		return nil
	}

	issued := loginWith(t, planted)
	assert.NotEqual(t, planted.Value, issued.Value)

	rec := ts.do(http.MethodGet, "/api/admin/students", planted)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "a cookie set before login opens nothing")
	rec = ts.do(http.MethodGet, "/api/admin/students", issued)
	assert.Equal(t, http.StatusOK, rec.Code)

	// signing in again drops the previous session
	again := loginWith(t, issued)
	assert.NotEqual(t, issued.Value, again.Value)
	rec = ts.do(http.MethodGet, "/api/admin/students", issued)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, ts.store.Len())
}

func Test_authApi_route(t *testing.T) {
	ts := setup(t)
	admin := ts.login(t, "admin")
	compta := ts.login(t, "compta")

	path := func(p string) string { return "/api/route?" + url.Values{"path": {p}}.Encode() }

	tests := []httpTest{
		{
			name: "anonymous", path: path("/comptable/payments"), wantCode: http.StatusOK,
			wantData: []byte(`{"route": {"path": "/comptable/payments", "layout": "comptable", "page": "payments", "entity": "payments"}, "redirect": "/login"}`),
		},
		{
			name: "comptable", path: path("/comptable/payments/"), cookie: compta, wantCode: http.StatusOK,
			wantData: []byte(`{"route": {"path": "/comptable/payments", "layout": "comptable", "page": "payments", "entity": "payments"}}`),
		},
		{
			name: "admin in comptable area", path: path("/comptable/tranches"), cookie: admin, wantCode: http.StatusOK,
			wantData: []byte(`{"route": {"path": "/comptable/tranches", "layout": "comptable", "page": "tranches", "entity": "fees"}}`),
		},
		{
			name: "comptable in admin area", path: path("/admin/users"), cookie: compta, wantCode: http.StatusOK,
			wantData: []byte(`{"route": {"path": "/admin/users", "layout": "admin", "page": "users", "entity": "users"}, "redirect": "/comptable/dashboard"}`),
		},
		{
			name: "root", path: path("/"), cookie: admin, wantCode: http.StatusOK,
			wantData: []byte(`{"route": {"path": "", "layout": "", "page": ""}, "redirect": "/admin/dashboard"}`),
		},
		{name: "unknown", path: path("/admin/nope"), cookie: admin, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodGet, tt.path, tt.cookie)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_authApi_passwords(t *testing.T) {
	ts := setup(t)

	tests := []httpTest{
		{
			name: "forgot: invalid email", path: "/api/forgot-password",
			body: marshallObj(t, echoapi.ForgotPasswordRequest{Email: "nope"}), wantCode: http.StatusBadRequest,
		},
		{
			name: "forgot", path: "/api/forgot-password",
			body: marshallObj(t, echoapi.ForgotPasswordRequest{Email: "Compta@Esdes.mg"}), wantCode: http.StatusOK,
			wantData: marshallObj(t, echoapi.SuccessResponse{Success: "Un code a été envoyé."}),
		},
		{
			name: "reset: missing pin", path: "/api/reset-password",
			body:     marshallObj(t, echoapi.ResetPasswordRequest{Email: "compta@esdes.mg", NewPassword: "s3cr3tpass"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "reset: wrong pin", path: "/api/reset-password",
			body:     marshallObj(t, echoapi.ResetPasswordRequest{Email: "compta@esdes.mg", ResetPin: "0000", NewPassword: "s3cr3tpass"}),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error": "Code invalide", "fields": {"reset_pin": ["Code invalide"]}}`),
		},
		{
			name: "reset", path: "/api/reset-password",
			body:     marshallObj(t, echoapi.ResetPasswordRequest{Email: "compta@esdes.mg", ResetPin: resetPin, NewPassword: "s3cr3tpass"}),
			wantCode: http.StatusOK,
			wantData: marshallObj(t, echoapi.SuccessResponse{Success: "Mot de passe modifié."}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, tt.path, nil, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
