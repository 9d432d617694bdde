package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/go-identity-service/auth"
	"github.com/jrsteele09/go-identity-service/credentials"
	"github.com/jrsteele09/go-identity-service/internal/config"
	"github.com/jrsteele09/go-identity-service/server"
	"github.com/jrsteele09/go-identity-service/token"
	"github.com/jrsteele09/go-identity-service/users"
	fakeuserrepo "github.com/jrsteele09/go-identity-service/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testOrigin       = "https://app.example"
	unauthorizedBody = `{"error":"unauthorized","message":"Unauthorized"}`
)

// testFixture holds all test dependencies
type testFixture struct {
	issuer   *token.Issuer
	registry *token.InMemoryRegistry
	userRepo *fakeuserrepo.FakeUserRepo
	server   *server.Server
	handler  http.Handler
	health   error
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("JWT_SECRET", "1234")
	t.Setenv("ALLOWED_ORIGINS", testOrigin)
	cfg, err := config.Load("")
	require.NoError(t, err)

	signer, err := token.NewHMACSigner(cfg.GetJWTSecret())
	require.NoError(t, err)
	issuer, err := token.NewIssuer(signer, token.WithTTL(cfg.GetAccessTokenTTL()))
	require.NoError(t, err)

	f := &testFixture{
		issuer:   issuer,
		registry: token.NewInMemoryRegistry(),
		userRepo: fakeuserrepo.NewFakeUserRepo(),
	}

	authService, err := auth.NewService(f.userRepo, credentials.NewBcryptHasher(credentials.WithCost(4)), issuer, f.registry)
	require.NoError(t, err)
	profiles, err := users.NewProfileService(f.userRepo)
	require.NoError(t, err)

	s, err := server.New(cfg, server.Services{
		Auth:     authService,
		Profiles: profiles,
		Issuer:   issuer,
		Health:   func(context.Context) error { return f.health },
	})
	require.NoError(t, err)
	f.server = s
	f.handler = s.Handler()
	return f
}

type response struct {
	status int
	header http.Header
	body   string
}

func (r response) json(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.body), &out), r.body)
	return out
}

func (f *testFixture) do(t *testing.T, method, path, bearer string, body any) response {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return response{status: rec.Code, header: rec.Header(), body: rec.Body.String()}
}

func (f *testFixture) accessToken(t *testing.T, resp response) string {
	t.Helper()
	raw, ok := resp.json(t)["access_token"].(string)
	require.True(t, ok, resp.body)
	require.NotEmpty(t, raw)
	return raw
}

func credentialsBody(username, password string) map[string]string {
	return map[string]string{"username": username, "password": password}
}

func TestSessionLifecycle(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.do(t, http.MethodPost, server.RouteAuthRegister, "", credentialsBody("alice", "pw1"))
	require.Equal(t, http.StatusCreated, resp.status, resp.body)
	t1 := f.accessToken(t, resp)

	resp = f.do(t, http.MethodGet, server.RouteUserProfile, t1, nil)
	require.Equal(t, http.StatusOK, resp.status)
	profile := resp.json(t)
	require.Equal(t, "alice", profile["username"])
	require.EqualValues(t, 1, profile["id"])
	require.NotContains(t, profile, "password")
	require.NotContains(t, profile, "passwordHash")
	require.Len(t, profile, 2)

	resp = f.do(t, http.MethodPost, server.RouteAuthLogin, "", credentialsBody("alice", "pw1"))
	require.Equal(t, http.StatusCreated, resp.status)
	t2 := f.accessToken(t, resp)

	resp = f.do(t, http.MethodPut, server.RouteAuthUpdatePassword, t1, map[string]string{
		"currentPassword": "pw1",
		"newPassword":     "pw2",
	})
	require.Equal(t, http.StatusOK, resp.status)
	t3 := f.accessToken(t, resp)

	resp = f.do(t, http.MethodPost, server.RouteAuthLogin, "", credentialsBody("alice", "pw1"))
	require.Equal(t, http.StatusUnauthorized, resp.status)
	require.JSONEq(t, unauthorizedBody, resp.body)

	resp = f.do(t, http.MethodPost, server.RouteAuthLogout, t1, nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.JSONEq(t, `{"message":"Logged out successfully"}`, resp.body)

	resp = f.do(t, http.MethodGet, server.RouteUserProfile, t1, nil)
	require.Equal(t, http.StatusUnauthorized, resp.status)
	require.JSONEq(t, unauthorizedBody, resp.body)

	// other sessions survive the logout and the password change
	for _, raw := range []string{t2, t3} {
		resp = f.do(t, http.MethodGet, server.RouteUserProfile, raw, nil)
		require.Equal(t, http.StatusOK, resp.status)
	}
}

func TestRequireAuth_Rejections(t *testing.T) {
	f := setupTestFixture(t)

	tests := map[string]string{
		"missing header": "",
		"wrong scheme":   "Token abc",
		"empty bearer":   "Bearer ",
		"garbage token":  "Bearer not.a.jwt",
	}

	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, server.RouteUserProfile, nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.JSONEq(t, unauthorizedBody, rec.Body.String())
		})
	}
}

func TestRequireAuth_RevocationWinsOverValidSignature(t *testing.T) {
	f := setupTestFixture(t)
	raw := f.accessToken(t, f.do(t, http.MethodPost, server.RouteAuthRegister, "", credentialsBody("alice", "pw1")))

	exp, ok := f.issuer.ExpiresAt(raw)
	require.True(t, ok)
	f.registry.Revoke(raw, exp)

	_, err := f.issuer.Verify(raw)
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, server.RouteUserProfile, raw, nil)
	require.Equal(t, http.StatusUnauthorized, resp.status)
}

func TestRequireAuth_LoggedOutTokenHasNoAlternateEncoding(t *testing.T) {
	f := setupTestFixture(t)
	raw := f.accessToken(t, f.do(t, http.MethodPost, server.RouteAuthRegister, "", credentialsBody("alice", "pw1")))

	resp := f.do(t, http.MethodPost, server.RouteAuthLogout, raw, nil)
	require.Equal(t, http.StatusOK, resp.status)
	resp = f.do(t, http.MethodGet, server.RouteUserProfile, raw, nil)
	require.Equal(t, http.StatusUnauthorized, resp.status)

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	last := raw[len(raw)-1]
	admitted := 0
	for _, c := range []byte(alphabet) {
		if c == last {
			continue
		}
		variant := raw[:len(raw)-1] + string(c)
		resp := f.do(t, http.MethodGet, server.RouteUserProfile, variant, nil)
		if resp.status != http.StatusUnauthorized {
			admitted++
		}
	}
	require.Zero(t, admitted, "variants of a logged-out token were admitted")
}

func TestRequireAuth_CaseInsensitiveScheme(t *testing.T) {
	f := setupTestFixture(t)
	raw := f.accessToken(t, f.do(t, http.MethodPost, server.RouteAuthRegister, "", credentialsBody("alice", "pw1")))

	req := httptest.NewRequest(http.MethodGet, server.RouteUserProfile, nil)
	req.Header.Set("Authorization", "bearer "+raw)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegister_Errors(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.do(t, http.MethodPost, server.RouteAuthRegister, "", credentialsBody("alice", "pw1"))
	require.Equal(t, http.StatusCreated, resp.status)

	resp = f.do(t, http.MethodPost, server.RouteAuthRegister, "", credentialsBody("alice", "other"))
	require.Equal(t, http.StatusConflict, resp.status)
	require.Equal(t, "conflict", resp.json(t)["error"])
	require.Equal(t, 1, f.userRepo.Len())

	tests := map[string]any{
		"malformed json":   "{not json",
		"missing password": map[string]string{"username": "bob"},
		"missing username": map[string]string{"password": "pw"},
		"long password":    credentialsBody("bob", strings.Repeat("p", credentials.MaxSecretBytes+1)),
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, server.RouteAuthRegister, "", body)
			require.Equal(t, http.StatusBadRequest, resp.status, resp.body)
			out := resp.json(t)
			require.Equal(t, "invalid_request", out["error"])
			require.NotEmpty(t, out["message"])
		})
	}
	require.Equal(t, 1, f.userRepo.Len())
}

func TestLogin_UnknownUserAndWrongPasswordLookTheSame(t *testing.T) {
	f := setupTestFixture(t)
	f.do(t, http.MethodPost, server.RouteAuthRegister, "", credentialsBody("alice", "pw1"))

	unknown := f.do(t, http.MethodPost, server.RouteAuthLogin, "", credentialsBody("nobody", "pw1"))
	wrong := f.do(t, http.MethodPost, server.RouteAuthLogin, "", credentialsBody("alice", "nope"))

	require.Equal(t, http.StatusUnauthorized, unknown.status)
	require.Equal(t, unknown.status, wrong.status)
	require.Equal(t, unknown.body, wrong.body)
}

func TestUpdatePassword_WrongCurrentPassword(t *testing.T) {
	f := setupTestFixture(t)
	raw := f.accessToken(t, f.do(t, http.MethodPost, server.RouteAuthRegister, "", credentialsBody("alice", "pw1")))

	resp := f.do(t, http.MethodPut, server.RouteAuthUpdatePassword, raw, map[string]string{
		"currentPassword": "wrong",
		"newPassword":     "pw2",
	})
	require.Equal(t, http.StatusUnauthorized, resp.status)
	require.JSONEq(t, unauthorizedBody, resp.body)
}

func TestUpdateProfile(t *testing.T) {
	f := setupTestFixture(t)
	alice := f.accessToken(t, f.do(t, http.MethodPost, server.RouteAuthRegister, "", credentialsBody("alice", "pw1")))
	f.do(t, http.MethodPost, server.RouteAuthRegister, "", credentialsBody("bob", "pw1"))

	resp := f.do(t, http.MethodPut, server.RouteUserProfile, alice, map[string]string{"username": "alicia"})
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "alicia", resp.json(t)["username"])

	resp = f.do(t, http.MethodPut, server.RouteUserProfile, alice, map[string]string{"username": "bob"})
	require.Equal(t, http.StatusConflict, resp.status)

	resp = f.do(t, http.MethodPut, server.RouteUserProfile, alice, map[string]string{"username": ""})
	require.Equal(t, http.StatusBadRequest, resp.status)

	// the new username logs in, the old one does not
	resp = f.do(t, http.MethodPost, server.RouteAuthLogin, "", credentialsBody("alicia", "pw1"))
	require.Equal(t, http.StatusCreated, resp.status)
	resp = f.do(t, http.MethodPost, server.RouteAuthLogin, "", credentialsBody("alice", "pw1"))
	require.Equal(t, http.StatusUnauthorized, resp.status)
}

func TestHealth(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.do(t, http.MethodGet, server.RouteHealth, "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "ok", resp.body)

	f.health = errors.New("store down")
	resp = f.do(t, http.MethodGet, server.RouteHealth, "", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.status)
}

func TestMetrics(t *testing.T) {
	f := setupTestFixture(t)
	f.do(t, http.MethodPost, server.RouteAuthRegister, "", credentialsBody("alice", "pw1"))

	resp := f.do(t, http.MethodGet, server.RouteMetrics, "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Contains(t, resp.body, "identity_auth_operations_total")
	require.Contains(t, resp.body, "identity_http_requests_total")
}

func TestRequestID(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.do(t, http.MethodPost, server.RouteAuthLogin, "", credentialsBody("nobody", "pw"))
	require.NotEmpty(t, resp.header.Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, strings.NewReader(`{}`))
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestCors(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodOptions, server.RouteAuthLogin, nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	require.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest(http.MethodOptions, server.RouteAuthLogin, nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverMiddleware(t *testing.T) {
	f := setupTestFixture(t)
	handler := server.ChainMiddleware(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}, f.server.APIMiddleware()...)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"internal_error","message":"Internal server error"}`, rec.Body.String())
}

func TestNew_RequiresServices(t *testing.T) {
	f := setupTestFixture(t)
	t.Setenv("ENV", "DEV")
	cfg, err := config.Load("")
	require.NoError(t, err)

	_, err = server.New(cfg, server.Services{Issuer: f.issuer})
	require.Error(t, err)
}

func TestJWKS_NotPublishedForHMAC(t *testing.T) {
	f := setupTestFixture(t)
	resp := f.do(t, http.MethodGet, server.RouteJWKS, "", nil)
	// only the OPTIONS preflight pattern covers the path
	require.Equal(t, http.StatusMethodNotAllowed, resp.status)
}
