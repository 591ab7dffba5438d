package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "correct-horse-battery-staple"

func testTokens() TokenService {
	return TokenService{Secret: []byte("test-secret"), Issuer: "keplerhub", Duration: time.Hour}
}

func TestTokenService_RoundTrip(t *testing.T) {
	ts := testTokens()
	s, claims, err := ts.Sign("admin", RoleAdmin)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	parsed, err := ts.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, parsed.Role)
	assert.Equal(t, claims.ID, parsed.ID)
	assert.Equal(t, "keplerhub", parsed.Issuer)
}

func TestTokenService_Rejects(t *testing.T) {
	ts := testTokens()
	s, _, err := ts.Sign("admin", RoleAdmin)
	require.NoError(t, err)

	other := ts
	other.Secret = []byte("other")
	_, err = other.Parse(s)
	assert.Error(t, err, "wrong secret")

	other = ts
	other.Issuer = "someone-else"
	_, err = other.Parse(s)
	assert.Error(t, err, "wrong issuer")

	expired := ts
	expired.Duration = -time.Minute
	old, _, err := expired.Sign("admin", RoleAdmin)
	require.NoError(t, err)
	_, err = ts.Parse(old)
	assert.Error(t, err, "expired")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: RoleAdmin}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ts.Parse(none)
	assert.Error(t, err, "alg none")
}

func TestKeys(t *testing.T) {
	_, err := HashKey("short")
	assert.ErrorIs(t, err, ErrKeyTooShort)

	hash, err := HashKey(testKey)
	require.NoError(t, err)

	v := KeyVerifier{Hash: hash}
	assert.NoError(t, v.Verify(testKey))
	assert.ErrorIs(t, v.Verify("wrong-key-wrong-key"), ErrInvalidKey)
	assert.ErrorIs(t, KeyVerifier{}.Verify(testKey), ErrNoAdminKey)
}

func TestRevocations(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRevocations()
	r.now = func() time.Time { return now }

	r.Revoke("a", now.Add(time.Minute))
	r.Revoke("b", now.Add(time.Hour))
	assert.True(t, r.IsRevoked("a"))
	assert.False(t, r.IsRevoked("c"))

	now = now.Add(2 * time.Minute)
	assert.False(t, r.IsRevoked("a"))
	assert.True(t, r.IsRevoked("b"))
	assert.Equal(t, 1, r.Len())
}

func newRouter(t *testing.T, hash string) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(KeyVerifier{Hash: hash}, testTokens(), NewRevocations())
	h.RegisterRoutes(r.Group("/auth"))
	r.GET("/admin/ping", append(h.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sub": MustGetClaims(c).Subject})
	})...)
	return r, h
}

func post(r http.Handler, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getWithToken(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_TokenFlow(t *testing.T) {
	hash, err := HashKey(testKey)
	require.NoError(t, err)
	r, _ := newRouter(t, hash)

	assert.Equal(t, http.StatusUnauthorized, post(r, "/auth/token", `{"key":"nope-nope-nope-nope"}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/auth/token", `{}`, "").Code)
	assert.Equal(t, http.StatusUnauthorized, getWithToken(r, "/admin/ping", "").Code)

	w := post(r, "/auth/token", `{"key":"`+testKey+`"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	_, err = time.Parse(time.RFC3339, body.ExpiresAt)
	require.NoError(t, err)

	w = getWithToken(r, "/admin/ping", body.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sub":"admin"`)

	assert.Equal(t, http.StatusOK, post(r, "/auth/logout", "", body.Token).Code)
	assert.Equal(t, http.StatusUnauthorized, getWithToken(r, "/admin/ping", body.Token).Code)
}

func TestHandler_DisabledWithoutKey(t *testing.T) {
	r, _ := newRouter(t, "")
	assert.Equal(t, http.StatusServiceUnavailable, post(r, "/auth/token", `{"key":"`+testKey+`"}`, "").Code)
}

func TestRequireRole(t *testing.T) {
	r, h := newRouter(t, "")
	s, _, err := h.Tokens.Sign("viewer", "viewer")
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, getWithToken(r, "/admin/ping", s).Code)
}
