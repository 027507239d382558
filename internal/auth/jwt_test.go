package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func sign(t *testing.T, sub, role string, key []byte) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestParseToken(t *testing.T) {
	a, err := ParseToken(secret, sign(t, "cust-1", "customer", secret))
	require.NoError(t, err)
	assert.Equal(t, Actor{ID: "cust-1", Role: RoleCustomer}, a)

	a, err = ParseToken(secret, sign(t, "ops-7", "staff", secret))
	require.NoError(t, err)
	assert.True(t, a.IsStaff())

	_, err = ParseToken(secret, sign(t, "cust-1", "customer", []byte("other")))
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	var got Actor
	h := Middleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, "cust-9", "", secret))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "cust-9", got.ID)
	assert.Equal(t, RoleCustomer, got.Role)
}
