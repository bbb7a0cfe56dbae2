package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jack/url-shortener-platform/internal/model"
)

const testSecret = "test_secret_key"

func mintToken(t *testing.T, tokenType, userID string, exp time.Time) string {
	t.Helper()

	claims := &model.Claims{
		TokenType: tokenType,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// fakeUserService answers /auth/validate-token with a fixed verdict and
// counts how often it was asked.
func fakeUserService(t *testing.T, valid bool, userID string, calls *atomic.Int64) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/validate-token" {
			http.NotFound(w, r)
			return
		}
		if calls != nil {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.OK(model.ValidateTokenResponse{Valid: valid, UserID: userID}))
	}))
}

func authHeaders(token string) http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+token)
	return h
}

func TestValidateTokenRejectsMalformedHeaders(t *testing.T) {
	auth := NewAuthenticator(NewTokenCache(), http.DefaultClient, "http://unused", testSecret)

	_, err := auth.ValidateToken(context.Background(), make(http.Header), "access")
	assert.Error(t, err)

	h := make(http.Header)
	h.Set("Authorization", "Basic abc123")
	_, err = auth.ValidateToken(context.Background(), h, "access")
	assert.Error(t, err)
}

func TestValidateTokenServesFromCacheWithoutRemoteCall(t *testing.T) {
	var calls atomic.Int64
	srv := fakeUserService(t, true, "42", &calls)
	defer srv.Close()

	cache := NewTokenCache()
	cache.Store("cached-token", "42", time.Now().Add(time.Hour))
	auth := NewAuthenticator(cache, srv.Client(), srv.URL, testSecret)

	claims, err := auth.ValidateToken(context.Background(), authHeaders("cached-token"), "access")
	require.NoError(t, err)

	assert.Equal(t, "42", claims.UserID)
	assert.Equal(t, "access", claims.TokenType)
	assert.EqualValues(t, 0, calls.Load())
}

func TestValidateTokenFillsCacheOnValidVerdict(t *testing.T) {
	var calls atomic.Int64
	srv := fakeUserService(t, true, "42", &calls)
	defer srv.Close()

	exp := time.Now().Add(30 * time.Minute)
	token := mintToken(t, "access", "42", exp)

	cache := NewTokenCache()
	auth := NewAuthenticator(cache, srv.Client(), srv.URL, testSecret)

	claims, err := auth.ValidateToken(context.Background(), authHeaders(token), "access")
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
	assert.EqualValues(t, 1, calls.Load())

	// The cache entry carries the decoded exp, not a fixed TTL.
	info, ok := cache.Get(token)
	require.True(t, ok)
	assert.WithinDuration(t, exp, info.ExpiresAt, time.Second)

	// Second validation answers locally.
	_, err = auth.ValidateToken(context.Background(), authHeaders(token), "access")
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestValidateTokenDoesNotCacheInvalidVerdicts(t *testing.T) {
	srv := fakeUserService(t, false, "", nil)
	defer srv.Close()

	token := mintToken(t, "access", "42", time.Now().Add(time.Hour))

	cache := NewTokenCache()
	auth := NewAuthenticator(cache, srv.Client(), srv.URL, testSecret)

	_, err := auth.ValidateToken(context.Background(), authHeaders(token), "access")
	require.Error(t, err)

	_, ok := cache.Get(token)
	assert.False(t, ok)
}

func TestValidateTokenRejectsWrongTokenType(t *testing.T) {
	srv := fakeUserService(t, true, "42", nil)
	defer srv.Close()

	refresh := mintToken(t, "refresh", "42", time.Now().Add(time.Hour))
	auth := NewAuthenticator(NewTokenCache(), srv.Client(), srv.URL, testSecret)

	_, err := auth.ValidateToken(context.Background(), authHeaders(refresh), "access")
	assert.Error(t, err)
}

func TestValidateTokenRejectsBadSignature(t *testing.T) {
	srv := fakeUserService(t, true, "42", nil)
	defer srv.Close()

	claims := &model.Claims{TokenType: "access", UserID: "42", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong_secret"))
	require.NoError(t, err)

	auth := NewAuthenticator(NewTokenCache(), srv.Client(), srv.URL, testSecret)

	_, err = auth.ValidateToken(context.Background(), authHeaders(forged), "access")
	assert.Error(t, err)
}

func TestValidateTokenUserServiceUnreachable(t *testing.T) {
	auth := NewAuthenticator(NewTokenCache(), &http.Client{Timeout: 100 * time.Millisecond},
		"http://127.0.0.1:1", testSecret)

	token := mintToken(t, "access", "42", time.Now().Add(time.Hour))
	_, err := auth.ValidateToken(context.Background(), authHeaders(token), "access")
	assert.Error(t, err)
}

func TestCacheExpiryPrefersDecodedExp(t *testing.T) {
	auth := NewAuthenticator(NewTokenCache(), http.DefaultClient, "http://unused", testSecret)

	exp := time.Now().Add(45 * time.Minute)
	token := mintToken(t, "access", "42", exp)
	assert.WithinDuration(t, exp, auth.CacheExpiry(token), time.Second)

	// Undecodable tokens fall back to the 15-minute default.
	fallback := auth.CacheExpiry("not-a-jwt")
	assert.WithinDuration(t, time.Now().Add(defaultTokenTTL), fallback, time.Minute)
}
