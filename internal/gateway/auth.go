package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jack/url-shortener-platform/internal/model"
)

// defaultTokenTTL stamps cache entries for tokens whose exp claim cannot
// be decoded locally (e.g. tokens minted with a different secret).
const defaultTokenTTL = 15 * time.Minute

var (
	errNoAuthHeader     = errors.New("no authorization header")
	errBadAuthFormat    = errors.New("invalid authorization format")
	errInvalidToken     = errors.New("invalid token")
	errWrongTokenType   = errors.New("invalid token type")
	errValidationFailed = errors.New("failed to validate token with user service")
)

// Authenticator validates bearer tokens: local cache first, then the user
// service, then a local JWT decode to pin down claims and expiry.
type Authenticator struct {
	cache          *TokenCache
	client         *http.Client
	userServiceURL string
	jwtSecret      []byte
}

func NewAuthenticator(cache *TokenCache, client *http.Client, userServiceURL, jwtSecret string) *Authenticator {
	return &Authenticator{
		cache:          cache,
		client:         client,
		userServiceURL: strings.TrimRight(userServiceURL, "/"),
		jwtSecret:      []byte(jwtSecret),
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(headers http.Header) (string, error) {
	authHeader := headers.Get("Authorization")
	if authHeader == "" {
		return "", errNoAuthHeader
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", errBadAuthFormat
	}
	return authHeader[len("Bearer "):], nil
}

// ValidateToken resolves a bearer token to its claims. A cache hit answers
// locally; a miss asks the user service and, on a valid verdict, decodes the
// token to confirm the token type and fill the cache with the real expiry.
func (a *Authenticator) ValidateToken(ctx context.Context, headers http.Header, tokenType string) (*model.Claims, error) {
	token, err := BearerToken(headers)
	if err != nil {
		return nil, err
	}

	if info, ok := a.cache.Get(token); ok {
		return &model.Claims{
			TokenType: tokenType,
			UserID:    info.UserID,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   info.UserID,
				ExpiresAt: jwt.NewNumericDate(info.ExpiresAt),
			},
		}, nil
	}

	valid, _, err := a.remoteValidate(ctx, token, tokenType)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, errInvalidToken
	}

	claims, err := a.Decode(token)
	if err != nil {
		return nil, errInvalidToken
	}
	if claims.TokenType != tokenType {
		return nil, errWrongTokenType
	}

	if claims.UserID != "" && claims.ExpiresAt != nil {
		a.cache.Store(token, claims.UserID, claims.ExpiresAt.Time)
	}

	return claims, nil
}

// remoteValidate asks the user service whether the token is valid.
func (a *Authenticator) remoteValidate(ctx context.Context, token, tokenType string) (bool, string, error) {
	body, err := json.Marshal(model.ValidateTokenRequest{Token: token, TokenType: tokenType})
	if err != nil {
		return false, "", fmt.Errorf("failed to encode validation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.userServiceURL+"/auth/validate-token", bytes.NewReader(body))
	if err != nil {
		return false, "", fmt.Errorf("failed to build validation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return false, "", errValidationFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, "", nil
	}

	var verdict struct {
		Success bool                        `json:"success"`
		Data    model.ValidateTokenResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return false, "", errValidationFailed
	}

	return verdict.Data.Valid, verdict.Data.UserID, nil
}

// Decode parses and verifies a token with the shared secret.
func (a *Authenticator) Decode(token string) (*model.Claims, error) {
	claims := &model.Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

// CacheExpiry returns the cache stamp for a freshly issued token: the
// decoded exp claim when available, now+15m otherwise.
func (a *Authenticator) CacheExpiry(token string) time.Time {
	if claims, err := a.Decode(token); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Now().Add(defaultTokenTTL)
}
