package model

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded bearer token payload shared with the user service.
type Claims struct {
	TokenType string `json:"token_type"`
	UserID    string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// ValidateTokenRequest is sent to the user service's /auth/validate-token
type ValidateTokenRequest struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}

// ValidateTokenResponse is the validation result
type ValidateTokenResponse struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"user_id,omitempty"`
}

// LoginResult is the payload the user service returns under data on login
// and refresh; the gateway only cares about the access token and user id.
type LoginResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	UserID       string `json:"user_id"`
}
