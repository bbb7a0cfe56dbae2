package model

import (
	"time"
)

// URLMapping is the authoritative row in url_mapping, keyed by short code.
// Rows are immutable after insert except for click_count.
type URLMapping struct {
	ShortCode      string     `json:"short_code"`
	Alias          *string    `json:"alias,omitempty"`
	LongURL        string     `json:"long_url"`
	CreationDate   time.Time  `json:"creation_date"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	UserID         *int32     `json:"user_id,omitempty"`
	ClickCount     int32      `json:"click_count"`
}

// IsExpired reports whether the mapping's expiration date has passed.
func (m *URLMapping) IsExpired() bool {
	if m.ExpirationDate == nil {
		return false
	}
	return time.Now().After(*m.ExpirationDate)
}

// ShortenRequest is the request body for POST /shorten
type ShortenRequest struct {
	LongURL        string     `json:"long_url" binding:"required"`
	CustomAlias    *string    `json:"custom_alias,omitempty"`
	ExpirationTime *time.Time `json:"expiration_time,omitempty"`
	UserID         *int32     `json:"user_id,omitempty"`
}

// ShortenResponse is the response after creating a short URL
type ShortenResponse struct {
	ShortCode      string    `json:"short_code"`
	ShortURL       string    `json:"short_url"`
	CreatedAt      time.Time `json:"created_at"`
	ExpirationTime time.Time `json:"expiration_time"`
}

// URLInfoResponse describes one mapping owned by a user
type URLInfoResponse struct {
	ShortCode      string     `json:"short_code"`
	ShortURL       string     `json:"short_url"`
	LongURL        string     `json:"long_url"`
	Alias          *string    `json:"alias,omitempty"`
	CreationDate   time.Time  `json:"creation_date"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	ClickCount     int32      `json:"click_count"`
}

// RedirectResponse is the redirector's resolution result
type RedirectResponse struct {
	ShortURL string  `json:"short_url"`
	Alias    *string `json:"alias,omitempty"`
	LongURL  string  `json:"long_url"`
}
