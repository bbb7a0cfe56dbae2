// Package service holds the business logic of the shortener and redirector.
package service

import (
	"context"

	"github.com/jack/url-shortener-platform/internal/model"
)

// URLStore is the authoritative persistence for url_mapping rows.
type URLStore interface {
	InsertMapping(ctx context.Context, m *model.URLMapping) error
	GetByShortCode(ctx context.Context, shortCode string) (*model.URLMapping, error)
	ListByUser(ctx context.Context, userID int32) ([]model.URLMapping, error)
}

// URLCache is the TTL-bounded short_code -> long_url cache. Never
// authoritative: misses and errors fall through to the store.
type URLCache interface {
	GetLongURL(ctx context.Context, shortCode string) (string, error)
	SetLongURL(ctx context.Context, shortCode, longURL string) error
	IncrementClickCount(ctx context.Context, shortCode string) error
}

// EventPublisher emits create-events on the bus after a mapping commits.
type EventPublisher interface {
	Publish(ctx context.Context, shortCode, longURL string) error
}
