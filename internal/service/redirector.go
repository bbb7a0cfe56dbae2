package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/jack/url-shortener-platform/internal/model"
	"github.com/jack/url-shortener-platform/internal/repository"
)

type RedirectorService struct {
	store   URLStore
	cache   URLCache
	baseURL string
}

func NewRedirectorService(store URLStore, cache URLCache, baseURL string) *RedirectorService {
	return &RedirectorService{
		store:   store,
		cache:   cache,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Resolve maps a short code back to its long URL: cache first, then the
// database with a write-through on the way back. Cache errors are never
// fatal; the store stays authoritative.
func (s *RedirectorService) Resolve(ctx context.Context, shortCode string) (*model.RedirectResponse, error) {
	longURL, err := s.cache.GetLongURL(ctx, shortCode)
	if err != nil {
		log.Printf("cache get failed: shortCode=%s err=%v", shortCode, err)
	}

	if longURL != "" {
		s.countClick(shortCode)
		return &model.RedirectResponse{
			ShortURL: s.baseURL + "/" + shortCode,
			LongURL:  longURL,
		}, nil
	}

	mapping, err := s.store.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	if mapping.IsExpired() {
		return nil, repository.ErrURLExpired
	}

	if err := s.cache.SetLongURL(ctx, mapping.ShortCode, mapping.LongURL); err != nil {
		log.Printf("cache set failed: shortCode=%s err=%v", mapping.ShortCode, err)
	}

	s.countClick(mapping.ShortCode)

	return &model.RedirectResponse{
		ShortURL: s.baseURL + "/" + mapping.ShortCode,
		Alias:    mapping.Alias,
		LongURL:  mapping.LongURL,
	}, nil
}

// countClick accumulates the click in Redis; the sync scheduler flushes
// counters to url_mapping.click_count in batches.
func (s *RedirectorService) countClick(shortCode string) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := s.cache.IncrementClickCount(ctx, shortCode); err != nil {
		log.Printf("cache incr click failed: shortCode=%s err=%v", shortCode, err)
	}
}
