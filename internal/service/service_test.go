package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jack/url-shortener-platform/internal/model"
	"github.com/jack/url-shortener-platform/internal/repository"
	"github.com/jack/url-shortener-platform/internal/shortcode"
)

type memStore struct {
	rows    map[string]model.URLMapping
	aliases map[string]struct{}
	reads   int
}

func newMemStore() *memStore {
	return &memStore{
		rows:    make(map[string]model.URLMapping),
		aliases: make(map[string]struct{}),
	}
}

func (s *memStore) InsertMapping(_ context.Context, m *model.URLMapping) error {
	if _, ok := s.rows[m.ShortCode]; ok {
		return repository.ErrDuplicateShortCode
	}
	if m.Alias != nil {
		if _, ok := s.aliases[*m.Alias]; ok {
			return repository.ErrDuplicateAlias
		}
		s.aliases[*m.Alias] = struct{}{}
	}
	s.rows[m.ShortCode] = *m
	return nil
}

func (s *memStore) GetByShortCode(_ context.Context, shortCode string) (*model.URLMapping, error) {
	s.reads++
	if m, ok := s.rows[shortCode]; ok {
		return &m, nil
	}
	return nil, repository.ErrURLNotFound
}

func (s *memStore) ListByUser(_ context.Context, userID int32) ([]model.URLMapping, error) {
	var out []model.URLMapping
	for _, m := range s.rows {
		if m.UserID != nil && *m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

type memCache struct {
	entries map[string]string
	clicks  map[string]int
	getErr  error
	setErr  error
}

func newMemCache() *memCache {
	return &memCache{
		entries: make(map[string]string),
		clicks:  make(map[string]int),
	}
}

func (c *memCache) GetLongURL(_ context.Context, shortCode string) (string, error) {
	if c.getErr != nil {
		return "", c.getErr
	}
	return c.entries[shortCode], nil
}

func (c *memCache) SetLongURL(_ context.Context, shortCode, longURL string) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[shortCode] = longURL
	return nil
}

func (c *memCache) IncrementClickCount(_ context.Context, shortCode string) error {
	c.clicks[shortCode]++
	return nil
}

type memPublisher struct {
	published []string
	err       error
}

func (p *memPublisher) Publish(_ context.Context, shortCode, longURL string) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, shortCode+":"+longURL)
	return nil
}

func newShortener(store URLStore, pub EventPublisher) *ShortenerService {
	return NewShortenerService(store, pub, "http://localhost:8080", 30*24*time.Hour)
}

func TestCreateShortURLRejectsInvalidURL(t *testing.T) {
	store := newMemStore()
	pub := &memPublisher{}
	svc := newShortener(store, pub)

	for _, raw := range []string{"", "notaurl", "ftp://host/file", "http://"} {
		_, err := svc.CreateShortURL(context.Background(), &model.ShortenRequest{LongURL: raw})
		assert.ErrorIs(t, err, ErrInvalidURL, "url %q", raw)
	}

	assert.Empty(t, store.rows)
	assert.Empty(t, pub.published)
}

func TestCreateShortURLPersistsAndPublishes(t *testing.T) {
	store := newMemStore()
	pub := &memPublisher{}
	svc := newShortener(store, pub)

	resp, err := svc.CreateShortURL(context.Background(), &model.ShortenRequest{LongURL: "https://example.com"})
	require.NoError(t, err)

	assert.Equal(t, shortcode.Generate("https://example.com", nil), resp.ShortCode)
	assert.Equal(t, "http://localhost:8080/"+resp.ShortCode, resp.ShortURL)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), resp.ExpirationTime, time.Minute)

	row, ok := store.rows[resp.ShortCode]
	require.True(t, ok)
	assert.Equal(t, "https://example.com", row.LongURL)
	assert.EqualValues(t, 0, row.ClickCount)

	require.Len(t, pub.published, 1)
	assert.Equal(t, resp.ShortCode+":https://example.com", pub.published[0])
}

func TestCreateShortURLRetriesOnCollision(t *testing.T) {
	store := newMemStore()
	svc := newShortener(store, &memPublisher{})

	// Occupy the code that https://a.test would mint.
	base := shortcode.Generate("https://a.test", nil)
	store.rows[base] = model.URLMapping{ShortCode: base, LongURL: "https://other.test"}

	resp, err := svc.CreateShortURL(context.Background(), &model.ShortenRequest{LongURL: "https://a.test"})
	require.NoError(t, err)

	assert.NotEqual(t, base, resp.ShortCode)
	assert.Equal(t, base+"1", resp.ShortCode)

	row, err := store.GetByShortCode(context.Background(), resp.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "https://a.test", row.LongURL)
}

func TestCreateShortURLAliasConflict(t *testing.T) {
	store := newMemStore()
	svc := newShortener(store, &memPublisher{})
	alias := "mylink"

	_, err := svc.CreateShortURL(context.Background(), &model.ShortenRequest{
		LongURL:     "https://example.com/one",
		CustomAlias: &alias,
	})
	require.NoError(t, err)

	_, err = svc.CreateShortURL(context.Background(), &model.ShortenRequest{
		LongURL:     "https://example.com/two",
		CustomAlias: &alias,
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateAlias)
}

func TestCreateShortURLPublishFailureIsNonFatal(t *testing.T) {
	store := newMemStore()
	pub := &memPublisher{err: errors.New("broker down")}
	svc := newShortener(store, pub)

	resp, err := svc.CreateShortURL(context.Background(), &model.ShortenRequest{LongURL: "https://example.com"})
	require.NoError(t, err)

	// The row is still durably persisted.
	_, ok := store.rows[resp.ShortCode]
	assert.True(t, ok)
}

func TestListByUser(t *testing.T) {
	store := newMemStore()
	svc := newShortener(store, &memPublisher{})
	userID := int32(7)

	_, err := svc.CreateShortURL(context.Background(), &model.ShortenRequest{
		LongURL: "https://example.com/mine",
		UserID:  &userID,
	})
	require.NoError(t, err)
	_, err = svc.CreateShortURL(context.Background(), &model.ShortenRequest{LongURL: "https://example.com/anon"})
	require.NoError(t, err)

	infos, err := svc.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "https://example.com/mine", infos[0].LongURL)
}

func TestResolveReadsThroughOnce(t *testing.T) {
	store := newMemStore()
	cache := newMemCache()
	shortener := newShortener(store, &memPublisher{})
	redirector := NewRedirectorService(store, cache, "http://localhost:8081")

	resp, err := shortener.CreateShortURL(context.Background(), &model.ShortenRequest{LongURL: "https://example.com"})
	require.NoError(t, err)

	// First resolve misses the cache and hits the database once.
	first, err := redirector.Resolve(context.Background(), resp.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", first.LongURL)
	assert.Equal(t, 1, store.reads)

	// Write-through happened; the second resolve stays off the database.
	second, err := redirector.Resolve(context.Background(), resp.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", second.LongURL)
	assert.Equal(t, 1, store.reads)

	assert.Equal(t, 2, cache.clicks[resp.ShortCode])
}

func TestResolveUnknownCode(t *testing.T) {
	redirector := NewRedirectorService(newMemStore(), newMemCache(), "http://localhost:8081")

	_, err := redirector.Resolve(context.Background(), "doesnotexist")
	assert.ErrorIs(t, err, repository.ErrURLNotFound)
}

func TestResolveExpiredMapping(t *testing.T) {
	store := newMemStore()
	past := time.Now().Add(-time.Hour)
	store.rows["old"] = model.URLMapping{ShortCode: "old", LongURL: "https://example.com", ExpirationDate: &past}

	redirector := NewRedirectorService(store, newMemCache(), "http://localhost:8081")

	_, err := redirector.Resolve(context.Background(), "old")
	assert.ErrorIs(t, err, repository.ErrURLExpired)
}

func TestResolveCacheErrorFallsThroughToStore(t *testing.T) {
	store := newMemStore()
	store.rows["abc"] = model.URLMapping{ShortCode: "abc", LongURL: "https://example.com"}
	cache := newMemCache()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis down")

	redirector := NewRedirectorService(store, cache, "http://localhost:8081")

	resp, err := redirector.Resolve(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", resp.LongURL)
}

func TestResolveServesBusWarmedEntryWithoutStore(t *testing.T) {
	store := newMemStore()
	cache := newMemCache()
	cache.entries["abc"] = "https://x.test"

	redirector := NewRedirectorService(store, cache, "http://localhost:8081")

	resp, err := redirector.Resolve(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://x.test", resp.LongURL)
	assert.Zero(t, store.reads)
}
