package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/jack/url-shortener-platform/internal/model"
	"github.com/jack/url-shortener-platform/internal/repository"
	"github.com/jack/url-shortener-platform/internal/shortcode"
)

var ErrInvalidURL = errors.New("long_url is not a valid absolute http(s) url")

// maxMintAttempts bounds collision-resolution retries on INSERT conflicts.
const maxMintAttempts = 8

type ShortenerService struct {
	store         URLStore
	publisher     EventPublisher
	baseURL       string
	defaultExpiry time.Duration
}

func NewShortenerService(store URLStore, publisher EventPublisher, baseURL string, defaultExpiry time.Duration) *ShortenerService {
	return &ShortenerService{
		store:         store,
		publisher:     publisher,
		baseURL:       strings.TrimRight(baseURL, "/"),
		defaultExpiry: defaultExpiry,
	}
}

// CreateShortURL validates the long URL, mints a short code, persists the
// mapping and publishes a create-event. Collision detection lives in the
// database: the insert is retried with a Base62 counter suffix on each
// unique-constraint violation instead of scanning existing codes up front.
func (s *ShortenerService) CreateShortURL(ctx context.Context, req *model.ShortenRequest) (*model.ShortenResponse, error) {
	if !isValidURL(req.LongURL) {
		return nil, ErrInvalidURL
	}

	now := time.Now().UTC()
	expiration := now.Add(s.defaultExpiry)
	if req.ExpirationTime != nil {
		expiration = req.ExpirationTime.UTC()
	}

	mapping := &model.URLMapping{
		Alias:          req.CustomAlias,
		LongURL:        req.LongURL,
		CreationDate:   now,
		ExpirationDate: &expiration,
		UserID:         req.UserID,
		ClickCount:     0,
	}

	var inserted bool
	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		mapping.ShortCode = shortcode.WithSuffix(req.LongURL, attempt)

		err := s.store.InsertMapping(ctx, mapping)
		if err == nil {
			inserted = true
			break
		}
		if errors.Is(err, repository.ErrDuplicateShortCode) {
			continue
		}
		return nil, err
	}
	if !inserted {
		return nil, fmt.Errorf("could not mint a unique short code after %d attempts", maxMintAttempts)
	}

	// The row is committed; a publish failure only delays cache warmth.
	if err := s.publisher.Publish(ctx, mapping.ShortCode, mapping.LongURL); err != nil {
		log.Printf("bus publish failed: shortCode=%s err=%v", mapping.ShortCode, err)
	}

	return &model.ShortenResponse{
		ShortCode:      mapping.ShortCode,
		ShortURL:       s.baseURL + "/" + mapping.ShortCode,
		CreatedAt:      mapping.CreationDate,
		ExpirationTime: expiration,
	}, nil
}

// ListByUser returns all mappings owned by the given account.
func (s *ShortenerService) ListByUser(ctx context.Context, userID int32) ([]model.URLInfoResponse, error) {
	mappings, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	infos := make([]model.URLInfoResponse, 0, len(mappings))
	for _, m := range mappings {
		infos = append(infos, model.URLInfoResponse{
			ShortCode:      m.ShortCode,
			ShortURL:       s.baseURL + "/" + m.ShortCode,
			LongURL:        m.LongURL,
			Alias:          m.Alias,
			CreationDate:   m.CreationDate,
			ExpirationDate: m.ExpirationDate,
			ClickCount:     m.ClickCount,
		})
	}

	return infos, nil
}

func isValidURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return true
	default:
		return false
	}
}
