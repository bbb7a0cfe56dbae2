// Package gateway implements the edge gateway: bearer-token validation with
// a process-local positive cache, and HTTP fan-out to the backing services.
package gateway

import (
	"log"
	"sync"
	"time"
)

// TokenInfo is one cached token entry.
type TokenInfo struct {
	UserID    string
	ExpiresAt time.Time
	Valid     bool
}

// TokenCache maps bearer tokens to their identity and expiry. Entries are
// process-local and never shared between gateway instances. Invalidated
// entries are kept (valid=false) until swept, so a revoked token is
// distinguishable from one the gateway has never seen.
type TokenCache struct {
	mu      sync.RWMutex
	entries map[string]TokenInfo

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		entries: make(map[string]TokenInfo),
		stopCh:  make(chan struct{}),
	}
}

// Get returns the entry only if it is still valid and unexpired.
func (tc *TokenCache) Get(token string) (TokenInfo, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	info, ok := tc.entries[token]
	if !ok || !info.Valid || !info.ExpiresAt.After(time.Now()) {
		return TokenInfo{}, false
	}
	return info, true
}

// Store inserts or refreshes a token entry, marking it valid.
func (tc *TokenCache) Store(token, userID string, expiresAt time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.entries[token] = TokenInfo{
		UserID:    userID,
		ExpiresAt: expiresAt,
		Valid:     true,
	}
}

// Invalidate marks a token invalid without removing it (logout path).
func (tc *TokenCache) Invalidate(token string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if info, ok := tc.entries[token]; ok {
		info.Valid = false
		tc.entries[token] = info
	}
}

// Sweep removes entries that are expired or have been invalidated.
func (tc *TokenCache) Sweep() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := time.Now()
	for token, info := range tc.entries {
		if !info.Valid || !info.ExpiresAt.After(now) {
			delete(tc.entries, token)
		}
	}
}

// StartSweeper runs Sweep on the given interval until StopSweeper is called.
func (tc *TokenCache) StartSweeper(interval time.Duration) {
	tc.wg.Add(1)
	go func() {
		defer tc.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				tc.Sweep()
			case <-tc.stopCh:
				return
			}
		}
	}()
	log.Printf("Token cache sweeper started (interval: %v)", interval)
}

func (tc *TokenCache) StopSweeper() {
	close(tc.stopCh)
	tc.wg.Wait()
}
