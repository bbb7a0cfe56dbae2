package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jack/url-shortener-platform/internal/repository"
)

// ClickSyncScheduler periodically flushes click counters accumulated in
// Redis into url_mapping.click_count. click_count only ever grows: failed
// flushes restore the counter instead of dropping it.
type ClickSyncScheduler struct {
	postgresRepo *repository.PostgresRepository
	redisRepo    *repository.RedisRepository
	interval     time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

func NewClickSyncScheduler(
	postgresRepo *repository.PostgresRepository,
	redisRepo *repository.RedisRepository,
	interval time.Duration,
) *ClickSyncScheduler {
	return &ClickSyncScheduler{
		postgresRepo: postgresRepo,
		redisRepo:    redisRepo,
		interval:     interval,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the periodic sync process
func (s *ClickSyncScheduler) Start() {
	s.wg.Add(1)
	go s.run()
	log.Printf("Click sync scheduler started (interval: %v)", s.interval)
}

// Stop gracefully stops the scheduler
func (s *ClickSyncScheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	log.Println("Click sync scheduler stopped")
}

func (s *ClickSyncScheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.syncClickCounts()
		case <-s.stopCh:
			// Final sync before shutdown so pending clicks survive restarts.
			s.syncClickCounts()
			return
		}
	}
}

func (s *ClickSyncScheduler) syncClickCounts() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	keys, err := s.redisRepo.GetAllClickCountKeys(ctx)
	if err != nil {
		log.Printf("Failed to get click count keys: %v", err)
		return
	}

	if len(keys) == 0 {
		return
	}

	var successCount, failCount int

	for _, key := range keys {
		shortCode := repository.ExtractShortCodeFromKey(key)

		count, err := s.redisRepo.GetAndResetClickCount(ctx, shortCode)
		if err != nil {
			log.Printf("Failed to get click count for %s: %v", shortCode, err)
			failCount++
			continue
		}

		if count == 0 {
			continue
		}

		if err := s.postgresRepo.IncrementClickCountBy(ctx, shortCode, count); err != nil {
			log.Printf("Failed to sync click count for %s: %v", shortCode, err)
			if restoreErr := s.redisRepo.IncrementClickCountBy(ctx, shortCode, count); restoreErr != nil {
				log.Printf("Failed to restore click count for %s: %v (data loss: %d clicks)", shortCode, restoreErr, count)
			}
			failCount++
			continue
		}

		successCount++
	}

	if successCount > 0 || failCount > 0 {
		log.Printf("Click count sync completed: %d success, %d failed", successCount, failCount)
	}
}
