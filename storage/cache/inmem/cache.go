package inmemcache

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/masomo-qa/core/qa"
)

var NowFunc = time.Now // mockable

// RateLimiter keeps expiring markers in process memory.
type RateLimiter struct {
	mu      sync.Mutex
	markers map[string]time.Time // key -> expiry
}

var _ qa.RateLimiter = (*RateLimiter)(nil)

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{markers: make(map[string]time.Time)}
}

func (rl *RateLimiter) IsLimited(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	expiry, ok := rl.markers[key]
	if !ok {
		return false, nil
	}
	if !NowFunc().Before(expiry) {
		delete(rl.markers, key)
		return false, nil
	}
	return true, nil
}

func (rl *RateLimiter) Mark(_ context.Context, key string, ttl time.Duration) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := NowFunc()
	rl.markers[key] = now.Add(ttl)

	// drop expired markers so the map does not grow forever
	for k, expiry := range rl.markers {
		if !now.Before(expiry) {
			delete(rl.markers, k)
		}
	}
	return nil
}

func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	rl.markers = make(map[string]time.Time)
	rl.mu.Unlock()
}

// FreshnessStore keeps the latest approval time in process memory.
type FreshnessStore struct {
	mu   sync.RWMutex
	last time.Time
}

var _ qa.FreshnessStore = (*FreshnessStore)(nil)

func NewFreshnessStore() *FreshnessStore {
	return &FreshnessStore{}
}

func (fs *FreshnessStore) SetLastApproval(_ context.Context, t time.Time) error {
	fs.mu.Lock()
	fs.last = t
	fs.mu.Unlock()
	return nil
}

func (fs *FreshnessStore) LastApproval(_ context.Context) (time.Time, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.last, nil
}

func (fs *FreshnessStore) Reset() {
	fs.mu.Lock()
	fs.last = time.Time{}
	fs.mu.Unlock()
}
