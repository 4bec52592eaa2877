package rediscache

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/qa"
)

const lastApprovalKey = "qa:last-approval"

// Open connects to redis and checks the connection.
func Open(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

// unavailable keeps core.ErrDependencyUnavailable as the cause so callers can report it.
func unavailable(err error, msg string) error {
	return errors.Wrap(core.ErrDependencyUnavailable, msg+": "+err.Error())
}

// RateLimiter stores markers as keys expiring after their ttl.
type RateLimiter struct {
	client *redis.Client
}

var _ qa.RateLimiter = (*RateLimiter)(nil)

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

func (rl *RateLimiter) IsLimited(ctx context.Context, key string) (bool, error) {
	n, err := rl.client.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable(err, "checking rate limit")
	}
	return n > 0, nil
}

func (rl *RateLimiter) Mark(ctx context.Context, key string, ttl time.Duration) error {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	if err := rl.client.Set(ctx, key, ts, ttl).Err(); err != nil {
		return unavailable(err, "setting rate limit")
	}
	return nil
}

// FreshnessStore shares the latest approval time (unix ms) between API instances.
type FreshnessStore struct {
	client *redis.Client
}

var _ qa.FreshnessStore = (*FreshnessStore)(nil)

func NewFreshnessStore(client *redis.Client) *FreshnessStore {
	return &FreshnessStore{client: client}
}

func (fs *FreshnessStore) SetLastApproval(ctx context.Context, t time.Time) error {
	if err := fs.client.Set(ctx, lastApprovalKey, t.UnixMilli(), 0).Err(); err != nil {
		return unavailable(err, "setting last approval")
	}
	return nil
}

func (fs *FreshnessStore) LastApproval(ctx context.Context) (time.Time, error) {
	ms, err := fs.client.Get(ctx, lastApprovalKey).Int64()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, unavailable(err, "getting last approval")
	}
	return time.UnixMilli(ms).UTC(), nil
}
