package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"LanFM/config"
	"LanFM/model"

	"github.com/redis/go-redis/v9"
)

const (
	countsKey       = "lanfm:playcounts"
	deviceKeyPrefix = "lanfm:device:"
)

// NewRedisClient connects to Redis using the application configuration and
// verifies the connection with a ping.
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisCountStore keeps play counts in a single hash. HINCRBY gives the
// per-song increment its atomicity for free.
type RedisCountStore struct {
	client *redis.Client
}

func NewRedisCountStore(client *redis.Client) *RedisCountStore {
	return &RedisCountStore{client: client}
}

func (s *RedisCountStore) Increment(ctx context.Context, id string) (int64, error) {
	if id == "" {
		return 0, ErrMissingID
	}
	count, err := s.client.HIncrBy(ctx, countsKey, id, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("increment play count: %w", err)
	}
	return count, nil
}

func (s *RedisCountStore) Top(ctx context.Context) (string, int64, error) {
	counts, err := s.client.HGetAll(ctx, countsKey).Result()
	if err != nil {
		return "", 0, fmt.Errorf("read play counts: %w", err)
	}

	var topID string
	var topCount int64
	for id, raw := range counts {
		var n int64
		if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
			continue
		}
		if n > topCount {
			topID, topCount = id, n
		}
	}
	return topID, topCount, nil
}

// RedisDeviceStore keeps one JSON value per device with a native key TTL,
// so stale entries expire inside Redis instead of accumulating. Retention
// is fixed at construction; listings still filter by UpdatedAt so the
// observable staleness window matches the file store exactly.
type RedisDeviceStore struct {
	client    *redis.Client
	retention time.Duration
	now       func() time.Time
}

func NewRedisDeviceStore(client *redis.Client, retention time.Duration) *RedisDeviceStore {
	return &RedisDeviceStore{client: client, retention: retention, now: time.Now}
}

// SetClock overrides the time source. Test hook.
func (s *RedisDeviceStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *RedisDeviceStore) Upsert(ctx context.Context, status model.DeviceStatus) error {
	if status.DeviceID == "" {
		return ErrMissingID
	}
	if status.UpdatedAt == 0 {
		status.UpdatedAt = s.now().UnixMilli()
	}

	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode device status: %w", err)
	}
	if err := s.client.Set(ctx, deviceKeyPrefix+status.DeviceID, payload, s.retention).Err(); err != nil {
		return fmt.Errorf("store device status: %w", err)
	}
	return nil
}

func (s *RedisDeviceStore) ListActive(ctx context.Context, ttl time.Duration) ([]model.DeviceStatus, error) {
	cutoff := s.now().UnixMilli() - ttl.Milliseconds()

	var active []model.DeviceStatus
	iter := s.client.Scan(ctx, 0, deviceKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("read device status: %w", err)
		}
		var d model.DeviceStatus
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("decode device status: %w", err)
		}
		if d.UpdatedAt > cutoff {
			active = append(active, d)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan device registry: %w", err)
	}
	return active, nil
}

// Compact is a no-op: key TTLs already bound registry growth.
func (s *RedisDeviceStore) Compact(ctx context.Context, ttl time.Duration) (int, error) {
	return 0, nil
}
