package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"revenue/internal/storage"
)

// MemoryStore keeps the entry for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	entry *Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == nil {
		return Entry{}, false, nil
	}
	return *s.entry, true, nil
}

func (s *MemoryStore) Save(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = &e
	return nil
}

// PlanRepository is the part of the SQLite repository the plan needs.
type PlanRepository interface {
	LoadPlan(ctx context.Context) (storage.PlanRecord, error)
	SavePlan(ctx context.Context, rec storage.PlanRecord) error
}

// SQLiteStore keeps the entry in the plan_cache table so that scheduled
// one-shot runs share it.
type SQLiteStore struct {
	repo PlanRepository
}

func NewSQLiteStore(repo PlanRepository) *SQLiteStore {
	return &SQLiteStore{repo: repo}
}

func (s *SQLiteStore) Load(ctx context.Context) (Entry, bool, error) {
	rec, err := s.repo.LoadPlan(ctx)
	if errors.Is(err, storage.ErrPlanNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{MonthKey: rec.MonthKey, Plan: rec.Plan, UpdatedAt: rec.UpdatedAt}, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, e Entry) error {
	return s.repo.SavePlan(ctx, storage.PlanRecord{MonthKey: e.MonthKey, Plan: e.Plan, UpdatedAt: e.UpdatedAt})
}

const (
	DefaultRedisKey = "revenue:plan"
	// redisTTL outlives any month so a stale entry is only replaced, never lost early.
	redisTTL = 62 * 24 * time.Hour
)

// RedisClient is the subset of go-redis commands the store uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore shares the entry between hosts through Redis.
type RedisStore struct {
	client RedisClient
	key    string
}

// NewRedisStore connects to a redis:// or rediss:// URL.
func NewRedisStore(redisURL string) (*RedisStore, *redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return NewRedisStoreWithClient(client, DefaultRedisKey), client, nil
}

func NewRedisStoreWithClient(client RedisClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) (Entry, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode plan entry: %w", err)
	}
	return e, true, nil
}

func (s *RedisStore) Save(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode plan entry: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, redisTTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*RedisStore)(nil)
)
