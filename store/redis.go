package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/survkit/core"
)

// RedisStore 是 Redis 实现的 HistoryStore。
//
// 存储结构：
//   - <prefix>entry:<id>  JSON 编码的 HistoryEntry，ttl > 0 时带过期时间
//   - <prefix>recent      ZSET，member 为 id，score 为写入时间（毫秒）
//
// limit > 0 时每次写入后只保留最近 limit 条，被挤出的 entry 一并删除。
type RedisStore struct {
	client *redis.Client
	prefix string
	limit  int
	ttl    time.Duration
}

// RedisOption 配置 RedisStore
type RedisOption func(*RedisStore)

// WithRedisLimit 最多保留 n 条记录，0 为不限
func WithRedisLimit(n int) RedisOption {
	return func(r *RedisStore) { r.limit = n }
}

// WithRedisTTL 记录的过期时间，0 为永不过期
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *RedisStore) { r.ttl = ttl }
}

func NewRedisStore(ctx context.Context, addr string, db int, prefix string, opts ...RedisOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	if prefix == "" {
		prefix = "survkit:"
	}
	r := &RedisStore{client: client, prefix: prefix}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) entryKey(id string) string { return r.prefix + "entry:" + id }
func (r *RedisStore) recentKey() string         { return r.prefix + "recent" }

func (r *RedisStore) Save(ctx context.Context, e *core.HistoryEntry) error {
	if err := checkEntry(e); err != nil {
		return err
	}
	data, err := encodeEntry(e)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.entryKey(e.ID), data, r.ttl)
	pipe.ZAdd(ctx, r.recentKey(), redis.Z{Score: float64(e.CreatedAt.UnixMilli()), Member: e.ID})
	if r.ttl > 0 {
		// 已过期 entry 的索引
		cutoff := time.Now().Add(-r.ttl).UnixMilli()
		pipe.ZRemRangeByScore(ctx, r.recentKey(), "-inf", "("+strconv.FormatInt(cutoff, 10))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return r.trim(ctx)
}

// trim 删除超出 limit 的最旧记录
func (r *RedisStore) trim(ctx context.Context) error {
	if r.limit <= 0 {
		return nil
	}
	stale, err := r.client.ZRange(ctx, r.recentKey(), 0, int64(-r.limit-1)).Result()
	if err != nil || len(stale) == 0 {
		return err
	}
	keys := make([]string, len(stale))
	members := make([]any, len(stale))
	for i, id := range stale {
		keys[i] = r.entryKey(id)
		members[i] = id
	}
	pipe := r.client.TxPipeline()
	pipe.ZRem(ctx, r.recentKey(), members...)
	pipe.Del(ctx, keys...)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Get(ctx context.Context, id string) (*core.HistoryEntry, error) {
	val, err := r.client.Get(ctx, r.entryKey(id)).Bytes()
	if err == redis.Nil {
		return nil, core.ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeEntry(val)
}

func (r *RedisStore) Recent(ctx context.Context, limit int) ([]*core.HistoryEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := r.client.ZRevRange(ctx, r.recentKey(), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*core.HistoryEntry{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.entryKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*core.HistoryEntry, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		e, err := decodeEntry([]byte(s))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

var _ core.HistoryStore = (*RedisStore)(nil)
