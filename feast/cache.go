package feast

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// CachedClient 在 Client 外加一层内存缓存，采用 TTL + LRU 策略。
// 同一乘客的在线特征在 TTL 内只读取一次；只缓存单实体行的请求。
type CachedClient struct {
	Client

	mu          sync.Mutex
	entries     map[string]*cacheEntry
	maxSize     int
	ttl         time.Duration
	now         func() time.Time
	cleanupTick *time.Ticker
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

type cacheEntry struct {
	values     map[string]any
	expireTime time.Time
	accessTime time.Time
}

// NewCachedClient 包装 client；maxSize <= 0 或 ttl <= 0 时直接返回 client
func NewCachedClient(client Client, maxSize int, ttl time.Duration) Client {
	if maxSize <= 0 || ttl <= 0 {
		return client
	}
	c := newCachedClient(client, maxSize, ttl, time.Now)
	c.cleanupTick = time.NewTicker(time.Minute)
	go c.cleanup()
	return c
}

func newCachedClient(client Client, maxSize int, ttl time.Duration, now func() time.Time) *CachedClient {
	return &CachedClient{
		Client:      client,
		entries:     make(map[string]*cacheEntry),
		maxSize:     maxSize,
		ttl:         ttl,
		now:         now,
		stopCleanup: make(chan struct{}),
	}
}

func (c *CachedClient) cleanup() {
	for {
		select {
		case <-c.cleanupTick.C:
			c.cleanExpired()
		case <-c.stopCleanup:
			c.cleanupTick.Stop()
			return
		}
	}
}

func (c *CachedClient) cleanExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if now.After(entry.expireTime) {
			delete(c.entries, key)
		}
	}
}

// evictLRU 删除最久未访问的条目，调用方持有锁
func (c *CachedClient) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.accessTime.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.accessTime
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// GetOnlineFeatures 命中缓存时不访问 Feast
func (c *CachedClient) GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	if len(req.EntityRows) != 1 {
		return c.Client.GetOnlineFeatures(ctx, req)
	}
	key := cacheKey(req)

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && !c.now().After(entry.expireTime) {
		entry.accessTime = c.now()
		values := entry.values
		c.mu.Unlock()
		return &GetOnlineFeaturesResponse{
			FeatureVectors: []FeatureVector{{Values: copyValues(values), EntityRow: req.EntityRows[0]}},
		}, nil
	}
	c.mu.Unlock()

	resp, err := c.Client.GetOnlineFeatures(ctx, req)
	if err != nil || len(resp.FeatureVectors) != 1 {
		return resp, err
	}

	now := c.now()
	c.mu.Lock()
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxSize {
		c.evictLRU()
	}
	c.entries[key] = &cacheEntry{
		values:     copyValues(resp.FeatureVectors[0].Values),
		expireTime: now.Add(c.ttl),
		accessTime: now,
	}
	c.mu.Unlock()
	return resp, nil
}

// Len 当前缓存条目数（含尚未清理的过期条目）
func (c *CachedClient) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close 停止清理协程并关闭底层客户端
func (c *CachedClient) Close() error {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
	return c.Client.Close()
}

func cacheKey(req *GetOnlineFeaturesRequest) string {
	refs := append([]string(nil), req.Features...)
	sort.Strings(refs)
	row := req.EntityRows[0]
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(req.Project)
	b.WriteByte('|')
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, row[k])
	}
	b.WriteByte('|')
	b.WriteString(strings.Join(refs, ","))
	return b.String()
}

func copyValues(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
