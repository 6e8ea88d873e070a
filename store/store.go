// Package store 提供 core.HistoryStore 的实现。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
// 示例：
//
//	var hs core.HistoryStore = store.NewMemoryStore(0)
//	hs, err := store.Open(ctx, store.Config{Backend: "sqlite", Path: "history.db"})
package store

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rushteam/survkit/core"
)

// Config 历史存储配置
type Config struct {
	Backend string        `koanf:"backend" validate:"omitempty,oneof=memory redis sqlite none"` // memory / redis / sqlite / none
	Addr    string        `koanf:"addr" validate:"required_if=Backend redis"`                   // redis 地址
	DB      int           `koanf:"db" validate:"gte=0"`                                         // redis db
	Prefix  string        `koanf:"prefix"`                                                      // redis key 前缀
	Path    string        `koanf:"path" validate:"required_if=Backend sqlite"`                  // sqlite 文件路径
	Limit   int           `koanf:"limit" validate:"gte=0"`                                      // memory / redis 最多保留条数，0 为不限
	TTL     time.Duration `koanf:"ttl"`                                                         // redis 记录过期时间，0 为不过期
}

// Open 按配置创建存储；Backend 为空或 none 时返回 nil。
func Open(ctx context.Context, cfg Config) (core.HistoryStore, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryStore(cfg.Limit), nil
	case "redis":
		s, err := NewRedisStore(ctx, cfg.Addr, cfg.DB, cfg.Prefix, WithRedisLimit(cfg.Limit), WithRedisTTL(cfg.TTL))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := NewSQLiteStore(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown history store backend %q", cfg.Backend)
	}
}

func encodeEntry(e *core.HistoryEntry) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEntry(data []byte) (*core.HistoryEntry, error) {
	var e core.HistoryEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode history entry: %w", err)
	}
	return &e, nil
}

func checkEntry(e *core.HistoryEntry) error {
	if e == nil || e.ID == "" {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: entry id is required")
	}
	return nil
}
