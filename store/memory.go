package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rushteam/survkit/core"
)

// MemoryStore 是内存实现的 HistoryStore，用于测试/开发。
// 进程重启后数据丢失；limit > 0 时只保留最近 limit 条。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*core.HistoryEntry
	order   []string // 按写入时间升序
	limit   int
}

func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*core.HistoryEntry),
		limit:   limit,
	}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Save(_ context.Context, e *core.HistoryEntry) error {
	if err := checkEntry(e); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[e.ID]; !exists {
		m.order = append(m.order, e.ID)
	}
	m.entries[e.ID] = e
	sort.SliceStable(m.order, func(i, j int) bool {
		return m.entries[m.order[i]].CreatedAt.Before(m.entries[m.order[j]].CreatedAt)
	})
	if m.limit > 0 && len(m.order) > m.limit {
		drop := len(m.order) - m.limit
		for _, id := range m.order[:drop] {
			delete(m.entries, id)
		}
		m.order = append([]string(nil), m.order[drop:]...)
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*core.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	return e, nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]*core.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*core.HistoryEntry, 0, n)
	for i := len(m.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.entries[m.order[i]])
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

var _ core.HistoryStore = (*MemoryStore)(nil)
