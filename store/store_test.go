package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/survkit/core"
)

func newEntry(id string, at time.Time, label int) *core.HistoryEntry {
	return &core.HistoryEntry{
		ID:      id,
		Subject: "Jane",
		Record: core.Record{
			"Pclass": core.Int(1),
			"Sex":    core.Category("female"),
			"Age":    core.Float(17.5),
		},
		Result: &core.PredictionResult{
			Subject:     "Jane",
			Label:       label,
			Survived:    label == 1,
			ProbDie:     0.18,
			ProbSurvive: 0.82,
			Tier:        core.TierHigh,
			Source:      core.SourceNative,
			Message:     core.BuildMessage("Jane", label),
		},
		CreatedAt: at,
	}
}

// exerciseStore 对任意 HistoryStore 实现跑同一组行为检查
func exerciseStore(t *testing.T, s core.HistoryStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Get(ctx, "missing")
	assert.True(t, core.IsStoreNotFound(err), "got %v", err)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(ctx, newEntry(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Minute), i%2)))
	}
	assert.Error(t, s.Save(ctx, &core.HistoryEntry{}))

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Jane", got.Subject)
	assert.Equal(t, 1, got.Result.Label)
	assert.Equal(t, core.TierHigh, got.Result.Tier)
	assert.Equal(t, core.Category("female"), got.Record["Sex"])
	assert.Equal(t, core.Int(1), got.Record["Pclass"])
	assert.True(t, got.CreatedAt.Equal(base.Add(time.Minute)))

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "e2", recent[0].ID)
	assert.Equal(t, "e1", recent[1].ID)

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	exerciseStore(t, s)
}

func TestMemoryStore_Limit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	base := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Save(ctx, newEntry(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Second), 0)))
	}
	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "e3", all[0].ID)

	_, err = s.Get(ctx, "e0")
	assert.True(t, core.IsStoreNotFound(err))
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history", "predictions.db")
	s, err := NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)

	n, err := s.Prune(context.Background(), time.Date(2026, 1, 1, 12, 1, 30, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	prefix := fmt.Sprintf("survkit-test-%d:", time.Now().UnixNano())
	s, err := NewRedisStore(context.Background(), addr, 0, prefix)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func newMiniRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), mr.Addr(), 0, "survkit:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore_Miniredis(t *testing.T) {
	s, _ := newMiniRedisStore(t)
	exerciseStore(t, s)
}

func TestRedisStore_TrimsToLimit(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniRedisStore(t, WithRedisLimit(2))
	base := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Save(ctx, newEntry(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Second), 0)))
	}

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "e3", all[0].ID)
	assert.Equal(t, "e2", all[1].ID)

	members, err := mr.ZMembers("survkit:recent")
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e3"}, members)
	assert.False(t, mr.Exists("survkit:entry:e0"))
	assert.False(t, mr.Exists("survkit:entry:e1"))
	_, err = s.Get(ctx, "e1")
	assert.True(t, core.IsStoreNotFound(err))
}

func TestRedisStore_EntriesExpire(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniRedisStore(t, WithRedisTTL(time.Hour))
	now := time.Now()
	require.NoError(t, s.Save(ctx, newEntry("old", now.Add(-2*time.Hour), 0)))
	require.NoError(t, s.Save(ctx, newEntry("new", now, 1)))

	assert.Equal(t, time.Hour, mr.TTL("survkit:entry:new"))
	members, err := mr.ZMembers("survkit:recent")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, members, "index drops entries older than the ttl")

	mr.FastForward(2 * time.Hour)
	_, err = s.Get(ctx, "new")
	assert.True(t, core.IsStoreNotFound(err))
	recent, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, Config{Backend: "memory"})
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Name())

	mr := miniredis.RunT(t)
	s, err = Open(ctx, Config{Backend: "redis", Addr: mr.Addr(), Limit: 1})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Save(ctx, newEntry("a", time.Now(), 0)))
	require.NoError(t, s.Save(ctx, newEntry("b", time.Now().Add(time.Second), 0)))
	recent, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1, "store limit applies to redis")
	assert.Equal(t, "b", recent[0].ID)

	_, err = Open(ctx, Config{Backend: "cassandra"})
	assert.Error(t, err)
}
