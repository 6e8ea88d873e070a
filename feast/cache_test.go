package feast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClient struct {
	calls int
	err   error
}

func (c *countingClient) GetOnlineFeatures(_ context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	vectors := make([]FeatureVector, len(req.EntityRows))
	for i, row := range req.EntityRows {
		vectors[i] = FeatureVector{Values: map[string]any{"passenger_stats:fare": 71.2833}, EntityRow: row}
	}
	return &GetOnlineFeaturesResponse{FeatureVectors: vectors}, nil
}

func (c *countingClient) Close() error { return nil }

func fareRequest(id int64) *GetOnlineFeaturesRequest {
	return &GetOnlineFeaturesRequest{
		Features:   []string{"passenger_stats:fare"},
		EntityRows: []map[string]any{{"passenger_id": id}},
	}
}

func TestCachedClient_HitAndExpire(t *testing.T) {
	now := time.Date(2026, 4, 15, 8, 0, 0, 0, time.UTC)
	inner := &countingClient{}
	c := newCachedClient(inner, 10, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	resp, err := c.GetOnlineFeatures(ctx, fareRequest(892))
	require.NoError(t, err)
	assert.Equal(t, 71.2833, resp.FeatureVectors[0].Values["passenger_stats:fare"])

	resp, err = c.GetOnlineFeatures(ctx, fareRequest(892))
	require.NoError(t, err)
	assert.Equal(t, 71.2833, resp.FeatureVectors[0].Values["passenger_stats:fare"])
	assert.Equal(t, 1, inner.calls)

	now = now.Add(2 * time.Minute)
	_, err = c.GetOnlineFeatures(ctx, fareRequest(892))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "expired entry is fetched again")
	require.NoError(t, c.Close())
}

func TestCachedClient_EvictsLeastRecentlyUsed(t *testing.T) {
	now := time.Date(2026, 4, 15, 8, 0, 0, 0, time.UTC)
	inner := &countingClient{}
	c := newCachedClient(inner, 2, time.Hour, func() time.Time { return now })
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		now = now.Add(time.Second)
		_, err := c.GetOnlineFeatures(ctx, fareRequest(id))
		require.NoError(t, err)
	}
	now = now.Add(time.Second)
	_, _ = c.GetOnlineFeatures(ctx, fareRequest(1))
	now = now.Add(time.Second)
	_, _ = c.GetOnlineFeatures(ctx, fareRequest(3))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 3, inner.calls)

	_, _ = c.GetOnlineFeatures(ctx, fareRequest(1))
	assert.Equal(t, 3, inner.calls, "recently used entry survives eviction")
	_, _ = c.GetOnlineFeatures(ctx, fareRequest(2))
	assert.Equal(t, 4, inner.calls)
}

func TestCachedClient_ErrorsAndMultiRowsBypass(t *testing.T) {
	inner := &countingClient{err: errors.New("unavailable")}
	c := newCachedClient(inner, 10, time.Minute, time.Now)
	_, err := c.GetOnlineFeatures(context.Background(), fareRequest(1))
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())

	inner.err = nil
	req := &GetOnlineFeaturesRequest{
		Features:   []string{"passenger_stats:fare"},
		EntityRows: []map[string]any{{"passenger_id": int64(1)}, {"passenger_id": int64(2)}},
	}
	resp, err := c.GetOnlineFeatures(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, resp.FeatureVectors, 2)
	assert.Equal(t, 0, c.Len())
}

func TestNewCachedClient_Disabled(t *testing.T) {
	inner := &countingClient{}
	assert.Same(t, inner, NewCachedClient(inner, 0, time.Minute))
}
