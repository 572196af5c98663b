package view

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, nil, time.Minute), mr
}

type payload struct {
	Value int `json:"value"`
}

func TestFetchJSONPopulatesOnce(t *testing.T) {
	cache, _ := newCache(t)
	stationID := uuid.New()
	calls := 0
	loader := func(ctx context.Context) (any, error) {
		calls++
		return payload{Value: 42}, nil
	}

	var first, second payload
	require.NoError(t, cache.FetchJSON(context.Background(), stationID, "dashboard", &first, loader))
	require.NoError(t, cache.FetchJSON(context.Background(), stationID, "dashboard", &second, loader))
	require.Equal(t, 42, first.Value)
	require.Equal(t, 42, second.Value)
	require.Equal(t, 1, calls)
}

func TestFetchJSONReloadsAfterVersionBump(t *testing.T) {
	cache, mr := newCache(t)
	stationID := uuid.New()
	calls := 0
	loader := func(ctx context.Context) (any, error) {
		calls++
		return payload{Value: calls}, nil
	}

	var out payload
	require.NoError(t, cache.FetchJSON(context.Background(), stationID, "dashboard", &out, loader))
	require.Equal(t, 1, out.Value)

	_, err := mr.Incr(versionKey(stationID), 1)
	require.NoError(t, err)

	require.NoError(t, cache.FetchJSON(context.Background(), stationID, "dashboard", &out, loader))
	require.Equal(t, 2, out.Value)
	require.Equal(t, 2, calls)
}

func TestInvalidateBumpsVersion(t *testing.T) {
	cache, mr := newCache(t)
	stationID := uuid.New()

	cache.Invalidate(context.Background(), stationID)
	require.Eventually(t, func() bool {
		val, err := mr.Get(versionKey(stationID))
		return err == nil && val == "1"
	}, time.Second, 10*time.Millisecond)
}

func TestFetchJSONWithoutRedisFallsBackToLoader(t *testing.T) {
	cache := NewCache(nil, nil, time.Minute)
	var out payload
	err := cache.FetchJSON(context.Background(), uuid.New(), "dashboard", &out, func(ctx context.Context) (any, error) {
		return payload{Value: 7}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, out.Value)
}
