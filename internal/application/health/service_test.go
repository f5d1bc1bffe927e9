package health

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping() error { return p.err }

func TestCollectHealth_WithNilRedis(t *testing.T) {
	result := CollectHealth(context.Background(), nil, nil)
	assert.Equal(t, "issue", result.Status)
	assert.Equal(t, "disconnected", result.Dependencies["database"].Status)
	assert.Equal(t, "disconnected", result.Dependencies["redis"].Status)
	assert.Equal(t, 0, result.Traffic.TotalRequests)
}

func TestCollectHealth_WithMiniredis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	result := CollectHealth(ctx, rdb, pinger{})
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, "connected", result.Dependencies["redis"].Status)
	assert.Equal(t, "connected", result.Dependencies["database"].Status)
	assert.Equal(t, "100", result.Traffic.SuccessRate)

	require.NoError(t, rdb.Set(ctx, "health:global:req_total", "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:req_errors", "2", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:res_time_total", "150.5", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:res_count", "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:start_time", "1000000", 0).Err())

	result2 := CollectHealth(ctx, rdb, pinger{err: errors.New("down")})
	assert.Equal(t, "issue", result2.Status)
	assert.Equal(t, "error", result2.Dependencies["database"].Status)
	assert.Equal(t, 10, result2.Traffic.TotalRequests)
	assert.Equal(t, 2, result2.Traffic.FailedCount)
	assert.Equal(t, 8, result2.Traffic.SuccessCount)
	assert.Equal(t, "80.0", result2.Traffic.SuccessRate)
	assert.Equal(t, "15.05", result2.Traffic.AvgResponseTime)
	assert.Nil(t, result2.Traffic.RouteHits)

	mr.HSet("health:global:route_hits", "GET /api/v1/credits/balance", "4")
	result3 := CollectHealth(ctx, rdb, pinger{})
	assert.Equal(t, map[string]int{"GET /api/v1/credits/balance": 4}, result3.Traffic.RouteHits)
}

func TestCollectHealth_Dependencies(t *testing.T) {
	result := CollectHealth(context.Background(), nil, nil,
		Dependency{Name: "ml_service", Ping: func(context.Context) error { return nil }},
		Dependency{Name: "storage", Ping: func(context.Context) error { return errors.New("timeout") }},
	)
	assert.Equal(t, "reachable", result.Dependencies["ml_service"].Status)
	assert.NotNil(t, result.Dependencies["ml_service"].PingMs)
	assert.Equal(t, "unreachable", result.Dependencies["storage"].Status)
}
