package livestatus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// testCache 检查所有 Cache 实现都需要满足的行为
func testCache(t *testing.T, cache Cache) {
	ctx := context.Background()

	window, err := cache.Window(ctx)
	require.NoError(t, err)
	assert.Empty(t, window)

	// 未设置窗口前写入会被拒绝
	ok, err := cache.SetIf(ctx, "w1", 1, domain.OnlineYes)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Reset(ctx, "w1"))
	ok, err = cache.SetIf(ctx, "w1", 1, domain.OnlineYes)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = cache.SetIf(ctx, "w1", 2, domain.OnlineUnknown)
	require.NoError(t, err)
	assert.True(t, ok)

	got, ok, err := cache.Get(ctx, "w1", []int32{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[int32]domain.Online{1: domain.OnlineYes, 2: domain.OnlineUnknown}, got)

	// 以其他窗口读取时不能返回 w1 的条目
	got, ok, err = cache.Get(ctx, "w0", []int32{1, 2})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, got)

	ok, err = cache.SetIf(ctx, "w0", 3, domain.OnlineNo)
	require.NoError(t, err)
	assert.False(t, ok, "旧窗口的结果不能写入")

	require.NoError(t, cache.Reset(ctx, "w2"))
	window, err = cache.Window(ctx)
	require.NoError(t, err)
	assert.Equal(t, "w2", window)

	got, ok, err = cache.Get(ctx, "w2", []int32{1, 2})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)

	got, ok, err = cache.Get(ctx, "w1", []int32{1, 2})
	require.NoError(t, err)
	assert.False(t, ok, "切换窗口后旧窗口的读取应当失败")
	assert.Empty(t, got)

	got, ok, err = cache.Get(ctx, "w2", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestMemoryCache(t *testing.T) {
	testCache(t, NewMemoryCache())
}

// 需要 docker，不可用时跳过
func TestRedisCache(t *testing.T) {
	tc.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, container.Terminate(ctx))
	}()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	defer rdb.Close()

	t.Run("contract", func(t *testing.T) {
		testCache(t, NewRedisCache(rdb, uuid.NewString(), time.Minute))
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		a := NewRedisCache(rdb, uuid.NewString(), time.Minute)
		b := NewRedisCache(rdb, uuid.NewString(), time.Minute)
		require.NoError(t, a.Reset(ctx, "w1"))
		require.NoError(t, b.Reset(ctx, "w1"))

		ok, err := a.SetIf(ctx, "w1", 7, domain.OnlineYes)
		require.NoError(t, err)
		require.True(t, ok)

		got, ok, err := b.Get(ctx, "w1", []int32{7})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, got)
	})

	t.Run("entries expire with the session", func(t *testing.T) {
		session := uuid.NewString()
		cache := NewRedisCache(rdb, session, time.Minute)
		require.NoError(t, cache.Reset(ctx, "w1"))
		_, err := cache.SetIf(ctx, "w1", 1, domain.OnlineNo)
		require.NoError(t, err)

		for _, key := range []string{
			fmt.Sprintf("live_status:%s:window", session),
			fmt.Sprintf("live_status:%s:entries", session),
		} {
			ttl, err := rdb.TTL(ctx, key).Result()
			require.NoError(t, err)
			assert.Greater(t, ttl, time.Duration(0), key)
		}
	})

	t.Run("enricher rejects a window switched by another instance", func(t *testing.T) {
		session := uuid.NewString()
		lookup := newFakeLookup()
		lookup.statuses[7] = domain.TrackingStatusMoving
		e := New(lookup, NewRedisCache(rdb, session, time.Minute))

		_, err := e.Annotate(ctx, "w1", []int32{7})
		require.NoError(t, err)

		other := NewRedisCache(rdb, session, time.Minute)
		lookup.hook = func(int32) {
			assert.NoError(t, other.Reset(ctx, "w2"))
		}
		require.NoError(t, e.Refresh(ctx, "w1"))
		_, err = e.Annotate(ctx, "w1", []int32{7})
		assert.ErrorIs(t, err, ErrStaleWindow)

		got, ok, err := other.Get(ctx, "w2", []int32{7})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, got)
	})
}
