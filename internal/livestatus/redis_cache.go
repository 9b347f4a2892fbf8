package livestatus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
)

// 只有窗口标识仍然匹配时才写入，避免过期的查询结果混入新窗口
var setIfScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[2], ARGV[4])
return 1
`)

// 窗口匹配时返回 {1, 各字段的值}，否则返回 {0}
var getIfScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
	return {0}
end
local res = {1}
if #ARGV > 1 then
	local values = redis.call('HMGET', KEYS[2], unpack(ARGV, 2))
	for i = 1, #ARGV - 1 do
		res[i + 1] = values[i]
	end
end
return res
`)

// RedisCache 把会话的缓存保存在 redis 中，使多个 api 实例可以共享同一个会话
type RedisCache struct {
	rdb       *redis.Client
	windowKey string
	entryKey  string
	ttl       time.Duration
}

func NewRedisCache(rdb *redis.Client, session string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		rdb:       rdb,
		windowKey: fmt.Sprintf("live_status:%s:window", session),
		entryKey:  fmt.Sprintf("live_status:%s:entries", session),
		ttl:       ttl,
	}
}

func (c *RedisCache) Window(ctx context.Context) (string, error) {
	window, err := c.rdb.Get(ctx, c.windowKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return window, err
}

func (c *RedisCache) Reset(ctx context.Context, window string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.entryKey)
		pipe.Set(ctx, c.windowKey, window, c.ttl)
		return nil
	})
	return err
}

func (c *RedisCache) Get(ctx context.Context, window string, vehicles []int32) (map[int32]domain.Online, bool, error) {
	args := make([]any, 0, len(vehicles)+1)
	args = append(args, window)
	for _, v := range vehicles {
		args = append(args, strconv.Itoa(int(v)))
	}
	values, err := getIfScript.Run(ctx, c.rdb, []string{c.windowKey, c.entryKey}, args...).Slice()
	if err != nil {
		return nil, false, err
	}
	if len(values) == 0 || values[0] != int64(1) {
		return nil, false, nil
	}

	res := make(map[int32]domain.Online, len(vehicles))
	for i, value := range values[1:] {
		if i >= len(vehicles) {
			break
		}
		// 不存在的字段返回 nil
		s, ok := value.(string)
		if !ok {
			continue
		}
		res[vehicles[i]] = domain.Online(s)
	}
	return res, true, nil
}

func (c *RedisCache) SetIf(ctx context.Context, window string, vehicle int32, online domain.Online) (bool, error) {
	keys := []string{c.windowKey, c.entryKey}
	args := []any{window, strconv.Itoa(int(vehicle)), string(online), c.ttl.Milliseconds()}
	n, err := setIfScript.Run(ctx, c.rdb, keys, args...).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
