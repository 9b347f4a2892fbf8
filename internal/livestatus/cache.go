package livestatus

import (
	"context"
	"sync"

	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
)

// Cache 保存一个会话在当前窗口下已经查询过的在线状态。
// 窗口标识变化时必须通过 Reset 清空。Get 和 SetIf 都只在窗口仍然是 window 时生效，
// 窗口检查与读写在同一步完成，ok 为 false 表示窗口已经切换。
type Cache interface {
	Window(ctx context.Context) (string, error)
	Reset(ctx context.Context, window string) error
	Get(ctx context.Context, window string, vehicles []int32) (entries map[int32]domain.Online, ok bool, err error)
	SetIf(ctx context.Context, window string, vehicle int32, online domain.Online) (bool, error)
}

type MemoryCache struct {
	mu      sync.Mutex
	window  string
	entries map[int32]domain.Online
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[int32]domain.Online)}
}

func (c *MemoryCache) Window(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window, nil
}

func (c *MemoryCache) Reset(_ context.Context, window string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window = window
	c.entries = make(map[int32]domain.Online)
	return nil
}

func (c *MemoryCache) Get(_ context.Context, window string, vehicles []int32) (map[int32]domain.Online, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.window != window {
		return nil, false, nil
	}
	res := make(map[int32]domain.Online, len(vehicles))
	for _, v := range vehicles {
		if online, ok := c.entries[v]; ok {
			res[v] = online
		}
	}
	return res, true, nil
}

func (c *MemoryCache) SetIf(_ context.Context, window string, vehicle int32, online domain.Online) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.window != window {
		return false, nil
	}
	c.entries[vehicle] = online
	return true, nil
}

// Len 返回缓存的条目数
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
