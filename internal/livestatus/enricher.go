package livestatus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/metrics"
	"golang.org/x/sync/errgroup"
)

var ErrStaleWindow = errors.New("窗口已经切换，本次查询结果已丢弃")

// LookupError 表示单辆车的实时状态查询失败，不影响其他车辆
type LookupError struct {
	Vehicle int32
	Err     error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("车辆 %d 实时状态查询失败: %v", e.Vehicle, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

type Annotation struct {
	WindowID string                  `json:"windowID"`
	Statuses map[int32]domain.Online `json:"statuses"`
	Failed   []int32                 `json:"failed"` // 本次查询失败的车辆，状态记为 unknown
	Err      error                   `json:"-"`
}

// Partial 表示至少有一辆车查询失败
func (a *Annotation) Partial() bool {
	return len(a.Failed) > 0
}

type Enricher struct {
	lookup      Lookup
	cache       Cache
	online      map[domain.TrackingStatus]bool
	concurrency int
	metrics     *metrics.Metrics
}

type Option func(*Enricher)

// WithOnlineStatuses 指定哪些定位状态算作在线
func WithOnlineStatuses(statuses ...domain.TrackingStatus) Option {
	return func(e *Enricher) {
		e.online = make(map[domain.TrackingStatus]bool, len(statuses))
		for _, s := range statuses {
			e.online[s] = true
		}
	}
}

func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Enricher) {
		e.metrics = m
	}
}

func New(lookup Lookup, cache Cache, opts ...Option) *Enricher {
	e := &Enricher{
		lookup:      lookup,
		cache:       cache,
		concurrency: 16,
	}
	WithOnlineStatuses(domain.TrackingStatusMoving, domain.TrackingStatusIdle)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Use 切换到 window，窗口标识变化时清空缓存
func (e *Enricher) Use(ctx context.Context, window string) error {
	current, err := e.cache.Window(ctx)
	if err != nil {
		return err
	}
	if current == window {
		return nil
	}
	return e.cache.Reset(ctx, window)
}

// Refresh 无条件清空缓存，下一次 Annotate 会重新查询所有车辆
func (e *Enricher) Refresh(ctx context.Context, window string) error {
	return e.cache.Reset(ctx, window)
}

// Cached 返回 window 下已经缓存的状态，不会发起任何查询
func (e *Enricher) Cached(ctx context.Context, window string, vehicles []int32) (map[int32]domain.Online, error) {
	cached, ok, err := e.cache.Get(ctx, window, vehicles)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[int32]domain.Online{}, nil
	}
	return cached, nil
}

// Annotate 并发查询缓存中还没有确定结果的车辆。
// 单辆车失败只会把它记为 unknown，下一次调用会重试；已经确定在线或离线的车辆
// 在窗口切换或 Refresh 之前不会再次查询。查询过程中窗口发生切换时返回 ErrStaleWindow。
func (e *Enricher) Annotate(ctx context.Context, window string, vehicles []int32) (*Annotation, error) {
	if err := e.Use(ctx, window); err != nil {
		return nil, err
	}

	vehicles = slices.Clone(vehicles)
	slices.Sort(vehicles)
	vehicles = slices.Compact(vehicles)

	cached, ok, err := e.cache.Get(ctx, window, vehicles)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Use 之后其他请求已经切换了窗口，缓存中的条目不属于 window
		return nil, ErrStaleWindow
	}

	var pending []int32
	for _, v := range vehicles {
		if online, ok := cached[v]; ok && online != domain.OnlineUnknown {
			continue
		}
		pending = append(pending, v)
	}

	var (
		mu        sync.Mutex
		fetched   = make(map[int32]domain.Online, len(pending))
		lookupErr []error
		cacheErr  error
		stale     bool
	)

	// 每个 goroutine 都返回 nil，单辆车的失败不会取消其他查询
	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for _, v := range pending {
		g.Go(func() error {
			online, err := e.fetch(ctx, v)
			// 每完成一辆就写入缓存，部分结果可以先被其他请求看到
			stored, serr := e.cache.SetIf(ctx, window, v, online)

			mu.Lock()
			defer mu.Unlock()
			fetched[v] = online
			if err != nil {
				lookupErr = append(lookupErr, err)
			}
			switch {
			case serr != nil:
				if cacheErr == nil {
					cacheErr = serr
				}
			case !stored:
				stale = true
			}
			return nil
		})
	}
	_ = g.Wait()

	if stale {
		return nil, ErrStaleWindow
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cacheErr != nil {
		return nil, fmt.Errorf("无法写入实时状态缓存: %w", cacheErr)
	}

	annotation := &Annotation{
		WindowID: window,
		Statuses: make(map[int32]domain.Online, len(vehicles)),
		Failed:   make([]int32, 0),
		Err:      errors.Join(lookupErr...),
	}
	for _, v := range vehicles {
		if online, ok := fetched[v]; ok {
			annotation.Statuses[v] = online
			if online == domain.OnlineUnknown {
				annotation.Failed = append(annotation.Failed, v)
			}
			continue
		}
		annotation.Statuses[v] = cached[v]
	}

	return annotation, nil
}

func (e *Enricher) fetch(ctx context.Context, vehicle int32) (domain.Online, error) {
	start := time.Now()
	status, err := e.lookup.GetLiveStatus(ctx, vehicle)
	if err != nil {
		e.metrics.LiveLookup("error", time.Since(start))
		slog.Warn("无法查询车辆实时状态", "vehicle", vehicle, "error", err)
		return domain.OnlineUnknown, &LookupError{Vehicle: vehicle, Err: err}
	}

	online := domain.OnlineOf(e.online[status])
	e.metrics.LiveLookup(string(online), time.Since(start))
	return online, nil
}
