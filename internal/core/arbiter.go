// Package core 装配并驱动资源仲裁流程
//
// 仲裁器是所有请求的唯一入口: 先过准入闸门, 再查结果缓存,
// 未命中时在重试执行器中走抓取路径, 成功结果回填缓存
package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RecoveryAshes/SocialPeek/internal/browser"
	"github.com/RecoveryAshes/SocialPeek/internal/cache"
	"github.com/RecoveryAshes/SocialPeek/internal/extract"
	"github.com/RecoveryAshes/SocialPeek/internal/fetch"
	"github.com/RecoveryAshes/SocialPeek/internal/models"
	"github.com/RecoveryAshes/SocialPeek/internal/ratelimit"
	"github.com/RecoveryAshes/SocialPeek/internal/retry"
	"github.com/RecoveryAshes/SocialPeek/internal/utils"
)

// Arbiter 资源仲裁器
type Arbiter struct {
	gate     *ratelimit.Gate
	cache    *cache.TTLCache
	fetcher  *fetch.Fetcher
	sessions *browser.SessionManager
	monitor  *browser.Monitor
	retryCfg retry.Config

	mu     sync.Mutex
	stats  models.RunStats
	closed bool

	shutdownOnce sync.Once
}

// NewArbiter 创建并装配仲裁器
func NewArbiter(cfg *Config, mode models.FetchMode, headerProvider models.HeaderProvider) *Arbiter {
	gate := ratelimit.NewGate(ratelimit.Config{
		MinInterval:    cfg.Arbiter.MinInterval(),
		HourlyQuota:    cfg.Arbiter.MaxRequestsPerHour,
		Margin:         cfg.Arbiter.QuotaMargin(),
		HumanizeBase:   cfg.Arbiter.HumanizeBase(),
		PeakStartHour:  cfg.Arbiter.PeakStartHour,
		PeakEndHour:    cfg.Arbiter.PeakEndHour,
		PeakMultiplier: cfg.Arbiter.PeakMultiplier,
	})

	monitor := browser.NewMonitor(browser.MonitorConfig{
		SafetyReserveMemory: int64(cfg.Resource.SafetyReserveMemory) * 1024 * 1024,
		SafetyThreshold:     int64(cfg.Resource.SafetyThreshold) * 1024 * 1024,
		CPULoadThreshold:    cfg.Resource.CPULoadThreshold,
	})
	monitor.StartMonitoring(1 * time.Second)

	sessions := browser.NewSessionManager(cfg.Arbiter.SessionTimeout())
	builder := browser.NewRodBuilder(cfg.Browser, headerProvider, monitor)
	coordinator := browser.NewCoordinator(sessions, builder, cfg.Arbiter.PollInterval())

	pipeline := extract.NewPipeline()
	static := fetch.NewStaticFetcher(time.Duration(cfg.Static.TimeoutMs)*time.Millisecond, headerProvider)
	dynamic := fetch.NewDynamicFetcher(coordinator, sessions,
		time.Duration(cfg.Browser.WaitTime)*time.Second, gate.HumanizeDelay)

	return &Arbiter{
		gate:     gate,
		cache:    cache.NewTTLCache(cfg.Arbiter.CacheTTL(), cfg.Arbiter.CacheMaxEntries),
		fetcher:  fetch.NewFetcher(mode, static, dynamic, pipeline, cfg.Platform),
		sessions: sessions,
		monitor:  monitor,
		retryCfg: retry.Config{MaxAttempts: cfg.Arbiter.MaxRetryAttempts},
	}
}

// Request 处理一次内容请求
//
// 处理顺序: 准入检查 -> 缓存查询 -> 带重试的远端抓取。
// 缓存命中也先经过准入闸门, 保证对外的请求节奏一致
func (a *Arbiter) Request(ctx context.Context, req *models.Request) (*models.FetchResult, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, models.ErrArbiterClosed
	}
	a.stats.TotalRequests++
	a.mu.Unlock()

	if err := req.Validate(); err != nil {
		a.recordFailure()
		return nil, err
	}

	startTime := time.Now()

	// 准入闸门: 配额等待与间隔等待
	if err := a.gate.Wait(ctx); err != nil {
		a.recordFailure()
		return nil, err
	}

	// 缓存查询
	key := req.CacheKey()
	if cached, ok := a.cache.Get(key); ok {
		utils.Infof("📄 缓存命中: %s [%s] 第%d页", req.Kind, req.Target, req.Page)
		a.mu.Lock()
		a.stats.CacheHits++
		a.mu.Unlock()

		hit := *cached
		hit.RequestID = req.ID
		hit.Cached = true
		return &hit, nil
	}

	// 远端抓取 (带重试)
	utils.Infof("🚀 开始抓取: %s [%s] 第%d页", req.Kind, req.Target, req.Page)
	type fetched struct {
		records []models.Record
		mode    models.FetchMode
	}
	result, err := retry.Do(ctx, a.retryCfg, string(req.Kind),
		func(ctx context.Context) (fetched, error) {
			records, mode, ferr := a.fetcher.Fetch(ctx, req)
			return fetched{records: records, mode: mode}, ferr
		})
	if err != nil {
		a.recordFailure()
		return nil, a.mapError(err)
	}

	a.mu.Lock()
	a.stats.RemoteFetches++
	a.stats.TotalRecords += len(result.records)
	if len(result.records) == 0 {
		a.stats.EmptyResults++
	}
	a.mu.Unlock()

	fetchResult := &models.FetchResult{
		RequestID: req.ID,
		Kind:      req.Kind,
		Target:    req.Target,
		Page:      req.Page,
		Records:   result.records,
		Cached:    false,
		FetchMode: result.mode,
		FetchedAt: time.Now(),
		Duration:  time.Since(startTime).Seconds(),
	}

	// 空结果也回填缓存, 避免对无内容页面反复抓取
	a.cache.Set(key, fetchResult)

	utils.Infof("✅ 抓取完成: %s [%s] 提取%d条记录 (%.2f秒)",
		req.Kind, req.Target, len(result.records), fetchResult.Duration)
	return fetchResult, nil
}

// mapError 将重试耗尽的底层错误转换为对外的类型化错误
//
// 会话构造类失败(含等待在途构造失败的观察者)统一呈现为
// 资源不可用, 其余保持重试耗尽错误
func (a *Arbiter) mapError(err error) error {
	var exhausted *models.RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		return err
	}

	var buildErr *browser.BuildError
	if errors.As(exhausted.Last, &buildErr) || errors.Is(exhausted.Last, models.ErrSessionNotReady) {
		return &models.ResourceUnavailableError{Cause: exhausted.Last}
	}
	return err
}

// recordFailure 记录失败请求
func (a *Arbiter) recordFailure() {
	a.mu.Lock()
	a.stats.FailedRequests++
	a.mu.Unlock()
}

// Stats 返回当前运行统计的快照
func (a *Arbiter) Stats() models.RunStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// CacheLen 当前缓存条目数, 仅用于观测
func (a *Arbiter) CacheLen() int {
	return a.cache.Len()
}

// Shutdown 关停仲裁器, 可重复调用
// 拆除浏览器会话并停止资源监控, 之后的请求返回已关闭错误
func (a *Arbiter) Shutdown() {
	a.shutdownOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()

		a.sessions.Shutdown()
		if a.monitor != nil {
			a.monitor.StopMonitoring()
		}
		utils.Infof("仲裁器已关停")
	})
}
