// Package ratelimit 实现出站请求的准入控制
//
// Gate在每次远端操作前调用,只延迟,从不拒绝。两条约束顺序评估:
// 先检查滚动1小时窗口的配额,再检查最小请求间隔,等待时间相加,
// 确保突发场景下任何一条约束都不被突破。
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/RecoveryAshes/SocialPeek/internal/utils"
)

// Window 滚动配额窗口长度
const Window = time.Hour

// Config 准入门配置
type Config struct {
	MinInterval time.Duration // 最小请求间隔
	HourlyQuota int           // 每小时请求配额
	Margin      time.Duration // 配额窗口等待余量

	// 拟人化延迟 (策略旋钮,不是准入约束)
	HumanizeBase   time.Duration // 基础延迟
	PeakStartHour  int           // 高峰起始小时 (含)
	PeakEndHour    int           // 高峰结束小时 (含)
	PeakMultiplier float64       // 高峰倍率
}

// Gate 准入门
// 维护进程级共享的准入状态: 上次请求时间和滚动窗口内的请求时间序列
type Gate struct {
	cfg Config

	mu            sync.Mutex
	lastRequestAt time.Time
	recent        []time.Time // 窗口内请求时间,按插入顺序单调不减

	// 时钟与睡眠注入点 (测试用)
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewGate 创建准入门
func NewGate(cfg Config) *Gate {
	return &Gate{
		cfg:   cfg,
		now:   time.Now,
		sleep: sleepContext,
	}
}

// sleepContext 可被context取消的睡眠
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait 等待直到允许发起下一次出站请求
// 只延迟不拒绝,唯一的错误来源是context取消
//
// 执行流程:
//  1. 剪除窗口外的时间戳
//  2. 配额已满时等待 窗口长度-(now-最旧时间戳)+余量
//  3. 距上次请求不足最小间隔时等待剩余间隔
//  4. 重新读取当前时间并记录
func (g *Gate) Wait(ctx context.Context) error {
	// 配额检查先于间隔检查,两段等待自然相加。
	// 睡眠期间其他调用者可能放行并插入新的时间戳,醒来后必须
	// 重新检查两条约束,只有两条同时满足才持锁记录本次放行,
	// 保证任何时刻窗口内数量都不超过配额
	for {
		g.mu.Lock()
		now := g.now()
		g.prune(now)

		if len(g.recent) >= g.cfg.HourlyQuota {
			oldest := g.recent[0]
			quotaWait := Window - now.Sub(oldest) + g.cfg.Margin
			g.mu.Unlock()
			utils.Warnf("⏳ 已达每小时配额(%d), 等待 %.1f 秒", g.cfg.HourlyQuota, quotaWait.Seconds())
			if err := g.sleep(ctx, quotaWait); err != nil {
				return err
			}
			continue
		}

		if !g.lastRequestAt.IsZero() {
			if elapsed := now.Sub(g.lastRequestAt); elapsed < g.cfg.MinInterval {
				intervalWait := g.cfg.MinInterval - elapsed
				g.mu.Unlock()
				utils.Debugf("等待最小请求间隔: %.1f 秒", intervalWait.Seconds())
				if err := g.sleep(ctx, intervalWait); err != nil {
					return err
				}
				continue
			}
		}

		g.lastRequestAt = now
		g.recent = append(g.recent, now)
		g.mu.Unlock()
		return nil
	}
}

// prune 剪除窗口之外的时间戳,调用方必须持有g.mu
func (g *Gate) prune(now time.Time) {
	cutoff := now.Add(-Window)
	idx := 0
	for idx < len(g.recent) && !g.recent[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		g.recent = append(g.recent[:0], g.recent[idx:]...)
	}
}

// WindowCount 返回剪除后窗口内的时间戳数量
func (g *Gate) WindowCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune(g.now())
	return len(g.recent)
}

// HumanizeDelay 返回当前时段的拟人化延迟
// 高峰时段按倍率放大基础延迟,由抓取方在页面加载后自愿应用,
// 不参与准入正确性保证
func (g *Gate) HumanizeDelay() time.Duration {
	base := g.cfg.HumanizeBase
	if base <= 0 {
		return 0
	}
	hour := g.now().Hour()
	if hour >= g.cfg.PeakStartHour && hour <= g.cfg.PeakEndHour && g.cfg.PeakMultiplier > 1.0 {
		return time.Duration(float64(base) * g.cfg.PeakMultiplier)
	}
	return base
}
