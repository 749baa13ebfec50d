// Package retry 提供带指数退避的重试执行器
//
// 退避时长为 2^attempt 秒加上 [0,1) 秒的均匀随机抖动,
// attempt 从 1 开始计数。耗尽全部尝试后返回 RetriesExhaustedError,
// 由调用方决定如何对外呈现
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/RecoveryAshes/SocialPeek/internal/models"
	"github.com/RecoveryAshes/SocialPeek/internal/utils"
)

// baseDelay 退避基数
const baseDelay = 1000 * time.Millisecond

// jitterRange 随机抖动上限
const jitterRange = 1000 * time.Millisecond

// Config 重试配置
type Config struct {
	// MaxAttempts 最大尝试次数 (含首次)
	MaxAttempts int

	// Sleep 可注入等待函数, 为 nil 时使用真实时钟
	Sleep func(ctx context.Context, d time.Duration) error

	// Jitter 可注入抖动函数, 为 nil 时使用均匀随机
	Jitter func() time.Duration
}

// Backoff 第 attempt 次失败后的确定性退避时长 (不含抖动)
func Backoff(attempt int) time.Duration {
	d := baseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Do 执行 op 直到成功或耗尽尝试次数
//
// 每次失败后等待 Backoff(attempt) 加随机抖动再重试,
// 上下文取消会立即中止并返回取消错误
func Do[T any](ctx context.Context, cfg Config, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	jitter := cfg.Jitter
	if jitter == nil {
		jitter = func() time.Duration {
			return time.Duration(rand.Int63n(int64(jitterRange)))
		}
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				utils.Infof("✅ %s 第 %d 次尝试成功", name, attempt)
			}
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err

		if attempt < cfg.MaxAttempts {
			delay := Backoff(attempt) + jitter()
			utils.Warnf("⚠️ %s 第 %d 次尝试失败: %v, %.1f 秒后重试", name, attempt, err, delay.Seconds())
			if serr := sleep(ctx, delay); serr != nil {
				return zero, serr
			}
		}
	}

	return zero, &models.RetriesExhaustedError{
		Op:       name,
		Attempts: cfg.MaxAttempts,
		Last:     lastErr,
	}
}

// sleepContext 可被上下文取消的等待
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
