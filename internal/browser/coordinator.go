package browser

import (
	"context"
	"sync"
	"time"

	"github.com/RecoveryAshes/SocialPeek/internal/models"
	"github.com/RecoveryAshes/SocialPeek/internal/utils"
)

// Coordinator 单例会话协调器
//
// 保证无论多少并发请求到达, 任何时刻至多一个会话构造在途。
// 发现构造在途的请求以固定间隔轮询, 等到会话就绪后直接复用;
// 在途构造失败时, 轮询者返回暂时性的未就绪错误, 交由上层重试
type Coordinator struct {
	manager *SessionManager
	builder Builder

	mu       sync.Mutex
	building bool

	pollInterval time.Duration

	// 可注入等待函数, 便于测试
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCoordinator 创建会话协调器
func NewCoordinator(manager *SessionManager, builder Builder, pollInterval time.Duration) *Coordinator {
	return &Coordinator{
		manager:      manager,
		builder:      builder,
		pollInterval: pollInterval,
		sleep:        sleepContext,
	}
}

// GetOrCreate 取得就绪会话, 必要时构造
//
// 构造标志在协调器锁内检查和设置, 实际构造在锁外进行,
// 轮询者因此不会被在途构造阻塞
func (c *Coordinator) GetOrCreate(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	if s := c.manager.Current(); s != nil {
		c.mu.Unlock()
		return s, nil
	}
	if !c.building {
		c.building = true
		c.mu.Unlock()
		return c.build(ctx)
	}
	c.mu.Unlock()

	return c.poll(ctx)
}

// build 执行实际构造
//
// 构造标志在defer中清除: 构造器panic时标志同样被释放,
// 否则轮询者会永久等待一个不会到来的会话
func (c *Coordinator) build(ctx context.Context) (*Session, error) {
	utils.Infof("🚀 开始构造浏览器会话")

	defer func() {
		c.mu.Lock()
		c.building = false
		c.mu.Unlock()
	}()

	h, err := c.builder.Build(ctx)
	if err != nil {
		utils.Errorf("浏览器会话构造失败: %v", err)
		return nil, &BuildError{Cause: err}
	}
	return c.manager.Store(h), nil
}

// poll 等待在途构造的结果
func (c *Coordinator) poll(ctx context.Context) (*Session, error) {
	utils.Debugf("会话构造在途, 进入轮询等待")
	for {
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}

		c.mu.Lock()
		if s := c.manager.Current(); s != nil {
			c.mu.Unlock()
			return s, nil
		}
		if !c.building {
			// 构造标志已清除但没有会话: 在途构造失败了
			c.mu.Unlock()
			return nil, models.ErrSessionNotReady
		}
		c.mu.Unlock()
	}
}

// Building 当前是否有构造在途, 仅用于观测
func (c *Coordinator) Building() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.building
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
