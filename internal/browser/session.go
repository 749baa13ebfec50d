// Package browser 管理共享浏览器会话的生命周期
//
// 会话状态流转: 不存在 -> 构造中 -> 就绪 -> 过期/失效 -> 不存在。
// 存活性在取用时惰性检查, 不依赖后台巡检协程; 过期或失效的会话
// 在取用路径上被拆除, 由协调器负责重新构造
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RecoveryAshes/SocialPeek/internal/utils"
)

// Handle 浏览器会话句柄
// 生产实现基于rod, 测试使用内存假实现
type Handle interface {
	// Alive 探测会话底层连接是否仍然可用
	Alive() bool

	// FetchHTML 导航到目标URL并返回渲染后的页面HTML
	// extraWait 为页面加载完成后的额外等待时长
	FetchHTML(ctx context.Context, url string, extraWait time.Duration) (string, error)

	// Close 关闭会话底层资源
	Close() error
}

// Builder 会话构造器
type Builder interface {
	Build(ctx context.Context) (Handle, error)
}

// BuildError 会话构造失败
// 重试耗尽后由仲裁器转换为资源不可用错误
type BuildError struct {
	Cause error
}

// Error 实现error接口
func (e *BuildError) Error() string {
	return fmt.Sprintf("浏览器会话构造失败: %v", e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Session 一个就绪的浏览器会话
type Session struct {
	ID         string
	Handle     Handle
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// SessionManager 单会话生命周期管理器
type SessionManager struct {
	mu      sync.Mutex
	session *Session
	timeout time.Duration

	// 可注入时钟, 便于测试
	now func() time.Time
}

// NewSessionManager 创建会话管理器
// timeout 为会话自最近一次使用起的存活期
func NewSessionManager(timeout time.Duration) *SessionManager {
	return &SessionManager{
		timeout: timeout,
		now:     time.Now,
	}
}

// Current 取用当前会话
//
// 执行惰性检查: 超过存活期的会话按过期拆除, 存活性探测失败的
// 会话按失效拆除, 两种情况均返回nil表示需要重新构造
func (sm *SessionManager) Current() *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.session == nil {
		return nil
	}

	now := sm.now()
	if now.Sub(sm.session.LastUsedAt) >= sm.timeout {
		utils.Infof("浏览器会话已过期 (闲置超过 %.0f 分钟), 拆除", sm.timeout.Minutes())
		sm.teardownLocked()
		return nil
	}
	if !sm.session.Handle.Alive() {
		utils.Warnf("浏览器会话存活性检查失败, 拆除")
		sm.teardownLocked()
		return nil
	}

	sm.session.LastUsedAt = now
	return sm.session
}

// Store 登记新构造的会话并返回它
func (sm *SessionManager) Store(h Handle) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	// 旧会话若仍存在则先拆除, 保证任何时刻至多一个会话
	if sm.session != nil {
		sm.teardownLocked()
	}

	now := sm.now()
	sm.session = &Session{
		ID:         uuid.New().String(),
		Handle:     h,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	utils.Infof("✅ 浏览器会话已就绪: %s", sm.session.ID[:8])
	return sm.session
}

// Invalidate 主动拆除当前会话 (操作中途发现会话失效时调用)
func (sm *SessionManager) Invalidate() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.session != nil {
		utils.Warnf("浏览器会话被标记为失效, 拆除")
		sm.teardownLocked()
	}
}

// Shutdown 关停管理器并拆除会话, 可重复调用
func (sm *SessionManager) Shutdown() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.teardownLocked()
}

// teardownLocked 尽力而为地关闭会话底层资源
// 关闭失败只记录日志, 不向上传播。调用方必须持有 sm.mu
func (sm *SessionManager) teardownLocked() {
	if sm.session == nil {
		return
	}
	if err := sm.session.Handle.Close(); err != nil {
		utils.Warnf("关闭浏览器会话失败 [%s]: %v", sm.session.ID[:8], err)
	} else {
		utils.Debugf("浏览器会话已关闭: %s", sm.session.ID[:8])
	}
	sm.session = nil
}
