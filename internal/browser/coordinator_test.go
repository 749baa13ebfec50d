package browser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RecoveryAshes/SocialPeek/internal/models"
)

// fakeBuilder 可编程的会话构造器
type fakeBuilder struct {
	mu       sync.Mutex
	builds   int32
	buildErr error
	delay    time.Duration
	handles  []*fakeHandle
}

func (fb *fakeBuilder) Build(ctx context.Context) (Handle, error) {
	atomic.AddInt32(&fb.builds, 1)
	if fb.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(fb.delay):
		}
	}
	if fb.buildErr != nil {
		return nil, fb.buildErr
	}
	h := newFakeHandle()
	fb.mu.Lock()
	fb.handles = append(fb.handles, h)
	fb.mu.Unlock()
	return h, nil
}

func (fb *fakeBuilder) buildCount() int {
	return int(atomic.LoadInt32(&fb.builds))
}

func TestCoordinator_BuildsOnce(t *testing.T) {
	sm := NewSessionManager(30 * time.Minute)
	fb := &fakeBuilder{}
	c := NewCoordinator(sm, fb, 10*time.Millisecond)

	s, err := c.GetOrCreate(context.Background())
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if s == nil {
		t.Fatal("应返回就绪会话")
	}
	if fb.buildCount() != 1 {
		t.Errorf("构造次数 = %d, want 1", fb.buildCount())
	}

	// 就绪会话被后续调用复用
	s2, err := c.GetOrCreate(context.Background())
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if s2.ID != s.ID {
		t.Error("后续调用应复用同一会话")
	}
	if fb.buildCount() != 1 {
		t.Errorf("构造次数 = %d, want 1", fb.buildCount())
	}
}

// 并发请求同时到达, 任何时刻至多一个构造在途,
// 全部调用者最终拿到同一个会话
func TestCoordinator_ConcurrentCallersSingleBuild(t *testing.T) {
	sm := NewSessionManager(30 * time.Minute)
	fb := &fakeBuilder{delay: 50 * time.Millisecond}
	c := NewCoordinator(sm, fb, 5*time.Millisecond)

	const callers = 8
	var wg sync.WaitGroup
	ids := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			s, err := c.GetOrCreate(context.Background())
			if err != nil {
				errs[idx] = err
				return
			}
			ids[idx] = s.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("调用者%d错误 = %v", i, errs[i])
		}
	}
	if fb.buildCount() != 1 {
		t.Errorf("构造次数 = %d, want 1", fb.buildCount())
	}
	for i := 1; i < callers; i++ {
		if ids[i] != ids[0] {
			t.Errorf("调用者%d会话ID = %v, 与调用者0不一致 (%v)", i, ids[i], ids[0])
		}
	}
}

func TestCoordinator_BuildFailureReturnsTypedError(t *testing.T) {
	sm := NewSessionManager(30 * time.Minute)
	cause := errors.New("浏览器启动失败")
	fb := &fakeBuilder{buildErr: cause}
	c := NewCoordinator(sm, fb, 10*time.Millisecond)

	_, err := c.GetOrCreate(context.Background())
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("err类型 = %T, want *BuildError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("应能通过errors.Is找到底层错误")
	}
	if c.Building() {
		t.Error("构造失败后构造标志应被清除")
	}
}

// 在途构造失败时, 轮询等待者返回暂时性的未就绪错误
func TestCoordinator_PollerSeesInFlightFailure(t *testing.T) {
	sm := NewSessionManager(30 * time.Minute)
	fb := &fakeBuilder{buildErr: errors.New("启动失败"), delay: 50 * time.Millisecond}
	c := NewCoordinator(sm, fb, 5*time.Millisecond)

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := c.GetOrCreate(context.Background())
			results[idx] = err
		}(i)
	}
	wg.Wait()

	var builders, pollers int
	for _, err := range results {
		var buildErr *BuildError
		switch {
		case errors.As(err, &buildErr):
			builders++
		case errors.Is(err, models.ErrSessionNotReady):
			pollers++
		default:
			t.Errorf("意外错误: %v", err)
		}
	}
	if builders != 1 {
		t.Errorf("构造者数量 = %d, want 1", builders)
	}
	if pollers != 3 {
		t.Errorf("轮询者数量 = %d, want 3", pollers)
	}
}

// panicBuilder 构造过程中崩溃的构造器
type panicBuilder struct{}

func (panicBuilder) Build(ctx context.Context) (Handle, error) {
	panic("浏览器进程启动崩溃")
}

// 构造器panic时构造标志必须被释放, 否则后续调用者
// 全部陷入轮询循环, 会话在进程生命期内再也无法重建
func TestCoordinator_BuilderPanicReleasesFlag(t *testing.T) {
	sm := NewSessionManager(30 * time.Minute)
	c := NewCoordinator(sm, panicBuilder{}, 5*time.Millisecond)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("构造器panic应向上传播")
			}
		}()
		_, _ = c.GetOrCreate(context.Background())
	}()

	if c.Building() {
		t.Fatal("构造器panic后构造标志应被清除")
	}

	// 标志已释放, 下一次取用重新进入构造路径 (再次panic),
	// 而不是被困在轮询等待直到上下文超时
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	panicked := false
	func() {
		defer func() {
			if recover() != nil {
				panicked = true
			}
		}()
		_, err := c.GetOrCreate(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			t.Error("后续调用者不应耗尽上下文等待")
		}
	}()
	if !panicked {
		t.Fatal("第二次取用应重新进入构造")
	}
}

func TestCoordinator_RebuildsAfterInvalidate(t *testing.T) {
	sm := NewSessionManager(30 * time.Minute)
	fb := &fakeBuilder{}
	c := NewCoordinator(sm, fb, 10*time.Millisecond)

	first, err := c.GetOrCreate(context.Background())
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	// 会话失效后下一次取用触发重新构造
	sm.Invalidate()
	second, err := c.GetOrCreate(context.Background())
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if second.ID == first.ID {
		t.Error("失效后应构造新会话")
	}
	if fb.buildCount() != 2 {
		t.Errorf("构造次数 = %d, want 2", fb.buildCount())
	}
}

func TestCoordinator_RebuildsWhenHandleDies(t *testing.T) {
	sm := NewSessionManager(30 * time.Minute)
	fb := &fakeBuilder{}
	c := NewCoordinator(sm, fb, 10*time.Millisecond)

	if _, err := c.GetOrCreate(context.Background()); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	// 底层连接死亡, 惰性检查在取用路径上发现并重建
	fb.mu.Lock()
	fb.handles[0].kill()
	fb.mu.Unlock()

	s, err := c.GetOrCreate(context.Background())
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if s == nil || !s.Handle.Alive() {
		t.Error("重建后的会话应存活")
	}
	if fb.buildCount() != 2 {
		t.Errorf("构造次数 = %d, want 2", fb.buildCount())
	}
}

func TestCoordinator_ContextCanceledDuringPoll(t *testing.T) {
	sm := NewSessionManager(30 * time.Minute)
	fb := &fakeBuilder{delay: 200 * time.Millisecond}
	c := NewCoordinator(sm, fb, 5*time.Millisecond)

	// 占住构造标志
	go func() { _, _ = c.GetOrCreate(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.GetOrCreate(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}
