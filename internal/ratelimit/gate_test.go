package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fakeClock 可手动推进的测试时钟
// Gate睡眠时直接把时钟拨快对应时长
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (fc *fakeClock) Now() time.Time {
	return fc.now
}

func (fc *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	fc.sleeps = append(fc.sleeps, d)
	fc.now = fc.now.Add(d)
	return nil
}

func (fc *fakeClock) Advance(d time.Duration) {
	fc.now = fc.now.Add(d)
}

func newTestGate(cfg Config, fc *fakeClock) *Gate {
	g := NewGate(cfg)
	g.now = fc.Now
	g.sleep = fc.Sleep
	return g
}

func TestGate_FirstRequestNoWait(t *testing.T) {
	fc := newFakeClock()
	g := newTestGate(Config{MinInterval: 10 * time.Second, HourlyQuota: 20}, fc)

	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(fc.sleeps) != 0 {
		t.Errorf("首次请求不应等待, 实际等待次数 = %d", len(fc.sleeps))
	}
	if g.WindowCount() != 1 {
		t.Errorf("WindowCount() = %d, want 1", g.WindowCount())
	}
}

func TestGate_MinIntervalEnforced(t *testing.T) {
	fc := newFakeClock()
	g := newTestGate(Config{MinInterval: 10 * time.Second, HourlyQuota: 20}, fc)

	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	// 3秒后的第二次请求应等待剩余7秒
	fc.Advance(3 * time.Second)
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if len(fc.sleeps) != 1 {
		t.Fatalf("等待次数 = %d, want 1", len(fc.sleeps))
	}
	if fc.sleeps[0] != 7*time.Second {
		t.Errorf("间隔等待 = %v, want 7s", fc.sleeps[0])
	}
}

func TestGate_IntervalElapsedNoWait(t *testing.T) {
	fc := newFakeClock()
	g := newTestGate(Config{MinInterval: 10 * time.Second, HourlyQuota: 20}, fc)

	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	fc.Advance(15 * time.Second)
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if len(fc.sleeps) != 0 {
		t.Errorf("间隔已满足时不应等待, 实际等待 = %v", fc.sleeps)
	}
}

// 配额2, 间隔30秒, 连续3次请求: 第3次必须等到最旧时间戳滑出窗口
func TestGate_QuotaExhaustedWaitsForWindow(t *testing.T) {
	fc := newFakeClock()
	margin := 1 * time.Second
	g := newTestGate(Config{MinInterval: 30 * time.Second, HourlyQuota: 2, Margin: margin}, fc)

	firstAt := fc.now
	for i := 0; i < 2; i++ {
		if err := g.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() #%d error = %v", i+1, err)
		}
		fc.Advance(30 * time.Second)
	}
	if g.WindowCount() != 2 {
		t.Fatalf("WindowCount() = %d, want 2", g.WindowCount())
	}

	sleepsBefore := len(fc.sleeps)
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() #3 error = %v", err)
	}

	if len(fc.sleeps) == sleepsBefore {
		t.Fatal("配额已满时第3次请求应等待")
	}

	// 放行时刻不能早于 最旧时间戳+窗口+余量
	earliest := firstAt.Add(Window).Add(margin)
	if fc.now.Before(earliest) {
		t.Errorf("放行时刻 = %v, 不应早于 %v", fc.now, earliest)
	}

	// 放行后窗口内不超过配额
	if got := g.WindowCount(); got > 2 {
		t.Errorf("放行后 WindowCount() = %d, 超过配额2", got)
	}
}

func TestGate_QuotaWaitAndIntervalWaitAccumulate(t *testing.T) {
	fc := newFakeClock()
	g := newTestGate(Config{MinInterval: 10 * time.Second, HourlyQuota: 1}, fc)

	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	// 第二次请求先等满窗口(配额1), 窗口等待已覆盖最小间隔,
	// 不应再追加间隔等待
	var total time.Duration
	for _, d := range fc.sleeps {
		total += d
	}
	if total < Window {
		t.Errorf("总等待 = %v, 应不小于窗口长度 %v", total, Window)
	}
}

func TestGate_ContextCanceled(t *testing.T) {
	fc := newFakeClock()
	g := newTestGate(Config{MinInterval: 10 * time.Second, HourlyQuota: 20}, fc)

	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	// 需要等待时取消context
	g.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}
	fc.Advance(1 * time.Second)
	if err := g.Wait(context.Background()); err != context.Canceled {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestGate_PruneExpiredTimestamps(t *testing.T) {
	fc := newFakeClock()
	g := newTestGate(Config{MinInterval: 0, HourlyQuota: 20}, fc)

	for i := 0; i < 3; i++ {
		if err := g.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		fc.Advance(time.Minute)
	}
	if g.WindowCount() != 3 {
		t.Fatalf("WindowCount() = %d, want 3", g.WindowCount())
	}

	// 时钟越过窗口, 所有时间戳都应被剪除
	fc.Advance(Window)
	if g.WindowCount() != 0 {
		t.Errorf("窗口滑过后 WindowCount() = %d, want 0", g.WindowCount())
	}
}

func TestGate_HumanizeDelay(t *testing.T) {
	tests := []struct {
		name string
		hour int
		want time.Duration
	}{
		{"非高峰时段", 10, 2 * time.Second},
		{"高峰起始小时", 19, 4 * time.Second},
		{"高峰中段", 21, 4 * time.Second},
		{"高峰结束小时", 23, 4 * time.Second},
		{"高峰后", 0, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeClock()
			fc.now = time.Date(2025, 6, 1, tt.hour, 30, 0, 0, time.UTC)
			g := newTestGate(Config{
				HourlyQuota:    20,
				HumanizeBase:   2 * time.Second,
				PeakStartHour:  19,
				PeakEndHour:    23,
				PeakMultiplier: 2.0,
			}, fc)

			if got := g.HumanizeDelay(); got != tt.want {
				t.Errorf("HumanizeDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGate_HumanizeDelayZeroBase(t *testing.T) {
	fc := newFakeClock()
	g := newTestGate(Config{HourlyQuota: 20}, fc)
	if got := g.HumanizeDelay(); got != 0 {
		t.Errorf("HumanizeDelay() = %v, want 0", got)
	}
}
