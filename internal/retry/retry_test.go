package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/RecoveryAshes/SocialPeek/internal/models"
)

func noJitter() time.Duration { return 0 }

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	var sleeps []time.Duration
	cfg := Config{
		MaxAttempts: 3,
		Sleep: func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		},
		Jitter: noJitter,
	}

	calls := 0
	result, err := Do(context.Background(), cfg, "fetch", func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %v, want ok", result)
	}
	if calls != 1 {
		t.Errorf("调用次数 = %d, want 1", calls)
	}
	if len(sleeps) != 0 {
		t.Errorf("首次成功不应退避, sleeps = %v", sleeps)
	}
}

func TestDo_SuccessOnThirdAttempt(t *testing.T) {
	var sleeps []time.Duration
	cfg := Config{
		MaxAttempts: 3,
		Sleep: func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		},
		Jitter: noJitter,
	}

	calls := 0
	result, err := Do(context.Background(), cfg, "fetch", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, fmt.Errorf("暂时失败 #%d", calls)
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if result != 42 {
		t.Errorf("result = %d, want 42", result)
	}

	// 两次失败产生两段退避: 2^1*1s 和 2^2*1s
	if len(sleeps) != 2 {
		t.Fatalf("退避次数 = %d, want 2", len(sleeps))
	}
	if sleeps[0] != Backoff(1) {
		t.Errorf("第1段退避 = %v, want %v", sleeps[0], Backoff(1))
	}
	if sleeps[1] != Backoff(2) {
		t.Errorf("第2段退避 = %v, want %v", sleeps[1], Backoff(2))
	}
}

func TestDo_JitterAdded(t *testing.T) {
	var sleeps []time.Duration
	cfg := Config{
		MaxAttempts: 2,
		Sleep: func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		},
		Jitter: func() time.Duration { return 500 * time.Millisecond },
	}

	_, _ = Do(context.Background(), cfg, "fetch", func(ctx context.Context) (int, error) {
		return 0, errors.New("失败")
	})

	if len(sleeps) != 1 {
		t.Fatalf("退避次数 = %d, want 1", len(sleeps))
	}
	want := Backoff(1) + 500*time.Millisecond
	if sleeps[0] != want {
		t.Errorf("退避 = %v, want %v", sleeps[0], want)
	}
}

func TestDo_ExhaustedReturnsTypedError(t *testing.T) {
	cfg := Config{
		MaxAttempts: 3,
		Sleep:       func(_ context.Context, _ time.Duration) error { return nil },
		Jitter:      noJitter,
	}

	lastErr := errors.New("导航超时")
	calls := 0
	_, err := Do(context.Background(), cfg, "fetch", func(ctx context.Context) (int, error) {
		calls++
		return 0, lastErr
	})

	if calls != 3 {
		t.Errorf("调用次数 = %d, want 3", calls)
	}

	var exhausted *models.RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err类型 = %T, want *RetriesExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
	if exhausted.Op != "fetch" {
		t.Errorf("Op = %v, want fetch", exhausted.Op)
	}
	if !errors.Is(err, lastErr) {
		t.Error("应能通过errors.Is找到最后一次底层错误")
	}
}

func TestDo_ContextCanceledNotRetried(t *testing.T) {
	cfg := Config{
		MaxAttempts: 3,
		Sleep:       func(_ context.Context, _ time.Duration) error { return nil },
		Jitter:      noJitter,
	}

	calls := 0
	_, err := Do(context.Background(), cfg, "fetch", func(ctx context.Context) (int, error) {
		calls++
		return 0, context.Canceled
	})

	if calls != 1 {
		t.Errorf("取消错误不应重试, 调用次数 = %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDo_CanceledContextBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := Config{MaxAttempts: 3, Jitter: noJitter,
		Sleep: func(_ context.Context, _ time.Duration) error { return nil }}

	calls := 0
	_, err := Do(ctx, cfg, "fetch", func(ctx context.Context) (int, error) {
		calls++
		return 0, nil
	})

	if calls != 0 {
		t.Errorf("已取消的context不应执行操作, 调用次数 = %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
