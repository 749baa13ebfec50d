package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/RecoveryAshes/SocialPeek/internal/extract"
	"github.com/RecoveryAshes/SocialPeek/internal/models"
)

// fakeHTMLFetcher 可编程的抓取路径
type fakeHTMLFetcher struct {
	html  string
	err   error
	calls int
}

func (f *fakeHTMLFetcher) FetchHTML(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.html, nil
}

const recognizableHTML = `
<div class="feed-card">
  <a class="author-name">作者</a>
  <div class="card-content"><p>正文内容</p></div>
</div>`

func testPlatform() models.PlatformConfig {
	return models.PlatformConfig{
		BaseURL:      "https://example.com",
		SearchPath:   "/search?q=%s",
		UserPath:     "/u/%s",
		CommentsPath: "/posts/%s/comments",
	}
}

func testRequest(t *testing.T) *models.Request {
	t.Helper()
	req, err := models.NewRequest(models.KindSearch, "golang", 1)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	return req
}

func TestFetcher_StaticMode(t *testing.T) {
	static := &fakeHTMLFetcher{html: recognizableHTML}
	dynamic := &fakeHTMLFetcher{html: recognizableHTML}
	f := NewFetcher(models.ModeStatic, static, dynamic, extract.NewPipeline(), testPlatform())

	records, mode, err := f.Fetch(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if mode != models.ModeStatic {
		t.Errorf("mode = %v, want static", mode)
	}
	if len(records) != 1 {
		t.Errorf("记录数 = %d, want 1", len(records))
	}
	if dynamic.calls != 0 {
		t.Errorf("static模式不应触发动态路径, calls = %d", dynamic.calls)
	}
}

func TestFetcher_DynamicMode(t *testing.T) {
	static := &fakeHTMLFetcher{html: recognizableHTML}
	dynamic := &fakeHTMLFetcher{html: recognizableHTML}
	f := NewFetcher(models.ModeDynamic, static, dynamic, extract.NewPipeline(), testPlatform())

	_, mode, err := f.Fetch(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if mode != models.ModeDynamic {
		t.Errorf("mode = %v, want dynamic", mode)
	}
	if static.calls != 0 {
		t.Errorf("dynamic模式不应触发静态路径, calls = %d", static.calls)
	}
}

func TestFetcher_AutoStaticSufficient(t *testing.T) {
	static := &fakeHTMLFetcher{html: recognizableHTML}
	dynamic := &fakeHTMLFetcher{html: recognizableHTML}
	f := NewFetcher(models.ModeAuto, static, dynamic, extract.NewPipeline(), testPlatform())

	records, mode, err := f.Fetch(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if mode != models.ModeStatic {
		t.Errorf("mode = %v, want static", mode)
	}
	if len(records) == 0 {
		t.Error("静态路径应产出记录")
	}
	if dynamic.calls != 0 {
		t.Errorf("静态路径已有结果, 不应回退, dynamic.calls = %d", dynamic.calls)
	}
}

func TestFetcher_AutoFallsBackOnEmpty(t *testing.T) {
	// 静态路径抓到HTML但无可识别内容
	static := &fakeHTMLFetcher{html: "<html><body>客户端渲染占位</body></html>"}
	dynamic := &fakeHTMLFetcher{html: recognizableHTML}
	f := NewFetcher(models.ModeAuto, static, dynamic, extract.NewPipeline(), testPlatform())

	records, mode, err := f.Fetch(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if mode != models.ModeDynamic {
		t.Errorf("mode = %v, want dynamic", mode)
	}
	if len(records) != 1 {
		t.Errorf("记录数 = %d, want 1", len(records))
	}
	if static.calls != 1 || dynamic.calls != 1 {
		t.Errorf("调用次数 static=%d dynamic=%d, want 1/1", static.calls, dynamic.calls)
	}
}

func TestFetcher_AutoFallsBackOnStaticError(t *testing.T) {
	static := &fakeHTMLFetcher{err: models.NewTransientError("static_fetch", errors.New("超时"))}
	dynamic := &fakeHTMLFetcher{html: recognizableHTML}
	f := NewFetcher(models.ModeAuto, static, dynamic, extract.NewPipeline(), testPlatform())

	records, mode, err := f.Fetch(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if mode != models.ModeDynamic {
		t.Errorf("mode = %v, want dynamic", mode)
	}
	if len(records) != 1 {
		t.Errorf("记录数 = %d, want 1", len(records))
	}
}

func TestFetcher_DynamicErrorPropagates(t *testing.T) {
	dynamic := &fakeHTMLFetcher{err: models.NewTransientError("navigate", errors.New("导航失败"))}
	f := NewFetcher(models.ModeDynamic, &fakeHTMLFetcher{}, dynamic, extract.NewPipeline(), testPlatform())

	_, _, err := f.Fetch(context.Background(), testRequest(t))
	if !models.IsTransient(err) {
		t.Errorf("err = %v, 应为暂时性错误", err)
	}
}
