package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/RecoveryAshes/SocialPeek/internal/models"
	"github.com/RecoveryAshes/SocialPeek/internal/utils"
)

// RodBuilder 基于rod的生产会话构造器
type RodBuilder struct {
	config         models.BrowserConfig
	headerProvider models.HeaderProvider
	monitor        *Monitor
}

// NewRodBuilder 创建rod会话构造器
// monitor 可为nil, 此时跳过资源检查
func NewRodBuilder(config models.BrowserConfig, headerProvider models.HeaderProvider, monitor *Monitor) *RodBuilder {
	return &RodBuilder{
		config:         config,
		headerProvider: headerProvider,
		monitor:        monitor,
	}
}

// Build 启动浏览器并连接
func (b *RodBuilder) Build(ctx context.Context) (Handle, error) {
	// 构造前资源检查, 资源不足直接拒绝而不是让系统陷入卡顿
	if b.monitor != nil {
		if canCreate, reason := b.monitor.CheckAvailability(); !canCreate {
			return nil, fmt.Errorf("系统资源不足, 拒绝构造浏览器会话: %s", reason)
		}
	}

	l := launcher.New().Headless(b.config.Headless)

	// 允许访问自签名、过期或主机名不匹配的HTTPS站点
	l = l.Set("ignore-certificate-errors")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	return &rodHandle{
		browser:        browser,
		config:         b.config,
		headerProvider: b.headerProvider,
	}, nil
}

// rodHandle rod浏览器会话句柄
type rodHandle struct {
	browser        *rod.Browser
	config         models.BrowserConfig
	headerProvider models.HeaderProvider
}

// Alive 通过CDP版本查询探测连接存活性
func (h *rodHandle) Alive() bool {
	_, err := proto.BrowserGetVersion{}.Call(h.browser)
	return err == nil
}

// FetchHTML 在新标签页中加载目标URL并返回渲染后的HTML
func (h *rodHandle) FetchHTML(ctx context.Context, pageURL string, extraWait time.Duration) (html string, err error) {
	// rod操作panic转换为暂时性错误, 交由上层重试
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("页面操作panic: URL=%s, 错误=%v", pageURL, r)
			err = models.NewTransientError("page_fetch", fmt.Errorf("页面操作panic: %v", r))
		}
	}()

	page, err := h.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", models.NewTransientError("page_create", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			utils.Debugf("关闭标签页失败: %v", closeErr)
		}
	}()

	page = page.Context(ctx).Timeout(h.config.NavTimeout())

	// 应用自定义HTTP头部(含Cookie), 通过请求劫持注入
	if err := h.setupHeaderIntercept(page); err != nil {
		utils.Warnf("设置头部注入失败 [%s]: %v", pageURL, err)
	}

	if err := page.Navigate(pageURL); err != nil {
		return "", models.NewTransientError("navigate", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", models.NewTransientError("wait_load", err)
	}

	// 额外等待时间(等待动态内容渲染)
	if extraWait > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(extraWait):
		}
	}

	html, err = page.HTML()
	if err != nil {
		return "", models.NewTransientError("page_html", err)
	}
	utils.Debugf("页面加载完成: %s (%d bytes)", pageURL, len(html))
	return html, nil
}

// setupHeaderIntercept 设置请求劫持, 为每个请求注入自定义头部
func (h *rodHandle) setupHeaderIntercept(page *rod.Page) error {
	if h.headerProvider == nil {
		return nil
	}
	headers, err := h.headerProvider.GetHeaders()
	if err != nil {
		return fmt.Errorf("获取HTTP头部失败: %w", err)
	}
	if len(headers) == 0 {
		return nil
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(hj *rod.Hijack) {
		for name, values := range headers {
			if len(values) > 0 {
				hj.Request.Req().Header.Set(name, values[0])
			}
		}
		// 让浏览器继续处理请求(不拦截,只注入头部)
		hj.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return nil
}

// Close 关闭浏览器
func (h *rodHandle) Close() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("关闭浏览器panic: %v", r)
		}
	}()
	return h.browser.Close()
}
