package fetch

import (
	"context"
	"time"

	"github.com/RecoveryAshes/SocialPeek/internal/browser"
	"github.com/RecoveryAshes/SocialPeek/internal/utils"
)

// DynamicFetcher 动态抓取器(使用共享浏览器会话)
// 执行页面JavaScript, 适用于客户端渲染的版式
type DynamicFetcher struct {
	coordinator *browser.Coordinator
	manager     *browser.SessionManager
	waitTime    time.Duration

	// humanize 返回页面加载后的拟人化附加延迟, 可为nil
	humanize func() time.Duration
}

// NewDynamicFetcher 创建动态抓取器
func NewDynamicFetcher(coordinator *browser.Coordinator, manager *browser.SessionManager, waitTime time.Duration, humanize func() time.Duration) *DynamicFetcher {
	return &DynamicFetcher{
		coordinator: coordinator,
		manager:     manager,
		waitTime:    waitTime,
		humanize:    humanize,
	}
}

// FetchHTML 通过浏览器会话抓取渲染后的HTML
//
// 会话由协调器按需构造和复用; 抓取失败且会话探测已死时
// 拆除会话, 下一次抓取触发重新构造
func (df *DynamicFetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	session, err := df.coordinator.GetOrCreate(ctx)
	if err != nil {
		return "", err
	}

	extraWait := df.waitTime
	if df.humanize != nil {
		extraWait += df.humanize()
	}

	html, err := session.Handle.FetchHTML(ctx, pageURL, extraWait)
	if err != nil {
		if !session.Handle.Alive() {
			utils.Warnf("抓取失败且会话已死, 拆除会话: %v", err)
			df.manager.Invalidate()
		}
		return "", err
	}
	return html, nil
}
