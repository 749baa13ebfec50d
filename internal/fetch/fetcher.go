// Package fetch 提供静态和动态两种抓取路径及其调度
//
// 静态路径用Colly直接请求HTML, 动态路径复用共享浏览器会话。
// auto模式先走静态路径, 提取结果为空时回退到动态路径
package fetch

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/SocialPeek/internal/extract"
	"github.com/RecoveryAshes/SocialPeek/internal/models"
	"github.com/RecoveryAshes/SocialPeek/internal/utils"
)

// HTMLFetcher 单一抓取路径
type HTMLFetcher interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

// Fetcher 抓取调度器, 按模式选择抓取路径并提取记录
type Fetcher struct {
	mode     models.FetchMode
	static   HTMLFetcher
	dynamic  HTMLFetcher
	pipeline *extract.Pipeline
	platform models.PlatformConfig
}

// NewFetcher 创建抓取调度器
func NewFetcher(mode models.FetchMode, static, dynamic HTMLFetcher, pipeline *extract.Pipeline, platform models.PlatformConfig) *Fetcher {
	return &Fetcher{
		mode:     mode,
		static:   static,
		dynamic:  dynamic,
		pipeline: pipeline,
		platform: platform,
	}
}

// Fetch 抓取请求对应的页面并提取记录
// 返回提取到的记录和实际使用的抓取模式
func (f *Fetcher) Fetch(ctx context.Context, req *models.Request) ([]models.Record, models.FetchMode, error) {
	pageURL, err := f.platform.BuildURL(req)
	if err != nil {
		return nil, f.mode, fmt.Errorf("构造目标URL失败: %w", err)
	}

	switch f.mode {
	case models.ModeStatic:
		records, err := f.fetchWith(ctx, f.static, pageURL)
		return records, models.ModeStatic, err

	case models.ModeDynamic:
		records, err := f.fetchWith(ctx, f.dynamic, pageURL)
		return records, models.ModeDynamic, err

	default:
		// auto: 静态优先, 提取为空时回退到浏览器
		records, err := f.fetchWith(ctx, f.static, pageURL)
		if err == nil && len(records) > 0 {
			return records, models.ModeStatic, nil
		}
		if err != nil {
			utils.Debugf("静态路径失败, 回退到动态路径: %v", err)
		} else {
			utils.Debugf("静态路径无可识别内容, 回退到动态路径")
		}
		records, err = f.fetchWith(ctx, f.dynamic, pageURL)
		return records, models.ModeDynamic, err
	}
}

func (f *Fetcher) fetchWith(ctx context.Context, fetcher HTMLFetcher, pageURL string) ([]models.Record, error) {
	html, err := fetcher.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return f.pipeline.Extract(html), nil
}
