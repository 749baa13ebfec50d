package main

import (
	"fmt"

	"github.com/RecoveryAshes/SocialPeek/internal/models"
)

// ValidateFlags 验证命令行标志
func ValidateFlags(kind string, target string, page int, waitTime int, retries int, mode string, queryFile string) error {
	// 批量模式下单请求参数不参与校验
	if queryFile != "" {
		return nil
	}

	// 验证请求类型
	if !models.ValidKinds[models.RequestKind(kind)] {
		return fmt.Errorf("无效的请求类型: %s (有效值: search, user_posts, post_comments)", kind)
	}

	// 验证目标
	if target == "" {
		return fmt.Errorf("请求目标不能为空")
	}

	// 验证页码
	if page < 1 || page > 100 {
		return fmt.Errorf("页码必须在1-100之间,当前值: %d", page)
	}

	// 验证等待时间
	if waitTime < 0 || waitTime > 60 {
		return fmt.Errorf("等待时间必须在0-60秒之间,当前值: %d", waitTime)
	}

	// 验证重试次数
	if retries < 1 || retries > 10 {
		return fmt.Errorf("重试次数必须在1-10之间,当前值: %d", retries)
	}

	// 验证模式
	validModes := map[string]bool{
		"auto":    true,
		"static":  true,
		"dynamic": true,
	}
	if !validModes[mode] {
		return fmt.Errorf("无效的抓取模式: %s (有效值: auto, static, dynamic)", mode)
	}

	return nil
}
