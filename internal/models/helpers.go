package models

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// ValidateURL 校验抓取目标地址
// 仅接受带主机名的 http/https 绝对 URL
func ValidateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// generateID 为请求和记录生成唯一标识
func generateID() string {
	return uuid.NewString()
}
