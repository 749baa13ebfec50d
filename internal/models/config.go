package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ArbiterConfig 资源仲裁配置
// 进程启动时加载一次,运行期间不变
type ArbiterConfig struct {
	MinIntervalMs      int     `json:"min_interval_ms" mapstructure:"min_interval_ms"`             // 最小请求间隔(毫秒) (默认:10000)
	MaxRequestsPerHour int     `json:"max_requests_per_hour" mapstructure:"max_requests_per_hour"` // 每小时请求配额 (默认:20)
	QuotaMarginMs      int     `json:"quota_margin_ms" mapstructure:"quota_margin_ms"`             // 配额窗口等待余量(毫秒) (默认:1000)
	CacheTTLMs         int     `json:"cache_ttl_ms" mapstructure:"cache_ttl_ms"`                   // 缓存TTL(毫秒) (默认:1800000)
	CacheMaxEntries    int     `json:"cache_max_entries" mapstructure:"cache_max_entries"`         // 缓存容量上限 (0=不限)
	SessionTimeoutMs   int     `json:"session_timeout_ms" mapstructure:"session_timeout_ms"`       // 会话闲置超时(毫秒) (默认:1800000)
	MaxRetryAttempts   int     `json:"max_retry_attempts" mapstructure:"max_retry_attempts"`       // 最大重试次数 (默认:3)
	PollIntervalMs     int     `json:"poll_interval_ms" mapstructure:"poll_interval_ms"`           // 构造等待轮询间隔(毫秒) (默认:100)
	HumanizeBaseMs     int     `json:"humanize_base_ms" mapstructure:"humanize_base_ms"`           // 拟人化基础延迟(毫秒) (默认:2000)
	PeakStartHour      int     `json:"peak_start_hour" mapstructure:"peak_start_hour"`             // 高峰时段起始小时 (默认:19)
	PeakEndHour        int     `json:"peak_end_hour" mapstructure:"peak_end_hour"`                 // 高峰时段结束小时 (默认:23)
	PeakMultiplier     float64 `json:"peak_multiplier" mapstructure:"peak_multiplier"`             // 高峰时段延迟倍率 (默认:2.0)
}

// Validate 验证配置
func (c *ArbiterConfig) Validate() error {
	if c.MinIntervalMs < 0 {
		return fmt.Errorf("最小请求间隔不能为负数")
	}
	if c.MaxRequestsPerHour < 1 || c.MaxRequestsPerHour > 3600 {
		return fmt.Errorf("每小时配额必须在1-3600之间")
	}
	if c.MaxRetryAttempts < 1 || c.MaxRetryAttempts > 10 {
		return fmt.Errorf("重试次数必须在1-10之间")
	}
	if c.CacheTTLMs < 0 {
		return fmt.Errorf("缓存TTL不能为负数")
	}
	if c.SessionTimeoutMs < 1000 {
		return fmt.Errorf("会话超时不能小于1秒")
	}
	if c.PollIntervalMs < 10 || c.PollIntervalMs > 5000 {
		return fmt.Errorf("轮询间隔必须在10-5000毫秒之间")
	}
	if c.PeakStartHour < 0 || c.PeakStartHour > 23 || c.PeakEndHour < 0 || c.PeakEndHour > 23 {
		return fmt.Errorf("高峰时段小时必须在0-23之间")
	}
	if c.PeakMultiplier < 1.0 {
		return fmt.Errorf("高峰倍率不能小于1.0")
	}
	return nil
}

// MinInterval 最小请求间隔
func (c *ArbiterConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMs) * time.Millisecond
}

// QuotaMargin 配额窗口等待余量
func (c *ArbiterConfig) QuotaMargin() time.Duration {
	return time.Duration(c.QuotaMarginMs) * time.Millisecond
}

// CacheTTL 缓存有效期
func (c *ArbiterConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMs) * time.Millisecond
}

// SessionTimeout 会话闲置超时
func (c *ArbiterConfig) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMs) * time.Millisecond
}

// PollInterval 构造等待轮询间隔
func (c *ArbiterConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// HumanizeBase 拟人化基础延迟
func (c *ArbiterConfig) HumanizeBase() time.Duration {
	return time.Duration(c.HumanizeBaseMs) * time.Millisecond
}

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	Headless     bool `json:"headless" mapstructure:"headless"`             // 无头模式 (默认:true)
	WaitTime     int  `json:"wait_time" mapstructure:"wait_time"`           // 页面加载后额外等待(秒) (默认:3)
	NavTimeoutMs int  `json:"nav_timeout_ms" mapstructure:"nav_timeout_ms"` // 导航超时(毫秒) (默认:30000)
}

// Validate 验证配置
func (c *BrowserConfig) Validate() error {
	if c.WaitTime < 0 || c.WaitTime > 60 {
		return fmt.Errorf("等待时间必须在0-60秒之间")
	}
	if c.NavTimeoutMs < 1000 || c.NavTimeoutMs > 300000 {
		return fmt.Errorf("导航超时必须在1-300秒之间")
	}
	return nil
}

// NavTimeout 导航超时
func (c *BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutMs) * time.Millisecond
}

// PlatformConfig 目标平台配置
// 路径模板中 %s 为目标占位符,页码以查询参数附加
type PlatformConfig struct {
	BaseURL      string `json:"base_url" mapstructure:"base_url"`           // 平台基础URL
	SearchPath   string `json:"search_path" mapstructure:"search_path"`     // 搜索路径模板 (默认:/search?q=%s)
	UserPath     string `json:"user_path" mapstructure:"user_path"`         // 用户主页路径模板 (默认:/u/%s)
	CommentsPath string `json:"comments_path" mapstructure:"comments_path"` // 评论路径模板 (默认:/posts/%s/comments)
}

// Validate 验证配置
func (c *PlatformConfig) Validate() error {
	if err := ValidateURL(c.BaseURL); err != nil {
		return fmt.Errorf("平台基础URL无效: %w", err)
	}
	for _, tmpl := range []string{c.SearchPath, c.UserPath, c.CommentsPath} {
		if !strings.Contains(tmpl, "%s") {
			return fmt.Errorf("路径模板缺少目标占位符%%s: %s", tmpl)
		}
	}
	return nil
}

// BuildURL 根据请求类型构造目标页面URL
func (c *PlatformConfig) BuildURL(req *Request) (string, error) {
	var tmpl string
	switch req.Kind {
	case KindSearch:
		tmpl = c.SearchPath
	case KindUserPosts:
		tmpl = c.UserPath
	case KindPostComments:
		tmpl = c.CommentsPath
	default:
		return "", fmt.Errorf("无效的请求类型: %s", req.Kind)
	}

	path := fmt.Sprintf(tmpl, url.QueryEscape(req.Target))
	full := strings.TrimRight(c.BaseURL, "/") + path

	// 页码以查询参数附加,模板自带查询串时用&连接
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if req.Page > 1 {
		full += fmt.Sprintf("%spage=%d", sep, req.Page)
	}

	if err := ValidateURL(full); err != nil {
		return "", fmt.Errorf("构造的URL无效 [%s]: %w", full, err)
	}
	return full, nil
}
