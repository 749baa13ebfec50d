package models

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RequestKind 请求类型
type RequestKind string

const (
	KindSearch       RequestKind = "search"        // 关键词搜索
	KindUserPosts    RequestKind = "user_posts"    // 用户主页帖子
	KindPostComments RequestKind = "post_comments" // 帖子评论
)

// FetchMode 抓取模式
type FetchMode string

const (
	ModeAuto    FetchMode = "auto"    // 先静态后浏览器
	ModeStatic  FetchMode = "static"  // 仅静态HTTP
	ModeDynamic FetchMode = "dynamic" // 仅浏览器
)

// ValidKinds 合法的请求类型集合
var ValidKinds = map[RequestKind]bool{
	KindSearch:       true,
	KindUserPosts:    true,
	KindPostComments: true,
}

// Request 一次内容请求
// Target根据Kind解释为关键词、用户ID或帖子ID
type Request struct {
	ID     string      `json:"id"`     // 请求唯一ID (UUID)
	Kind   RequestKind `json:"kind"`   // 请求类型
	Target string      `json:"target"` // 目标(关键词/用户ID/帖子ID)
	Page   int         `json:"page"`   // 页码 (从1开始)
}

// NewRequest 创建请求,参数规范化后校验
func NewRequest(kind RequestKind, target string, page int) (*Request, error) {
	r := &Request{
		ID:     generateID(),
		Kind:   kind,
		Target: NormalizeTarget(target),
		Page:   page,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate 验证请求参数
func (r *Request) Validate() error {
	if !ValidKinds[r.Kind] {
		return fmt.Errorf("无效的请求类型: %s", r.Kind)
	}
	if r.Target == "" {
		return fmt.Errorf("请求目标不能为空")
	}
	if r.Page < 1 || r.Page > 100 {
		return fmt.Errorf("页码必须在1-100之间,当前值: %d", r.Page)
	}
	return nil
}

// CacheKey 生成确定性缓存键
// 相同类型+规范化目标+页码的请求在TTL窗口内命中同一缓存条目
func (r *Request) CacheKey() string {
	sig := fmt.Sprintf("%s|%s|%d", r.Kind, r.Target, r.Page)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(sig)))
}

// NormalizeTarget 规范化请求目标
// 去除首尾空白,压缩内部连续空白,小写化
func NormalizeTarget(target string) string {
	fields := strings.Fields(strings.ToLower(target))
	return strings.Join(fields, " ")
}

// Record 从页面提取出的一条结构化记录
type Record struct {
	Author    string `json:"author"`              // 作者
	Content   string `json:"content"`             // 正文内容
	Metric    string `json:"metric,omitempty"`    // 互动计数(点赞/转发等原始文本)
	Timestamp string `json:"timestamp,omitempty"` // 发布时间原始文本
	Variant   string `json:"variant"`             // 产出该记录的提取策略标识
}

// HasPrimaryField 检查主字段(作者或正文)是否非空
// 两者都为空的候选记录会被提取管线静默丢弃
func (r Record) HasPrimaryField() bool {
	return r.Author != "" || r.Content != ""
}

// FetchResult 一次请求的完整结果
type FetchResult struct {
	RequestID string      `json:"request_id"`           // 请求ID
	Kind      RequestKind `json:"kind"`                 // 请求类型
	Target    string      `json:"target"`               // 请求目标
	Page      int         `json:"page"`                 // 页码
	Records   []Record    `json:"records"`              // 提取记录
	Cached    bool        `json:"cached"`               // 是否命中缓存
	FetchMode FetchMode   `json:"fetch_mode,omitempty"` // 实际使用的抓取模式
	FetchedAt time.Time   `json:"fetched_at"`           // 获取时间
	Duration  float64     `json:"duration"`             // 耗时(秒)
}

// ToJSON 序列化为JSON
func (fr *FetchResult) ToJSON() ([]byte, error) {
	return json.MarshalIndent(fr, "", "  ")
}

// RunStats 运行统计
type RunStats struct {
	TotalRequests  int     `json:"total_requests"`  // 总请求数
	CacheHits      int     `json:"cache_hits"`      // 缓存命中数
	RemoteFetches  int     `json:"remote_fetches"`  // 远端抓取数
	EmptyResults   int     `json:"empty_results"`   // 空结果数
	FailedRequests int     `json:"failed_requests"` // 失败请求数
	TotalRecords   int     `json:"total_records"`   // 总记录数
	Duration       float64 `json:"duration"`        // 总耗时(秒)
}
