package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/SocialPeek/internal/models"
)

// Reporter 报告生成器
// 将抓取结果和运行统计写入 output/<host>/reports/ 目录
type Reporter struct {
	outputDir string
	host      string
}

// RunReport 运行报告
type RunReport struct {
	GeneratedAt time.Time             `json:"generated_at"` // 生成时间
	Platform    string                `json:"platform"`     // 平台主机名
	Stats       models.RunStats       `json:"stats"`        // 运行统计
	Results     []*models.FetchResult `json:"results"`      // 各请求结果
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string, host string) *Reporter {
	return &Reporter{
		outputDir: outputDir,
		host:      host,
	}
}

// WriteResult 写入单个请求结果
// 文件名: <kind>_<请求ID前8位>.json
func (r *Reporter) WriteResult(result *models.FetchResult) (string, error) {
	reportsDir := filepath.Join(r.outputDir, r.host, "reports")
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	shortID := result.RequestID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	path := filepath.Join(reportsDir, fmt.Sprintf("%s_%s.json", result.Kind, shortID))

	data, err := result.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化结果失败: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("写入结果文件失败: %w", err)
	}

	Debugf("结果已写入: %s (%d 条记录)", path, len(result.Records))
	return path, nil
}

// GenerateRunReport 生成运行报告
func (r *Reporter) GenerateRunReport(stats models.RunStats, results []*models.FetchResult) error {
	reportsDir := filepath.Join(r.outputDir, r.host, "reports")
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}

	report := RunReport{
		GeneratedAt: time.Now(),
		Platform:    r.host,
		Stats:       stats,
		Results:     results,
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化报告失败: %w", err)
	}

	path := filepath.Join(reportsDir, fmt.Sprintf("run_%s.json", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入报告失败: %w", err)
	}

	Infof("📄 运行报告已生成: %s", path)
	return nil
}
