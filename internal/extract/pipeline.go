// Package extract 将页面 HTML 解析为结构化记录
//
// 解析按方案顺序进行: 第一个产出非空记录集的方案生效,
// 后续方案不再尝试。解析永不返回错误, 无法识别的页面产出空记录集
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/SocialPeek/internal/models"
	"github.com/RecoveryAshes/SocialPeek/internal/utils"
)

// Pipeline 多方案提取管线
type Pipeline struct {
	strategies []Strategy
}

// NewPipeline 创建使用内置方案的提取管线
func NewPipeline() *Pipeline {
	return &Pipeline{strategies: defaultStrategies()}
}

// NewPipelineWith 创建使用指定方案的提取管线, 便于测试和定制
func NewPipelineWith(strategies []Strategy) *Pipeline {
	return &Pipeline{strategies: strategies}
}

// Extract 从页面 HTML 提取记录
//
// 返回空切片表示页面无可识别内容, 不视为错误
func (p *Pipeline) Extract(htmlContent string) []models.Record {
	if strings.TrimSpace(htmlContent) == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		utils.Warnf("页面解析失败: %v", err)
		return nil
	}

	for _, strategy := range p.strategies {
		records := p.applyStrategy(doc, strategy)
		if len(records) > 0 {
			utils.Debugf("提取方案 %s 命中 %d 条记录", strategy.Variant, len(records))
			return records
		}
	}

	utils.Debug("所有提取方案均未命中, 返回空记录集")
	return nil
}

// applyStrategy 对文档应用单个方案
func (p *Pipeline) applyStrategy(doc *goquery.Document, strategy Strategy) []models.Record {
	var containers *goquery.Selection
	for _, sel := range strategy.ContainerSelectors {
		found := doc.Find(sel)
		if found.Length() > 0 {
			containers = found
			break
		}
	}
	if containers == nil {
		return nil
	}

	var records []models.Record
	containers.Each(func(_ int, container *goquery.Selection) {
		rawMetric := firstMatch(container, strategy.MetricRules)
		record := models.Record{
			Author:    firstMatch(container, strategy.AuthorRules),
			Content:   firstMatch(container, strategy.ContentRules),
			Metric:    cleanMetric(rawMetric),
			Timestamp: firstMatch(container, strategy.TimestampRules),
			Variant:   strategy.Variant,
		}
		if record.Content == "" {
			// 选择器全部落空时回退到容器剩余文本,
			// 已匹配的作者/计数/时间文本不参与正文
			record.Content = residualContent(container,
				[]string{record.Author, rawMetric, record.Timestamp})
		}
		// 作者和正文均为空的容器视为噪声, 直接丢弃
		if !record.HasPrimaryField() {
			return
		}
		records = append(records, record)
	})
	return records
}
