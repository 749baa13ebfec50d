package core

import (
	"context"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/RecoveryAshes/SocialPeek/internal/models"
	"github.com/RecoveryAshes/SocialPeek/internal/utils"
)

// BatchRunner 批量请求执行器
// 逐条处理查询文件中的请求, 请求节奏完全由仲裁器的准入闸门控制
type BatchRunner struct {
	arbiter       *Arbiter
	reporter      *utils.Reporter
	continueOnErr bool
	showProgress  bool
}

// BatchResult 单条查询的执行结果
type BatchResult struct {
	Query       utils.QueryLine
	Success     bool
	Error       error
	Result      *models.FetchResult
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量执行摘要
type BatchSummary struct {
	TotalQueries  int
	SuccessCount  int
	FailCount     int
	TotalRecords  int
	CacheHits     int
	TotalDuration float64
	Results       []BatchResult
}

// NewBatchRunner 创建批量执行器
// reporter 可为nil, 此时不落盘结果文件
func NewBatchRunner(arbiter *Arbiter, reporter *utils.Reporter, continueOnErr bool, showProgress bool) *BatchRunner {
	return &BatchRunner{
		arbiter:       arbiter,
		reporter:      reporter,
		continueOnErr: continueOnErr,
		showProgress:  showProgress,
	}
}

// Run 批量执行查询列表
func (br *BatchRunner) Run(ctx context.Context, queries []utils.QueryLine) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量请求: %d条查询", len(queries))

	summary := &BatchSummary{
		TotalQueries: len(queries),
		Results:      make([]BatchResult, 0, len(queries)),
	}

	var bar *progressbar.ProgressBar
	if br.showProgress {
		bar = progressbar.NewOptions(len(queries),
			progressbar.OptionSetDescription("批量请求"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
		)
	}

	startTime := time.Now()

	for i, query := range queries {
		utils.Infof("==================== [%d/%d] ====================", i+1, len(queries))
		utils.Infof("查询: %s [%s] 第%d页", query.Kind, query.Target, query.Page)

		result := br.runSingle(ctx, query)
		summary.Results = append(summary.Results, result)

		if bar != nil {
			_ = bar.Add(1)
		}

		if result.Success {
			summary.SuccessCount++
			summary.TotalRecords += len(result.Result.Records)
			if result.Result.Cached {
				summary.CacheHits++
			}
		} else {
			summary.FailCount++
			utils.Errorf("❌ 请求失败: %v", result.Error)

			// 上下文取消时无条件中止
			if ctx.Err() != nil {
				utils.Warn("批量请求被取消")
				break
			}
			if !br.continueOnErr {
				utils.Warn("批量请求中止 (--continue-on-error=false)")
				break
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()
	br.printSummary(summary)

	// 生成运行报告
	if br.reporter != nil {
		results := make([]*models.FetchResult, 0, len(summary.Results))
		for _, r := range summary.Results {
			if r.Result != nil {
				results = append(results, r.Result)
			}
		}
		if err := br.reporter.GenerateRunReport(br.arbiter.Stats(), results); err != nil {
			utils.Warnf("生成运行报告失败: %v", err)
		}
	}

	return summary, nil
}

// runSingle 执行单条查询
func (br *BatchRunner) runSingle(ctx context.Context, query utils.QueryLine) BatchResult {
	result := BatchResult{
		Query:       query,
		ProcessedAt: time.Now(),
	}
	startTime := time.Now()

	req, err := models.NewRequest(models.RequestKind(query.Kind), query.Target, query.Page)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(startTime).Seconds()
		return result
	}

	fetchResult, err := br.arbiter.Request(ctx, req)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(startTime).Seconds()
		return result
	}

	if br.reporter != nil {
		if _, werr := br.reporter.WriteResult(fetchResult); werr != nil {
			utils.Warnf("写入结果文件失败: %v", werr)
		}
	}

	result.Success = true
	result.Result = fetchResult
	result.Duration = time.Since(startTime).Seconds()
	return result
}

// printSummary 打印批量执行摘要
func (br *BatchRunner) printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 批量请求摘要")
	utils.Info("==================================================")
	utils.Infof("总查询数: %d", summary.TotalQueries)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("📄 缓存命中: %d", summary.CacheHits)
	utils.Infof("📦 总记录数: %d", summary.TotalRecords)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的查询:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s [%s]: %v", result.Query.Kind, result.Query.Target, result.Error)
			}
		}
	}
}
