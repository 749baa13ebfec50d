package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/SocialPeek/internal/core"
	"github.com/RecoveryAshes/SocialPeek/internal/models"
	"github.com/RecoveryAshes/SocialPeek/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string // 自定义HTTP请求头
	validateConfig bool     // 验证配置文件

	// 请求参数
	kind      string
	target    string
	page      int
	queryFile string
	mode      string
	baseURL   string
	waitTime  int
	headless  bool
	retries   int
	outputDir string
	noReport  bool

	// 批量处理参数
	continueOnError bool
	showProgress    bool
)

var rootCmd = &cobra.Command{
	Use:   "socialpeek",
	Short: "内容平台数据采集与资源仲裁工具",
	Long: `SocialPeek - 内容平台数据采集与资源仲裁工具 (Go版本)

这是一个面向单一内容平台的自动化采集工具,支持:
  • 关键词搜索、用户主页、帖子评论三类请求
  • 每小时配额+最小间隔的准入控制
  • 带TTL的结果缓存,重复请求不产生远端流量
  • 共享浏览器会话的单例协调与自动重建
  • 静态/动态/自动三种抓取模式
  • 批量查询文件处理
  • 自定义HTTP请求头

请求示例:
  # 关键词搜索
  socialpeek -k search -t "golang 并发"

  # 用户主页第2页
  socialpeek -k user_posts -t 10086 -p 2

  # 批量查询文件 (每行 kind|target[|page])
  socialpeek -f queries.txt

  # 验证配置文件
  socialpeek --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 初始化日志系统
		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置并合并命令行参数
		appConfig, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		appConfig.MergeCLIFlags(baseURL, waitTime, headless, retries)
		if err := appConfig.Validate(); err != nil {
			return err
		}

		// 创建HTTP头部管理器
		headerManager, err := core.NewHeaderManager(configFile, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}

		// 如果用户请求验证配置
		if validateConfig {
			utils.Info("🔍 验证HTTP头部配置...")
			if err := headerManager.LoadConfig(); err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			if err := headerManager.Validate(); err != nil {
				return fmt.Errorf("配置验证失败: %w", err)
			}

			// 显示合并后的头部(脱敏)
			safeHeaders := headerManager.GetSafeHeaders()
			utils.Info("✅ 配置验证通过!")
			utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
			for name, value := range safeHeaders {
				utils.Infof("  %s: %s", name, value)
			}
			return nil
		}

		// 如果没有提供任何参数,显示帮助信息
		if target == "" && queryFile == "" {
			return cmd.Help()
		}

		// 验证参数
		if err := ValidateFlags(kind, target, page, waitTime, retries, mode, queryFile); err != nil {
			return err
		}

		// 创建仲裁器
		arbiter := core.NewArbiter(appConfig, models.FetchMode(mode), headerManager)
		defer arbiter.Shutdown()

		// 设置信号处理(Ctrl+C优雅退出)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			utils.Warnf("收到中断信号: %v, 正在优雅关闭...", sig)
			cancel()
		}()

		// 结果落盘
		var reporter *utils.Reporter
		if !noReport {
			host := platformHost(appConfig.Platform.BaseURL)
			reporter = utils.NewReporter(outputDir, host)
		}

		// 批量处理模式
		if queryFile != "" {
			queries, err := utils.ReadQueriesFromFile(queryFile)
			if err != nil {
				return fmt.Errorf("读取查询文件失败: %w", err)
			}

			runner := core.NewBatchRunner(arbiter, reporter, continueOnError, showProgress)
			if _, err := runner.Run(ctx, queries); err != nil {
				return fmt.Errorf("批量请求失败: %w", err)
			}

			utils.Info("✨ 批量请求任务完成!")
			return nil
		}

		// 单请求模式
		req, err := models.NewRequest(models.RequestKind(kind), target, page)
		if err != nil {
			return err
		}

		result, err := arbiter.Request(ctx, req)
		if err != nil {
			return fmt.Errorf("请求失败: %w", err)
		}

		if reporter != nil {
			if path, werr := reporter.WriteResult(result); werr != nil {
				utils.Warnf("写入结果文件失败: %v", werr)
			} else {
				utils.Infof("结果已保存: %s", path)
			}
		}

		// 显示统计结果
		stats := arbiter.Stats()
		fmt.Println("\n==================================================")
		fmt.Println("📊 请求统计")
		fmt.Println("==================================================")
		fmt.Printf("✅ 提取记录数: %d\n", len(result.Records))
		fmt.Printf("📄 缓存命中: %v\n", result.Cached)
		fmt.Printf("🔧 抓取模式: %s\n", result.FetchMode)
		fmt.Printf("📦 远端抓取数: %d\n", stats.RemoteFetches)
		fmt.Printf("❌ 失败请求数: %d\n", stats.FailedRequests)
		fmt.Printf("⏱️  耗时: %.2f秒\n", result.Duration)
		fmt.Println("==================================================")

		utils.Info("✨ 请求任务完成!")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("SocialPeek %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
		fmt.Println("Go实现版本 - 内容平台数据采集工具")
	},
}

// platformHost 从平台基础URL提取主机名, 用于输出目录分层
func platformHost(baseURL string) string {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return parsed.Host
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 请求参数
	rootCmd.Flags().StringVarP(&kind, "kind", "k", "search", "请求类型 (search|user_posts|post_comments)")
	rootCmd.Flags().StringVarP(&target, "target", "t", "", "请求目标: 关键词/用户ID/帖子ID (必需,除非使用 --query-file)")
	rootCmd.Flags().IntVarP(&page, "page", "p", 1, "页码 (1-100)")
	rootCmd.Flags().StringVarP(&queryFile, "query-file", "f", "", "包含查询列表的文件路径")
	rootCmd.Flags().StringVarP(&mode, "mode", "m", "auto", "抓取模式 (auto|static|dynamic)")
	rootCmd.Flags().StringVarP(&baseURL, "base-url", "u", "", "平台基础URL (覆盖配置文件)")
	rootCmd.Flags().IntVarP(&waitTime, "wait", "w", 3, "页面等待时间(秒)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().IntVar(&retries, "retries", 3, "最大重试次数 (1-10)")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "output", "输出目录")
	rootCmd.Flags().BoolVar(&noReport, "no-report", false, "不写入结果文件")

	// 批量处理参数
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "遇到错误继续处理")
	rootCmd.Flags().BoolVar(&showProgress, "progress", true, "显示进度条")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
