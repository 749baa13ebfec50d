package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/RecoveryAshes/SocialPeek/internal/models"
)

// Config 应用程序配置
type Config struct {
	Arbiter  models.ArbiterConfig  `mapstructure:"arbiter"`
	Browser  models.BrowserConfig  `mapstructure:"browser"`
	Platform models.PlatformConfig `mapstructure:"platform"`
	Static   StaticConfig          `mapstructure:"static"`
	Resource ResourceConfig        `mapstructure:"resource"`
	Logging  LoggingConfig         `mapstructure:"logging"`
	Output   OutputConfig          `mapstructure:"output"`
}

// StaticConfig 静态抓取配置
type StaticConfig struct {
	TimeoutMs int `mapstructure:"timeout_ms"`
}

// ResourceConfig 资源监控配置 (MB为单位)
type ResourceConfig struct {
	SafetyReserveMemory int `mapstructure:"safety_reserve_memory"`
	SafetyThreshold     int `mapstructure:"safety_threshold"`
	CPULoadThreshold    int `mapstructure:"cpu_load_threshold"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件
	if configPath != "" {
		// 使用指定的配置文件
		v.SetConfigFile(configPath)
	} else {
		// 搜索默认位置
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// 添加配置搜索路径
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		// 用户主目录
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".socialpeek"))
		}
	}

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果配置文件不存在,使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 仲裁配置默认值
	v.SetDefault("arbiter.min_interval_ms", 10000)
	v.SetDefault("arbiter.max_requests_per_hour", 20)
	v.SetDefault("arbiter.quota_margin_ms", 1000)
	v.SetDefault("arbiter.cache_ttl_ms", 1800000)
	v.SetDefault("arbiter.cache_max_entries", 0)
	v.SetDefault("arbiter.session_timeout_ms", 1800000)
	v.SetDefault("arbiter.max_retry_attempts", 3)
	v.SetDefault("arbiter.poll_interval_ms", 100)
	v.SetDefault("arbiter.humanize_base_ms", 2000)
	v.SetDefault("arbiter.peak_start_hour", 19)
	v.SetDefault("arbiter.peak_end_hour", 23)
	v.SetDefault("arbiter.peak_multiplier", 2.0)

	// 浏览器配置默认值
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.wait_time", 3)
	v.SetDefault("browser.nav_timeout_ms", 30000)

	// 平台配置默认值
	v.SetDefault("platform.base_url", "https://example.com")
	v.SetDefault("platform.search_path", "/search?q=%s")
	v.SetDefault("platform.user_path", "/u/%s")
	v.SetDefault("platform.comments_path", "/posts/%s/comments")

	// 静态抓取配置默认值
	v.SetDefault("static.timeout_ms", 30000)

	// 资源监控配置默认值 (MB)
	v.SetDefault("resource.safety_reserve_memory", 1024)
	v.SetDefault("resource.safety_threshold", 500)
	v.SetDefault("resource.cpu_load_threshold", 80)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "output")
}

// Validate 验证全部配置段
func (c *Config) Validate() error {
	if err := c.Arbiter.Validate(); err != nil {
		return fmt.Errorf("仲裁配置无效: %w", err)
	}
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("浏览器配置无效: %w", err)
	}
	if err := c.Platform.Validate(); err != nil {
		return fmt.Errorf("平台配置无效: %w", err)
	}
	if c.Static.TimeoutMs < 1000 || c.Static.TimeoutMs > 300000 {
		return fmt.Errorf("静态抓取超时必须在1-300秒之间")
	}
	return nil
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件
func (c *Config) MergeCLIFlags(baseURL string, waitTime int, headless bool, maxRetries int) {
	if baseURL != "" {
		c.Platform.BaseURL = baseURL
	}
	if waitTime >= 0 {
		c.Browser.WaitTime = waitTime
	}
	c.Browser.Headless = headless
	if maxRetries > 0 {
		c.Arbiter.MaxRetryAttempts = maxRetries
	}
}
