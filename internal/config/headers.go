// Package config 加载 headers.yaml 头部配置文件
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/RecoveryAshes/SocialPeek/internal/models"
	"github.com/RecoveryAshes/SocialPeek/internal/utils"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile 默认配置文件路径
	DefaultConfigFile = "configs/headers.yaml"

	// MaxConfigFileSize 配置文件大小上限 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024
)

//go:embed headers_template.yaml
var headerTemplate string

// HeaderConfigLoader 头部配置文件加载器
// 文件不存在时生成带注释的模板, 方便用户填入登录态Cookie
type HeaderConfigLoader struct {
	path string
}

// NewHeaderConfigLoader 创建加载器, path为空时使用默认路径
func NewHeaderConfigLoader(path string) *HeaderConfigLoader {
	if path == "" {
		path = DefaultConfigFile
	}
	return &HeaderConfigLoader{path: path}
}

// LoadConfig 加载并解析头部配置
// 依次: 确保文件存在(缺失则生成模板) -> 大小检查 -> viper解析
func (hcl *HeaderConfigLoader) LoadConfig() (*models.HeaderConfig, error) {
	if err := hcl.ensureExists(); err != nil {
		return nil, err
	}
	if err := hcl.checkSize(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(hcl.path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// 文件被其他进程锁定时优雅降级为空配置
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			utils.Warnf("配置文件被锁定 [%s], 使用默认配置", hcl.path)
			return &models.HeaderConfig{Headers: map[string]string{}}, nil
		}
		return nil, &models.ConfigError{FilePath: hcl.path, Cause: err}
	}

	var cfg models.HeaderConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &models.ConfigError{
			FilePath: hcl.path,
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return &cfg, nil
}

// ensureExists 文件缺失时生成模板
func (hcl *HeaderConfigLoader) ensureExists() error {
	if _, err := os.Stat(hcl.path); !os.IsNotExist(err) {
		return nil
	}
	dir := filepath.Dir(hcl.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
	}
	if err := os.WriteFile(hcl.path, []byte(headerTemplate), 0644); err != nil {
		return fmt.Errorf("无法生成配置文件 [%s]: %w", hcl.path, err)
	}
	utils.Infof("已生成头部配置模板: %s", hcl.path)
	return nil
}

// checkSize 拒绝异常巨大的配置文件
func (hcl *HeaderConfigLoader) checkSize() error {
	info, err := os.Stat(hcl.path)
	if err != nil {
		return fmt.Errorf("无法读取配置文件信息 [%s]: %w", hcl.path, err)
	}
	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			FilePath: hcl.path,
			Cause: fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)",
				info.Size(), MaxConfigFileSize),
		}
	}
	return nil
}
