// Package utils 提供日志、查询文件、头部验证与脱敏等基础设施
package utils

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志器, InitLogger 之前为禁用状态
var Logger zerolog.Logger

// LogConfig 日志配置
type LogConfig struct {
	Level      string // 日志级别: trace, debug, info, warn, error
	LogDir     string // 日志目录
	MaxSize    int    // 单个日志文件最大大小(MB)
	MaxBackups int    // 保留的旧日志文件数量
	MaxAge     int    // 保留天数
	Compress   bool   // 是否压缩旧日志
}

// InitLogger 初始化日志系统
//
// 三路输出: 彩色控制台、轮转的主日志文件、仅错误级别的轮转错误文件
func InitLogger(cfg LogConfig) error {
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	mainFile := newRotatingFile(cfg, "socialpeek.log")
	errorFile := &minLevelWriter{
		writer: newRotatingFile(cfg, "socialpeek_error.log"),
		min:    zerolog.ErrorLevel,
	}

	Logger = zerolog.New(zerolog.MultiLevelWriter(console, mainFile, errorFile)).
		With().
		Timestamp().
		Caller().
		Logger()
	log.Logger = Logger

	Logger.Info().
		Str("level", level.String()).
		Str("log_dir", cfg.LogDir).
		Msg("日志系统初始化完成")
	return nil
}

// newRotatingFile 创建带轮转的日志文件写入器
func newRotatingFile(cfg LogConfig, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, name),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

// minLevelWriter 只放行指定级别及以上日志的写入器
type minLevelWriter struct {
	writer *lumberjack.Logger
	min    zerolog.Level
}

func (w *minLevelWriter) Write(p []byte) (int, error) {
	return w.writer.Write(p)
}

// WriteLevel 实现zerolog.LevelWriter, 低于阈值的日志被静默丢弃
func (w *minLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < w.min {
		return len(p), nil
	}
	return w.writer.Write(p)
}

// 快捷方法

// Info 信息日志
func Info(msg string) {
	Logger.Info().Msg(msg)
}

// Infof 格式化信息日志
func Infof(format string, args ...interface{}) {
	Logger.Info().Msgf(format, args...)
}

// Warn 警告日志
func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

// Warnf 格式化警告日志
func Warnf(format string, args ...interface{}) {
	Logger.Warn().Msgf(format, args...)
}

// Errorf 格式化错误日志
func Errorf(format string, args ...interface{}) {
	Logger.Error().Msgf(format, args...)
}

// Debug 调试日志
func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

// Debugf 格式化调试日志
func Debugf(format string, args ...interface{}) {
	Logger.Debug().Msgf(format, args...)
}
