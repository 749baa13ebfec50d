package models

import (
	"errors"
	"fmt"
)

// 哨兵错误定义
var (
	ErrSessionNotReady = errors.New("会话构造未就绪") // 并发等待者观察到在途构造失败
	ErrArbiterClosed   = errors.New("仲裁器已关闭")
)

// TransientError 暂时性远端错误
// 网络超时、导航失败、选择器等待超时等,由重试执行器重试
type TransientError struct {
	// Op 出错的操作名称
	Op string

	// Cause 底层错误
	Cause error
}

// NewTransientError 创建暂时性错误
func NewTransientError(op string, cause error) *TransientError {
	return &TransientError{Op: op, Cause: cause}
}

// Error 实现error接口
func (e *TransientError) Error() string {
	return fmt.Sprintf("暂时性远端错误 [%s]: %v", e.Op, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *TransientError) Unwrap() error {
	return e.Cause
}

// IsTransient 检查错误是否为暂时性错误
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ResourceUnavailableError 会话资源不可用
// 会话构造在重试策略耗尽后仍然失败,向调用方暴露,不再重试
type ResourceUnavailableError struct {
	// Cause 最后一次构造失败的底层错误
	Cause error
}

// Error 实现error接口
func (e *ResourceUnavailableError) Error() string {
	return fmt.Sprintf("会话资源不可用: %v", e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ResourceUnavailableError) Unwrap() error {
	return e.Cause
}

// RetriesExhaustedError 重试次数耗尽
// 携带最后一次底层错误,向调用方暴露
type RetriesExhaustedError struct {
	// Op 操作名称
	Op string

	// Attempts 已执行的尝试次数
	Attempts int

	// Last 最后一次尝试的底层错误
	Last error
}

// Error 实现error接口
func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("操作 [%s] 重试%d次后仍然失败: %v", e.Op, e.Attempts, e.Last)
}

// Unwrap 支持errors.Unwrap
func (e *RetriesExhaustedError) Unwrap() error {
	return e.Last
}
