package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind 错误分类
type ErrorKind string

const (
	ErrorKindValidation                ErrorKind = "validation"                 // 提交参数不合法，用户可修正
	ErrorKindClassificationUnavailable ErrorKind = "classification_unavailable" // 外部分析服务不可用
	ErrorKindToolSoftFailure           ErrorKind = "tool_soft_failure"          // 工具未找到可处理的内容
	ErrorKindToolHardFailure           ErrorKind = "tool_hard_failure"          // 网络/服务/解析错误
)

// 预定义错误
var (
	// ErrClassificationUnavailable 外部目标分析服务不可用，可降级到本地规则
	ErrClassificationUnavailable = errors.New("classification unavailable")

	// ErrRunSuperseded 运行被新的提交覆盖
	ErrRunSuperseded = errors.New("run superseded by a newer submission")

	// ErrRunCanceled 运行被取消
	ErrRunCanceled = errors.New("run canceled")

	// ErrNoActiveRun 当前没有进行中的运行
	ErrNoActiveRun = errors.New("no active run")
)

// ValidationError 提交校验失败
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Kind 错误分类
func (e *ValidationError) Kind() ErrorKind {
	return ErrorKindValidation
}

// ToolError 工具调用失败
type ToolError struct {
	Kind    ErrorKind
	Tool    ToolKind
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("%s %s: %s", e.Tool, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Soft 是否为软失败
func (e *ToolError) Soft() bool {
	return e.Kind == ErrorKindToolSoftFailure
}

// NewSoftFailure 创建软失败（工具没有找到可处理的内容）
func NewSoftFailure(tool ToolKind, message string) *ToolError {
	return &ToolError{Kind: ErrorKindToolSoftFailure, Tool: tool, Message: message}
}

// NewHardFailure 创建硬失败
func NewHardFailure(tool ToolKind, err error) *ToolError {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &ToolError{Kind: ErrorKindToolHardFailure, Tool: tool, Message: msg, Err: err}
}

// ClassifyToolError 将任意错误归类为 ToolError
// 已经是 ToolError 的保留原分类，其余（含超时、取消）一律视为硬失败
func ClassifyToolError(tool ToolKind, err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		if te.Tool == "" {
			te.Tool = tool
		}
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ToolError{Kind: ErrorKindToolHardFailure, Tool: tool, Message: "timeout: " + err.Error(), Err: err}
	}
	return NewHardFailure(tool, err)
}
