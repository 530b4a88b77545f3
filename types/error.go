package types

import (
	"errors"
	"fmt"
)

// ErrorCode 是语音中继全局统一的错误分类。
type ErrorCode string

// 语音管线各阶段的错误码
const (
	ErrAudioProcessing ErrorCode = "AUDIO_PROCESSING" // 音频帧无法解码或处理
	ErrTranscription   ErrorCode = "TRANSCRIPTION"    // STT 服务失败或返回格式错误
	ErrLLM             ErrorCode = "LLM"              // 语言模型服务失败
	ErrVoiceSynthesis  ErrorCode = "VOICE_SYNTHESIS"  // TTS 服务失败或输入为空
	ErrConfiguration   ErrorCode = "CONFIGURATION"    // 启动期配置或凭证缺失
	ErrSession         ErrorCode = "SESSION"          // 非法的会话操作
	ErrNotInitialized  ErrorCode = "NOT_INITIALIZED"  // 组件在初始化完成前被调用
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Stage     string    `json:"stage,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithStage records the pipeline stage that produced the error.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError 提取错误链中的 *Error。
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsCode 判断错误链中是否包含指定错误码。
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
