package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误类型（封闭集合，HTTP 边界处穷举 switch）
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindUnsupportedMedia
	KindPayloadTooLarge
	KindSourceUnavailable
	KindUploadError
	KindRemoteProcessingFailed
	KindTimeout
	KindGenerationError
	KindSynthesisError
	KindMuxError
	KindConfiguration
	KindCanceled
)

// 对外暴露的两类错误
const (
	CategoryUpload     = "FILE_UPLOAD_ERROR"
	CategoryProcessing = "VIDEO_PROCESSING_ERROR"
	CategoryInternal   = "INTERNAL_ERROR"
)

// StatusClientClosedRequest 客户端主动断开（nginx 约定）
const StatusClientClosedRequest = 499

var kindNames = map[Kind]string{
	KindInvalidInput:           "InvalidInput",
	KindUnsupportedMedia:       "UnsupportedMedia",
	KindPayloadTooLarge:        "PayloadTooLarge",
	KindSourceUnavailable:      "SourceUnavailable",
	KindUploadError:            "UploadError",
	KindRemoteProcessingFailed: "RemoteProcessingFailed",
	KindTimeout:                "Timeout",
	KindGenerationError:        "GenerationError",
	KindSynthesisError:         "SynthesisError",
	KindMuxError:               "MuxError",
	KindConfiguration:          "Configuration",
	KindCanceled:               "Canceled",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Category 映射到公开的错误分类
func (k Kind) Category() string {
	switch k {
	case KindInvalidInput, KindUnsupportedMedia, KindPayloadTooLarge, KindSourceUnavailable:
		return CategoryUpload
	case KindUploadError, KindRemoteProcessingFailed, KindTimeout, KindGenerationError,
		KindSynthesisError, KindMuxError, KindConfiguration, KindCanceled:
		return CategoryProcessing
	default:
		return CategoryInternal
	}
}

// DefaultStatus 每种错误的默认 HTTP 状态码
func (k Kind) DefaultStatus() int {
	switch k {
	case KindInvalidInput, KindUnsupportedMedia, KindPayloadTooLarge, KindSourceUnavailable:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error 带类型和状态码的错误
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

// Error 消息中已包含底层原因（见 Wrap）
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建错误，状态码取默认值
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Status: kind.DefaultStatus()}
}

// Newf 格式化消息
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap 包装底层错误，对外消息为 "message: cause"
func Wrap(kind Kind, err error, message string) *Error {
	e := New(kind, message)
	e.Err = err
	if err != nil {
		e.Message = fmt.Sprintf("%s: %v", message, err)
	}
	return e
}

// StatusCode 未设置时取默认值
func (e *Error) StatusCode() int {
	if e.Status == 0 {
		return e.Kind.DefaultStatus()
	}
	return e.Status
}

// WithStatus 覆盖状态码
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// As 提取 *Error
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Is 判断错误链中是否包含指定类型
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
