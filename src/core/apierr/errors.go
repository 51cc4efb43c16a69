// Package apierr 定义接口层的错误类别，区分客户端输入错误与后端推理失败
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误类别
type Kind string

const (
	InvalidRequest       Kind = "invalid_request"
	UnsupportedMediaType Kind = "unsupported_media_type"
	InferenceFailure     Kind = "inference_failure"
)

// Error 带类别的错误，Err 只用于日志，不返回给客户端
type Error struct {
	Kind    Kind
	Message string
	File    string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.File != "" {
		msg += fmt.Sprintf(" (file %q)", e.File)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Invalid 构造 InvalidRequest
func Invalid(file, format string, args ...interface{}) *Error {
	return &Error{Kind: InvalidRequest, Message: fmt.Sprintf(format, args...), File: file}
}

// Unsupported 构造 UnsupportedMediaType
func Unsupported(file string, cause error) *Error {
	return &Error{
		Kind:    UnsupportedMediaType,
		Message: "file is not a decodable image",
		File:    file,
		Err:     cause,
	}
}

// Inference 构造 InferenceFailure，消息固定，不暴露预测器细节
func Inference(cause error) *Error {
	return &Error{Kind: InferenceFailure, Message: "inference failed", Err: cause}
}

// KindOf 返回错误类别，未分类的错误按推理失败处理
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InferenceFailure
}

// HTTPStatus 错误类别对应的 HTTP 状态码
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidRequest:
		return http.StatusBadRequest
	case UnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

// Response 错误响应体
type Response struct {
	Error string `json:"error"`
	Code  Kind   `json:"code"`
	File  string `json:"file,omitempty"`
}

// ToResponse 把任意错误转换为状态码与响应体
func ToResponse(err error) (int, Response) {
	var e *Error
	if !errors.As(err, &e) {
		e = Inference(err)
	}
	return HTTPStatus(e.Kind), Response{Error: e.Message, Code: e.Kind, File: e.File}
}

// IsCanceled 客户端断开或请求超时
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
