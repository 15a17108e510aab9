// Package apperr 定义业务错误类型，供控制器映射HTTP状态码
package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind int

const (
	// KindInternal 服务内部错误
	KindInternal Kind = iota
	// KindNotFound 资源不存在
	KindNotFound
	// KindBadRequest 参数或业务校验失败
	KindBadRequest
	// KindAlreadyExists 资源已存在
	KindAlreadyExists
	// KindUnauthorized 未认证或认证失败
	KindUnauthorized
)

// String 错误类别名称
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindBadRequest:
		return "BadRequest"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindUnauthorized:
		return "Unauthorized"
	default:
		return "InternalServerError"
	}
}

// Error 业务错误
type Error struct {
	Kind    Kind
	Message string // 返回给客户端的提示
	Err     error  // 原始错误，仅记录日志
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound 资源不存在
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// BadRequest 请求错误
func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// AlreadyExists 资源已存在
func AlreadyExists(message string) *Error {
	return &Error{Kind: KindAlreadyExists, Message: message}
}

// Unauthorized 未认证
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Internal 包装存储层或外部依赖错误
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf 获取错误类别，非业务错误视为内部错误
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is 判断错误是否属于指定类别
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
