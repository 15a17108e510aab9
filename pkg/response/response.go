package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nsxzhou1114/startpage-api/pkg/apperr"
)

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`    // 状态码
	Message string `json:"message"` // 响应消息
	Data    any    `json:"data"`    // 响应数据
}

// ListData 列表数据
type ListData struct {
	Total int64 `json:"total"`
	Data  any   `json:"data"`
}

// Success 返回成功响应
func Success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// SuccessList 返回列表成功响应
func SuccessList(c *gin.Context, message string, data any, total int64) {
	Success(c, message, ListData{Total: total, Data: data})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string, err error) {
	// 记录详细错误信息，但不向客户端暴露
	if err != nil {
		c.Error(err)
	}

	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// BadRequest 400错误响应
func BadRequest(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

// Unauthorized 401错误响应
func Unauthorized(c *gin.Context, message string, err error) {
	Error(c, http.StatusUnauthorized, message, err)
}

// NotFound 404错误响应
func NotFound(c *gin.Context, message string, err error) {
	Error(c, http.StatusNotFound, message, err)
}

// InternalServerError 500错误响应
func InternalServerError(c *gin.Context, message string, err error) {
	Error(c, http.StatusInternalServerError, message, err)
}

// StatusOf 业务错误类别对应的HTTP状态码
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindAlreadyExists:
		return http.StatusConflict
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// FromError 根据业务错误返回响应，fallback 为非业务错误时的提示
func FromError(c *gin.Context, err error, fallback string) {
	var e *apperr.Error
	if errors.As(err, &e) {
		message := e.Message
		if e.Kind == apperr.KindInternal && fallback != "" {
			message = fallback
		}
		Error(c, StatusOf(e.Kind), message, err)
		return
	}
	InternalServerError(c, fallback, err)
}

// BindError 参数绑定失败响应
func BindError(c *gin.Context, err error) {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		BadRequest(c, FormatValidationError(errs), err)
		return
	}
	BadRequest(c, "参数错误", err)
}

// 错误信息映射
var validationMessages = map[string]string{
	"required": "不能为空",
	"min":      "长度不能小于%v",
	"max":      "长度不能大于%v",
	"email":    "必须是有效的邮箱地址",
	"url":      "必须是有效的网址",
	"oneof":    "必须是[%v]中的一个",
	"gt":       "必须大于%v",
	"gte":      "必须大于等于%v",
	"lt":       "必须小于%v",
	"lte":      "必须小于等于%v",
}

// 字段名称映射
var validationFields = map[string]string{
	"Name":        "名称",
	"Description": "描述",
	"URL":         "网址",
	"Icon":        "图标",
	"Username":    "用户名",
	"Password":    "密码",
	"NewPassword": "新密码",
	"Email":       "邮箱",
	"CategoryID":  "分类",
	"Active":      "拖动项",
}

// FormatValidationError 将校验错误转换为可读文本，只返回第一个错误
func FormatValidationError(errs validator.ValidationErrors) string {
	firstErr := errs[0]

	fieldName := validationFields[firstErr.Field()]
	if fieldName == "" {
		fieldName = firstErr.Field()
	}

	msgTemplate := validationMessages[firstErr.Tag()]
	if msgTemplate == "" {
		msgTemplate = "验证失败"
	}

	if firstErr.Param() != "" && strings.Contains(msgTemplate, "%v") {
		return fieldName + fmt.Sprintf(msgTemplate, firstErr.Param())
	}
	return fieldName + msgTemplate
}
