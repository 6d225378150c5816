package errors

import (
	stderrors "errors"
	"fmt"
)

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = 200
)

// HTTP层错误码 (400-599)
const (
	CodeInvalidParam = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 业务错误码 (1000+)
const (
	CodeAccountDeactivated = 1001
	CodeTenantDeactivated  = 1002
	CodeNoTenantAssigned   = 1003
	CodeIngestionFailed    = 1101
	CodeStorageFailure     = 1102
)

// ========== 错误类型 ==========

var (
	ErrUnauthenticated    = stderrors.New("unauthenticated")
	ErrAccountDeactivated = stderrors.New("account deactivated")
	ErrTenantDeactivated  = stderrors.New("tenant deactivated")
	ErrNoTenantAssigned   = stderrors.New("no tenant assigned")
	ErrForbidden          = stderrors.New("forbidden")
	ErrValidationFailed   = stderrors.New("validation failed")
	ErrIngestionFailed    = stderrors.New("ingestion failed")
	ErrNotFound           = stderrors.New("not found")
	ErrStorageFailure     = stderrors.New("storage failure")
)

// 拒绝访问的原因
const (
	ForbiddenRole       = "role"
	ForbiddenPermission = "permission"
	ForbiddenOwnership  = "ownership"
)

// ForbiddenError 携带缺失的角色或权限
type ForbiddenError struct {
	Kind  string
	Value string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s %s required", e.Kind, e.Value)
}

// Is 使 errors.Is(err, ErrForbidden) 成立
func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// Forbidden 创建拒绝访问错误
func Forbidden(kind, value string) error {
	return &ForbiddenError{Kind: kind, Value: value}
}

// ValidationError 字段级校验错误
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Validation 创建单字段校验错误
func Validation(field, message string) error {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Is 转发标准库，避免调用方同时导入两个 errors 包
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As 转发标准库
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// CodeOf 将错误映射为响应码
func CodeOf(err error) int {
	switch {
	case err == nil:
		return CodeSuccess
	case Is(err, ErrUnauthenticated):
		return CodeUnauthorized
	case Is(err, ErrAccountDeactivated):
		return CodeAccountDeactivated
	case Is(err, ErrTenantDeactivated):
		return CodeTenantDeactivated
	case Is(err, ErrNoTenantAssigned):
		return CodeNoTenantAssigned
	case Is(err, ErrForbidden):
		return CodeForbidden
	case Is(err, ErrValidationFailed):
		return CodeInvalidParam
	case Is(err, ErrNotFound):
		return CodeNotFound
	case Is(err, ErrIngestionFailed):
		return CodeIngestionFailed
	case Is(err, ErrStorageFailure):
		return CodeStorageFailure
	default:
		return CodeServerError
	}
}

// EndsSession 会话终止类错误，客户端需要重新登录
func EndsSession(err error) bool {
	return Is(err, ErrAccountDeactivated) || Is(err, ErrTenantDeactivated) || Is(err, ErrNoTenantAssigned)
}
