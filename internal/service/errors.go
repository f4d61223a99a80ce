package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation 匹配所有 *ValidationError
	ErrValidation = errors.New("validation failed")
	// ErrHabitNotFound 在习惯不存在或不属于当前用户时返回，两者不作区分
	ErrHabitNotFound = errors.New("habit not found")
	// ErrNoteNotFound 在笔记不存在或不属于当前用户时返回
	ErrNoteNotFound = errors.New("note not found")
	// ErrInactiveDay 表示目标日期不在习惯的活跃日内
	ErrInactiveDay = errors.New("habit is not active on this day")
	// ErrDispatchConflict 表示该用户本周的摘要已被其他派发占用
	ErrDispatchConflict = errors.New("weekly digest already claimed for this week")
	// ErrUpstream 包装存储或邮件服务的失败
	ErrUpstream = errors.New("upstream failure")
	// ErrDigestNotConfigured 表示缺少发件人或邮件服务配置
	ErrDigestNotConfigured = errors.New("weekly digest email is not configured")
)

// ValidationKind 标识校验失败的字段
type ValidationKind string

const (
	InvalidTitle      ValidationKind = "InvalidTitle"
	InvalidTarget     ValidationKind = "InvalidTarget"
	InvalidFrequency  ValidationKind = "InvalidFrequency"
	InvalidActiveDays ValidationKind = "InvalidActiveDays"
	InvalidValue      ValidationKind = "InvalidValue"
	InvalidNote       ValidationKind = "InvalidNote"
	InvalidDate       ValidationKind = "InvalidDate"
)

// ValidationError 描述调用方数据不满足约束
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is 让 errors.Is(err, ErrValidation) 对任意 Kind 生效
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationError(kind ValidationKind, format string, args ...any) error {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ValidationKindOf 返回 err 链中校验错误的 Kind
func ValidationKindOf(err error) (ValidationKind, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Kind, true
	}
	return "", false
}

func upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}
