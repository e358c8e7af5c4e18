package apperr

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// 错误分类。调用方使用 errors.Is 判断类别
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConstraint = errors.New("constraint violation")
	ErrRemote     = errors.New("remote error")
	ErrState      = errors.New("state error")
)

// Validation 客户端预检失败，不会触达网络或存储
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// State 在不兼容的生命周期状态下调用
func State(msg string) error {
	return fmt.Errorf("%w: %s", ErrState, msg)
}

// NotFound 存储查询未命中
func NotFound(entity string, id interface{}) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
}

// Translate 将 gorm / 驱动错误映射为业务错误类别
func Translate(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConstraint),
		errors.Is(err, ErrValidation), errors.Is(err, ErrRemote), errors.Is(err, ErrState):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}

	// 部分驱动未开启 TranslateError 时只能靠错误文本识别
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "violates foreign key constraint") {
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	return err
}

// Message 返回适合展示给用户的错误信息
func Message(err error) string {
	if err == nil {
		return ""
	}
	var re *RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return err.Error()
}

// RemoteError 远端返回非 2xx
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error: status %d: %s", e.Status, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return ErrRemote
}
