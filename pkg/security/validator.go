package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validator 验证器接口
type Validator interface {
	Validate(value string) error
	Sanitize(value string) string
}

// StringValidator 字符串验证器
type StringValidator struct {
	Field     string
	MinLength int
	MaxLength int // 0 表示不限制
	Required  bool
}

// NewStringValidator 创建字符串验证器
func NewStringValidator(field string, minLength, maxLength int, required bool) *StringValidator {
	return &StringValidator{
		Field:     field,
		MinLength: minLength,
		MaxLength: maxLength,
		Required:  required,
	}
}

// Validate 验证字符串，空白字符串视为空
func (sv *StringValidator) Validate(value string) error {
	if strings.TrimSpace(value) == "" {
		if sv.Required {
			return fmt.Errorf("%s is required", sv.Field)
		}
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < sv.MinLength {
		return fmt.Errorf("%s must be at least %d characters", sv.Field, sv.MinLength)
	}
	if sv.MaxLength > 0 && length > sv.MaxLength {
		return fmt.Errorf("%s must be at most %d characters", sv.Field, sv.MaxLength)
	}
	return nil
}

// Sanitize 去除控制字符并标准化空白
func (sv *StringValidator) Sanitize(value string) string {
	value = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' {
			return -1
		}
		return r
	}, value)
	return strings.TrimSpace(value)
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9+._%\-]{1,256}@[a-zA-Z0-9][a-zA-Z0-9\-]{0,64}(\.[a-zA-Z0-9][a-zA-Z0-9\-]{0,25})+$`)

// EmailValidator 邮箱验证器
type EmailValidator struct {
	Required bool
}

// NewEmailValidator 创建邮箱验证器
func NewEmailValidator(required bool) *EmailValidator {
	return &EmailValidator{Required: required}
}

// Validate 验证邮箱
func (ev *EmailValidator) Validate(value string) error {
	if strings.TrimSpace(value) == "" {
		if ev.Required {
			return fmt.Errorf("email is required")
		}
		return nil
	}
	if !emailRegex.MatchString(value) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// Sanitize 清理邮箱
func (ev *EmailValidator) Sanitize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// ValidatorSet 按字段组合多个验证器，返回第一个错误
type ValidatorSet struct {
	fields []string
	rules  map[string]Validator
}

// NewValidatorSet 创建验证器集合
func NewValidatorSet() *ValidatorSet {
	return &ValidatorSet{rules: make(map[string]Validator)}
}

// AddRule 添加验证规则，按添加顺序执行
func (vs *ValidatorSet) AddRule(field string, v Validator) *ValidatorSet {
	if _, ok := vs.rules[field]; !ok {
		vs.fields = append(vs.fields, field)
	}
	vs.rules[field] = v
	return vs
}

// Validate 清理后逐字段验证，返回清理后的数据
func (vs *ValidatorSet) Validate(data map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	for _, field := range vs.fields {
		v := vs.rules[field]
		clean := v.Sanitize(data[field])
		if err := v.Validate(clean); err != nil {
			return nil, err
		}
		out[field] = clean
	}
	return out, nil
}
