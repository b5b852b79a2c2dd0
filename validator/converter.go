// Package validator 把 ozzo-validation 的校验结果转换为 LayeredError
package validator

import (
	"errors"
	"sort"

	"github.com/KOMKZ/go-yogan-bucket/errcode"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validatable 可校验接口
type Validatable interface {
	Validate() error
}

// Validate 执行校验，失败时返回 base 的副本：
// 字段级错误放在 data["fields"]（嵌套错误展开为 a.b.c 形式），原始错误作为 cause
func Validate(v Validatable, base *errcode.LayeredError) error {
	err := v.Validate()
	if err == nil {
		return nil
	}

	var validationErrs validation.Errors
	if errors.As(err, &validationErrs) {
		return base.WithData("fields", Flatten(validationErrs)).Wrap(err)
	}
	return base.Wrap(err)
}

// Flatten 展开嵌套的 validation.Errors
func Flatten(errs validation.Errors) map[string]string {
	fields := make(map[string]string)
	flatten("", errs, fields)
	return fields
}

func flatten(prefix string, errs validation.Errors, out map[string]string) {
	for field, fieldErr := range errs {
		if fieldErr == nil {
			continue
		}
		key := field
		if prefix != "" {
			key = prefix + "." + field
		}

		var nested validation.Errors
		if errors.As(fieldErr, &nested) {
			flatten(key, nested, out)
			continue
		}
		out[key] = fieldErr.Error()
	}
}

// Fields 按字母序返回出错字段名
func Fields(err error) []string {
	var le *errcode.LayeredError
	if !errors.As(err, &le) {
		return nil
	}
	fields, _ := le.Data()["fields"].(map[string]string)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
