// Package validator provides the gin binding validator with custom rules
// Package validator 提供带自定义规则的 gin 绑定验证器
package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	validatorV10 "github.com/go-playground/validator/v10"
)

// CustomValidator implements binding.StructValidator
// CustomValidator 实现 binding.StructValidator 接口
type CustomValidator struct {
	once     sync.Once
	validate *validatorV10.Validate
}

// NewCustomValidator 创建验证器实例
func NewCustomValidator() *CustomValidator {
	return &CustomValidator{}
}

// ValidateStruct 校验结构体，非结构体类型直接放行
func (v *CustomValidator) ValidateStruct(obj any) error {
	value := reflect.ValueOf(obj)
	if value.Kind() == reflect.Ptr {
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil
	}

	v.lazyinit()
	return v.validate.Struct(obj)
}

// Engine 返回底层 validator 实例
func (v *CustomValidator) Engine() any {
	v.lazyinit()
	return v.validate
}

func (v *CustomValidator) lazyinit() {
	v.once.Do(func() {
		v.validate = validatorV10.New()
		v.validate.SetTagName("binding")
	})
}

// RegisterCustom registers custom validation rules on the active binding validator
// RegisterCustom 在当前绑定验证器上注册自定义校验规则
func RegisterCustom() {
	if v, ok := binding.Validator.Engine().(*validatorV10.Validate); ok {
		_ = v.RegisterValidation("safe_filename", validateSafeFilename)
	}
}

// validateSafeFilename 文件名不允许路径分隔符和目录跳转
func validateSafeFilename(fl validatorV10.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	if name == "." || name == ".." {
		return false
	}
	return true
}
