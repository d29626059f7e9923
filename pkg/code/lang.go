package code

import (
	"errors"
	"fmt"
	"reflect"
)

// lang stores the message text per supported language
// lang 按支持的语言存储消息文本
type lang struct {
	en    string // English // 英文
	zh_cn string // Chinese // 中文
}

// Global message language, defaults to English
// 全局消息语言，默认英文
var lng = "en"

const FALLBACK_LNG = "en"

// GetMessage returns the message for the current global language,
// falling back to English when the field is empty
// GetMessage 返回当前全局语言的消息，字段为空时回退到英文
func (l lang) GetMessage() string {
	if lng == "" {
		lng = FALLBACK_LNG
	}
	val := reflect.ValueOf(l)
	field := val.FieldByName(lng)
	if field.IsValid() && field.String() != "" {
		return field.String()
	}
	fallbackField := val.FieldByName(FALLBACK_LNG)
	if fallbackField.IsValid() && fallbackField.String() != "" {
		return fallbackField.String()
	}
	return fmt.Sprintf("No message available for language: %s", lng)
}

// GetSupportedLanguages lists the languages the lang type carries
// GetSupportedLanguages 列出 lang 类型携带的全部语言
func GetSupportedLanguages() []string {
	var languages []string
	typ := reflect.TypeOf(lang{})
	for i := 0; i < typ.NumField(); i++ {
		languages = append(languages, typ.Field(i).Name)
	}
	return languages
}

// SetGlobalDefaultLang sets the global message language
// SetGlobalDefaultLang 设置全局消息语言
func SetGlobalDefaultLang(language string) error {
	for _, supported := range GetSupportedLanguages() {
		if language == supported {
			lng = language
			return nil
		}
	}
	lng = FALLBACK_LNG
	return errors.New("unsupported language type, set defaulting to " + FALLBACK_LNG)
}

// GetGlobalDefaultLang 获取全局消息语言
func GetGlobalDefaultLang() string {
	return lng
}
