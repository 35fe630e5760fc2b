package render

import (
	"fmt"
	"reflect"
	"strings"
)

// TemplateI18nConfig configures TemplateI18nFuncs.
type TemplateI18nConfig struct {
	// LocaleKey is the map key or struct field holding the locale when the
	// template passes its data instead of a locale string. Default "locale".
	LocaleKey string
	// FuncName names the translate helper. Default "translate".
	FuncName string
	OnMissing MissingTranslationHandler
}

// TemplateI18nFuncs returns template globals:
//
//	translate(localeSrc, key, ...args) string
//	current_locale(localeSrc) string
//
// localeSrc is a locale string or any value carrying one under LocaleKey.
func TemplateI18nFuncs(t Translator, cfg TemplateI18nConfig) map[string]any {
	localeKey := strings.TrimSpace(cfg.LocaleKey)
	if localeKey == "" {
		localeKey = "locale"
	}
	name := strings.TrimSpace(cfg.FuncName)
	if name == "" {
		name = "translate"
	}
	onMissing := cfg.OnMissing
	if onMissing == nil {
		onMissing = missingTranslationDefault
	}

	return map[string]any{
		name: func(localeSrc any, key string, args ...any) string {
			return translate(resolveLocale(localeSrc, localeKey), key, "", t, onMissing, args...)
		},
		"current_locale": func(localeSrc any) string {
			return resolveLocale(localeSrc, localeKey)
		},
	}
}

func resolveLocale(src any, key string) string {
	switch data := src.(type) {
	case nil:
		return ""
	case string:
		return data
	case map[string]string:
		return data[key]
	case map[string]any:
		if v, ok := data[key]; ok && v != nil {
			return strings.TrimSpace(fmt.Sprint(v))
		}
		return ""
	}

	value := reflect.ValueOf(src)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return ""
		}
		value = value.Elem()
	}
	if value.Kind() == reflect.Struct {
		for i := 0; i < value.NumField(); i++ {
			field := value.Type().Field(i)
			if field.IsExported() && strings.EqualFold(field.Name, key) && value.Field(i).Kind() == reflect.String {
				return value.Field(i).String()
			}
		}
	}
	return ""
}
