package form

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// ValidationError carries field-local messages keyed by dotted path.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "form: validation failed: " + strings.Join(parts, "; ")
}

// Validate runs field rules and record validators over the current values,
// stores the result and returns it.
func (f *Form) Validate() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	errs := map[string]string{}
	validateFields(f.fields, f.values, "", errs)
	for _, v := range f.cfg.validators {
		for path, msg := range v(model.CloneRecord(f.values)) {
			if _, exists := errs[path]; !exists {
				errs[path] = msg
			}
		}
	}
	f.errors = errs
	return copyErrors(errs)
}

func copyErrors(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func validateFields(fields []model.Field, values map[string]any, prefix string, errs map[string]string) {
	for _, field := range fields {
		if !field.Actionable() {
			continue
		}
		path := field.Key
		if prefix != "" {
			path = prefix + "." + field.Key
		}
		value := values[field.Key]

		if msg := ValidateValue(field, value); msg != "" {
			errs[path] = msg
			continue
		}

		switch field.Type {
		case model.FieldTypeItemsForm:
			for i, raw := range asItems(value) {
				if entry, ok := raw.(map[string]any); ok {
					validateFields(field.Nested, entry, path+"."+strconv.Itoa(i), errs)
				}
			}
		case model.FieldTypeCheckForm:
			current, _ := value.(map[string]any)
			for option, raw := range current {
				if entry, ok := raw.(map[string]any); ok {
					validateFields(field.Nested, entry, path+"."+option, errs)
				}
			}
		}
	}
}

// ValidateValue checks one value against the field's required flag, number
// bounds and validation rules, returning the first message.
func ValidateValue(field model.Field, value any) string {
	if field.Required && isEmpty(value) {
		return "required"
	}
	for _, rule := range field.Validations {
		if rule.Kind == model.ValidationRuleRequired && isEmpty(value) {
			return message(rule, "required")
		}
	}
	if isEmpty(value) {
		return ""
	}

	bounds := field.Number
	if field.Type == model.FieldTypeSlider {
		bounds = field.Slider
	}
	if bounds != nil {
		if n, ok := toFloat(value); ok {
			if bounds.Min != nil && n < *bounds.Min {
				return fmt.Sprintf("must be at least %s", model.Stringify(*bounds.Min))
			}
			if bounds.Max != nil && n > *bounds.Max {
				return fmt.Sprintf("must be at most %s", model.Stringify(*bounds.Max))
			}
		} else {
			return "must be a number"
		}
	}

	for _, rule := range field.Validations {
		if msg := applyRule(rule, value); msg != "" {
			return msg
		}
	}
	return ""
}

func applyRule(rule model.ValidationRule, value any) string {
	param := rule.Params["value"]
	switch rule.Kind {
	case model.ValidationRuleMin, model.ValidationRuleMax:
		limit, err := strconv.ParseFloat(param, 64)
		if err != nil {
			return ""
		}
		n, ok := toFloat(value)
		if !ok {
			return message(rule, "must be a number")
		}
		if rule.Kind == model.ValidationRuleMin && n < limit {
			return message(rule, "must be at least "+param)
		}
		if rule.Kind == model.ValidationRuleMax && n > limit {
			return message(rule, "must be at most "+param)
		}
	case model.ValidationRuleMinLength, model.ValidationRuleMaxLength:
		limit, err := strconv.Atoi(param)
		if err != nil {
			return ""
		}
		n := length(value)
		if rule.Kind == model.ValidationRuleMinLength && n < limit {
			return message(rule, fmt.Sprintf("must have at least %d characters", limit))
		}
		if rule.Kind == model.ValidationRuleMaxLength && n > limit {
			return message(rule, fmt.Sprintf("must have at most %d characters", limit))
		}
	case model.ValidationRulePattern:
		re, err := regexp.Compile(rule.Params["pattern"])
		if err != nil {
			return ""
		}
		if !re.MatchString(model.Stringify(value)) {
			return message(rule, "has an invalid format")
		}
	case model.ValidationRuleEmail:
		addr, err := mail.ParseAddress(model.Stringify(value))
		if err != nil || addr.Address != model.Stringify(value) {
			return message(rule, "must be a valid email")
		}
	case model.ValidationRuleURL:
		u, err := url.ParseRequestURI(model.Stringify(value))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return message(rule, "must be a valid URL")
		}
	}
	return ""
}

func message(rule model.ValidationRule, fallback string) string {
	if msg := rule.Params["message"]; msg != "" {
		return msg
	}
	return fallback
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}

func length(value any) int {
	switch v := value.(type) {
	case string:
		return utf8.RuneCountInString(v)
	case []any:
		return len(v)
	case []string:
		return len(v)
	}
	return utf8.RuneCountInString(model.Stringify(value))
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	}
	return 0, false
}
