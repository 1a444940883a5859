package config

import (
	"fmt"
	"reflect"
	"time"

	"gopkg.in/yaml.v3"
)

const redactedValue = "***"

// String renders every setting as YAML, credentials included.
func (c *Config) String() string {
	return toYAML(settingsOf(reflect.ValueOf(c).Elem(), reflect.Value{}, false))
}

// Redacted renders the settings as YAML for logs and `config show`. Fields
// tagged redact are masked whenever they are set, and so is every field that
// secrets (as returned by LoadWithSecrets) sets.
func (c *Config) Redacted(secrets *Config) string {
	var mask reflect.Value
	if secrets != nil {
		mask = reflect.ValueOf(secrets).Elem()
	}
	return toYAML(settingsOf(reflect.ValueOf(c).Elem(), mask, true))
}

func toYAML(settings map[string]any) string {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Sprintf("<unprintable config: %v>", err)
	}
	return string(data)
}

func settingsOf(v, mask reflect.Value, redactTagged bool) map[string]any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := range t.NumField() {
		field, value := t.Field(i), v.Field(i)
		var masked reflect.Value
		if mask.IsValid() {
			masked = mask.Field(i)
		}

		name := settingName(field)
		switch {
		case value.Kind() == reflect.Struct:
			out[name] = settingsOf(value, masked, redactTagged)
		case redactTagged && field.Tag.Get("redact") == "true" && !value.IsZero():
			out[name] = redactedValue
		case masked.IsValid() && !masked.IsZero():
			out[name] = redactedValue
		default:
			out[name] = plainValue(value)
		}
	}
	return out
}

func plainValue(v reflect.Value) any {
	if d, ok := v.Interface().(time.Duration); ok {
		return d.String()
	}
	return v.Interface()
}
