package config

import (
	"fmt"
	"maps"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

const defaultEnvPrefix = "APP"

// envAbbreviations shortens the first segment of a key in variable names.
var envAbbreviations = map[string]string{"management": "MGMT"}

// envAlias is read for a key after the key's own variables. Global aliases
// are taken verbatim, the others get the loader prefix.
type envAlias struct {
	name   string
	global bool
}

var envAliases = map[string][]envAlias{
	"service.environment": {{name: "ENVIRONMENT"}},
	"dynamodb.table":      {{name: "TABLE_NAME"}},
	"dynamodb.region":     {{name: "AWS_REGION", global: true}},
}

// ViperLoader resolves a Config with precedence ENV > file > defaults.
type ViperLoader struct {
	configFile         string
	envPrefix          string
	serviceNameDefault string
	secretsPath        string
}

// NewViperLoader reads configFile when it is set, and variables named
// <PREFIX>_<KEY> such as APP_DYNAMODB_TABLE. An empty prefix means APP.
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	prefix := strings.ToUpper(strings.TrimSpace(envPrefix))
	if prefix == "" {
		prefix = defaultEnvPrefix
	}
	return &ViperLoader{configFile: configFile, envPrefix: prefix}
}

// WithServiceNameDefault replaces the built-in service.name default.
func (l *ViperLoader) WithServiceNameDefault(name string) *ViperLoader {
	l.serviceNameDefault = strings.TrimSpace(name)
	return l
}

// Load resolves and validates the configuration.
func (l *ViperLoader) Load() (*Config, error) {
	v, err := l.newViper()
	if err != nil {
		return nil, err
	}
	return l.decode(v)
}

func (l *ViperLoader) newViper() (*viper.Viper, error) {
	defaults := DefaultConfig()
	if l.serviceNameDefault != "" {
		defaults.Service.Name = l.serviceNameDefault
	}

	v := viper.New()
	for key, value := range flatten(reflect.ValueOf(defaults).Elem(), "") {
		v.SetDefault(key, value)
		if err := v.BindEnv(append([]string{key}, l.envNames(key)...)...); err != nil {
			return nil, fmt.Errorf("bind environment for %s: %w", key, err)
		}
	}

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}
	return v, nil
}

func (l *ViperLoader) decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envNames lists the variables bound to key, highest priority first:
// the abbreviated name, the full name, then aliases.
func (l *ViperLoader) envNames(key string) []string {
	segments := strings.Split(strings.ToUpper(key), ".")
	full := l.prefixed(strings.Join(segments, "_"))

	var names []string
	if short, ok := envAbbreviations[strings.ToLower(segments[0])]; ok {
		segments[0] = short
		names = append(names, l.prefixed(strings.Join(segments, "_")))
	}
	names = append(names, full)
	for _, alias := range envAliases[key] {
		if alias.global {
			names = append(names, alias.name)
		} else {
			names = append(names, l.prefixed(alias.name))
		}
	}
	return names
}

func (l *ViperLoader) prefixed(name string) string {
	return l.envPrefix + "_" + name
}

// flatten maps each leaf field of the struct v to its dotted key.
func flatten(v reflect.Value, prefix string) map[string]any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := range t.NumField() {
		key := prefix + settingName(t.Field(i))
		if field := v.Field(i); field.Kind() == reflect.Struct {
			maps.Copy(out, flatten(field, key+"."))
		} else {
			out[key] = field.Interface()
		}
	}
	return out
}

func settingName(f reflect.StructField) string {
	if tag, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ","); tag != "" && tag != "-" {
		return tag
	}
	return strings.ToLower(f.Name)
}
