package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var secretsExtensions = []string{".yaml", ".yml", ".json", ".toml"}

// LoadWithSecrets is Load with a secrets file layered between the config file
// and the environment: ENV > secrets file > config file > defaults.
//
// The secrets file is the one given to WithSecretsFile, or else
// <PREFIX>_SECRETS_FILE when that is set. Otherwise it is
// secrets.<ext> next to the config file, then secrets.yaml (or .yml, .json,
// .toml) in the working directory. Having none is fine.
//
// The second result holds only what the secrets file set, for Redacted. It is
// nil when no secrets file was read.
func (l *ViperLoader) LoadWithSecrets() (*Config, *Config, error) {
	v, err := l.newViper()
	if err != nil {
		return nil, nil, err
	}
	path, err := l.secretsFile()
	if err != nil {
		return nil, nil, err
	}

	var secrets *Config
	if path != "" {
		if secrets, err = mergeSecrets(v, path); err != nil {
			return nil, nil, err
		}
	}

	cfg, err := l.decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, secrets, nil
}

func mergeSecrets(v *viper.Viper, path string) (*Config, error) {
	sv := viper.New()
	sv.SetConfigFile(path)
	if err := sv.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read secrets file %s: %w", path, err)
	}
	var secrets Config
	if err := sv.Unmarshal(&secrets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secrets file %s: %w", path, err)
	}
	if err := v.MergeConfigMap(sv.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to merge secrets: %w", err)
	}
	return &secrets, nil
}

// WithSecretsFile names the secrets file explicitly. It beats
// <PREFIX>_SECRETS_FILE and discovery.
func (l *ViperLoader) WithSecretsFile(path string) *ViperLoader {
	l.secretsPath = strings.TrimSpace(path)
	return l
}

// secretsFile returns "" when no secrets file exists. An explicit path that
// is empty or is not a regular file is an error.
func (l *ViperLoader) secretsFile() (string, error) {
	if l.secretsPath != "" {
		return checkSecretsFile("secrets file", l.secretsPath)
	}
	env := l.prefixed("SECRETS_FILE")
	if raw, ok := os.LookupEnv(env); ok {
		return checkSecretsFile(env, raw)
	}

	var candidates []string
	if l.configFile != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(l.configFile), "secrets"+filepath.Ext(l.configFile)))
	}
	for _, ext := range secretsExtensions {
		candidates = append(candidates, "secrets"+ext)
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", nil
}

func checkSecretsFile(source, raw string) (string, error) {
	path := strings.TrimSpace(raw)
	if path == "" {
		return "", fmt.Errorf("%s is set but empty", source)
	}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return "", fmt.Errorf("%s points to an inaccessible file %s: %w", source, path, err)
	case info.IsDir():
		return "", fmt.Errorf("%s must point to a file, got directory %s", source, path)
	}
	return filepath.Clean(path), nil
}
