package cli

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nimburion/itemservice/pkg/config"
	"github.com/nimburion/itemservice/pkg/observability/logger"
)

// flags are the persistent flags every subcommand loads configuration with.
type flags struct {
	configFile  string
	envFile     string
	secretsFile string
	serviceName string
}

func (f *flags) bind(fs *pflag.FlagSet, opts ServiceCommandOptions) {
	fs.StringVarP(&f.configFile, "config-file", "c", opts.ConfigPath, "config file path")
	fs.StringVar(&f.envFile, "env-file", "", "dotenv file read into the environment first; set variables win")
	fs.StringVar(&f.secretsFile, "secret-file", "", "secrets file, overrides "+opts.EnvPrefix+"_SECRETS_FILE")
	fs.StringVar(&f.serviceName, "service-name", "", "override service.name")
}

type session struct {
	opts  ServiceCommandOptions
	flags flags
}

// load returns the validated configuration and the values that came from the
// secrets file, if any.
func (s *session) load() (*config.Config, *config.Config, error) {
	if path := strings.TrimSpace(s.flags.envFile); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	cfg, secrets, err := config.NewViperLoader(s.flags.configFile, s.opts.EnvPrefix).
		WithServiceNameDefault(s.opts.Name).
		WithSecretsFile(s.flags.secretsFile).
		LoadWithSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if name := strings.TrimSpace(s.flags.serviceName); name != "" {
		cfg.Service.Name = name
	}

	if s.opts.ValidateConfig != nil {
		if err := s.opts.ValidateConfig(cfg); err != nil {
			return nil, nil, fmt.Errorf("custom validation failed: %w", err)
		}
	}
	return cfg, secrets, nil
}

// loadWithLogger also builds the logger described by the configuration and,
// at debug level, logs the redacted configuration through it.
func (s *session) loadWithLogger() (*config.Config, logger.Logger, error) {
	cfg, secrets, err := s.load()
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.NewZapLogger(logger.Config{
		Level:  logger.LogLevel(cfg.Observability.LogLevel),
		Format: logger.LogFormat(cfg.Observability.LogFormat),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	log.Debug("effective configuration", "config", cfg.Redacted(secrets))
	return cfg, log, nil
}
