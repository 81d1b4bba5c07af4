package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	infraconfig "github.com/jonesrussell/seoscan/infrastructure/config"
	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/internal/config"
)

// ServiceName tags logs, health responses and the server banner.
const ServiceName = "seoscan"

var (
	errLoggerRequired = errors.New("logger is required")
	errConfigRequired = errors.New("config is required")
)

// Options are the command-line overrides applied over the loaded config.
type Options struct {
	// ConfigPath defaults to $CONFIG_PATH or config.yml.
	ConfigPath string
	Debug      bool
}

// CommandDeps holds the config and logger every command starts from.
type CommandDeps struct {
	Logger infralogger.Logger
	Config *config.Config
}

// NewCommandDeps loads config, applies opts and creates the logger.
func NewCommandDeps(opts Options) (*CommandDeps, error) {
	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.Debug {
		cfg.Debug = true
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	log, err := CreateLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	deps := &CommandDeps{
		Logger: log.With(infralogger.String("service", ServiceName)),
		Config: cfg,
	}
	if err = deps.Validate(); err != nil {
		return nil, fmt.Errorf("validate deps: %w", err)
	}
	return deps, nil
}

// LoadConfig reads path, falling back to $CONFIG_PATH and then config.yml.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = infraconfig.GetConfigPath("config.yml")
	}
	return config.Load(path)
}

// CreateLogger builds the zap logger. Debug forces the debug level and the
// development encoder.
func CreateLogger(cfg *config.Config) (infralogger.Logger, error) {
	logCfg := cfg.Logging
	logCfg.Level = strings.ToLower(logCfg.Level)
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}
	if cfg.Debug {
		logCfg.Level = "debug"
		logCfg.Development = true
	}
	return infralogger.New(logCfg)
}

// Validate ensures required dependencies are set.
func (d *CommandDeps) Validate() error {
	if d.Logger == nil {
		return errLoggerRequired
	}
	if d.Config == nil {
		return errConfigRequired
	}
	return nil
}
