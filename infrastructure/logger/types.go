// Package logger is the structured logging layer shared by every seoscan component.
package logger

// Config controls the zap backend.
type Config struct {
	// Level is the minimum level (debug, info, warn, error, fatal).
	Level string `env:"LOG_LEVEL" yaml:"level"`
	// Format is "json" or "console". Console is only honoured in development.
	Format string `env:"LOG_FORMAT" yaml:"format"`
	// Development switches to a human readable encoder and disables sampling.
	Development bool `env:"LOG_DEVELOPMENT" yaml:"development"`
	// OutputPaths are zap sink URLs or file paths.
	OutputPaths []string `env:"LOG_OUTPUT_PATHS" yaml:"output_paths"`
}

const (
	DefaultLevel  = "info"
	DefaultFormat = "json"

	formatConsole = "console"
)

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = DefaultLevel
	}
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if len(c.OutputPaths) == 0 {
		c.OutputPaths = []string{"stdout"}
	}
}
