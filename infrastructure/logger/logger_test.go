package logger_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/seoscan/infrastructure/logger"
)

func TestNew_WritesToFile(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "seoscan.log")
	log, err := logger.New(logger.Config{Level: "debug", OutputPaths: []string{out}})
	require.NoError(t, err)

	log.With(logger.Component("test")).Info("scan queued", logger.ScanID("abc"), logger.Hostname("example.com"))
	require.NoError(t, log.Sync())
	assert.FileExists(t, out)
}

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	cfg := logger.Config{}
	cfg.SetDefaults()

	assert.Equal(t, logger.DefaultLevel, cfg.Level)
	assert.Equal(t, logger.DefaultFormat, cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
}

func TestNew_DevelopmentConsole(t *testing.T) {
	t.Parallel()

	log, err := logger.New(logger.Config{
		Development: true,
		Format:      "console",
		OutputPaths: []string{filepath.Join(t.TempDir(), "dev.log")},
	})
	require.NoError(t, err)
	log.Debug("visible in development")
}

func TestContext_RoundTrip(t *testing.T) {
	t.Parallel()

	nop := logger.NewNop()
	ctx := logger.WithContext(context.Background(), nop)

	assert.Same(t, nop, logger.FromContext(ctx))
}

func TestFromContext_FallbackIsUsable(t *testing.T) {
	t.Parallel()

	fallback := logger.FromContext(context.Background())
	require.NotNil(t, fallback)

	fallback.Debug("filtered")
	fallback.Warn("kept", logger.String("key", "value"))
}
