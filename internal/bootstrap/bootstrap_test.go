package bootstrap_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infraevents "github.com/jonesrussell/seoscan/infrastructure/events"
	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/internal/bootstrap"
	"github.com/jonesrussell/seoscan/internal/config"
	"github.com/jonesrussell/seoscan/internal/events"
	"github.com/jonesrussell/seoscan/internal/store"
)

const waitTimeout = 2 * time.Second

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	return cfg
}

func startNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	require.NoError(t, err)
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	t.Cleanup(srv.Shutdown)
	return srv.ClientURL()
}

func TestNewCommandDeps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0o600))

	deps, err := bootstrap.NewCommandDeps(bootstrap.Options{ConfigPath: path, Debug: true})
	require.NoError(t, err)

	assert.Equal(t, 9191, deps.Config.Server.Port)
	assert.True(t, deps.Config.Debug)
	require.NoError(t, deps.Validate())
}

func TestNewCommandDeps_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: mongo\n"), 0o600))

	_, err := bootstrap.NewCommandDeps(bootstrap.Options{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.backend")
}

func TestCommandDeps_Validate(t *testing.T) {
	t.Parallel()

	require.Error(t, (&bootstrap.CommandDeps{Config: &config.Config{}}).Validate())
	require.Error(t, (&bootstrap.CommandDeps{Logger: infralogger.NewNop()}).Validate())
}

func TestHTTPServer_MemoryWiring(t *testing.T) {
	cfg := loadConfig(t)
	cfg.SSE.Enabled = true
	deps := &bootstrap.CommandDeps{Logger: infralogger.NewNop(), Config: cfg}
	ctx := context.Background()

	storage, err := bootstrap.SetupStorage(ctx, cfg, deps.Logger)
	require.NoError(t, err)
	assert.Nil(t, storage.Redis)
	assert.Nil(t, storage.Locker)

	ev, err := bootstrap.SetupEvents(ctx, cfg, nil, deps.Logger)
	require.NoError(t, err)
	require.NotNil(t, ev.Broker)

	services, err := bootstrap.SetupServices(ctx, deps, storage, ev)
	require.NoError(t, err)
	t.Cleanup(func() {
		ev.StopBroker(deps.Logger)
		services.Close(deps.Logger)
		require.NoError(t, services.Orchestrator.Shutdown(context.Background()))
	})
	assert.Nil(t, services.Janitor)
	assert.Nil(t, services.Pipeline.Checker)
	assert.Contains(t, services.Aggregator.Configured(), "performance")

	router := bootstrap.NewHTTPServer(deps, storage, ev, services).Router()

	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		wantCode int
		wantBody string
	}{
		{name: "health", method: http.MethodGet, target: "/health", wantCode: http.StatusOK, wantBody: `"service":"seoscan"`},
		{name: "metrics", method: http.MethodGet, target: "/metrics", wantCode: http.StatusOK, wantBody: "go_goroutines"},
		{name: "opportunities without url", method: http.MethodPost, target: "/api/v1/opportunities", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "seo invalid url", method: http.MethodPost, target: "/api/v1/seo", body: `{"url":"ftp://x"}`, wantCode: http.StatusBadRequest},
		{name: "unknown scan", method: http.MethodGet, target: "/api/v1/scan/status?scanId=missing", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestSetupStorage_Redis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	cfg := &config.Config{}
	cfg.Store.Backend = config.BackendRedis
	cfg.Redis.Address = mr.Addr()
	cfg.Redis.SetDefaults()
	cfg.Janitor.SetDefaults()

	storage, err := bootstrap.SetupStorage(context.Background(), cfg, infralogger.NewNop())
	require.NoError(t, err)
	t.Cleanup(storage.Close)

	require.NotNil(t, storage.Redis)
	require.NotNil(t, storage.Locker)
	assert.Nil(t, storage.DB)

	ctx := context.Background()
	created, err := storage.Store.CreateScan(ctx, store.NewScan{
		WebsiteURL: "https://example.com",
		Hostname:   "example.com",
	})
	require.NoError(t, err)

	got, err := storage.Store.GetScan(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusQueued, got.Status)
	assert.NotEmpty(t, mr.Keys())
}

func TestSetupStorage_RedisUnreachable(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Store.Backend = config.BackendRedis
	cfg.Redis.Address = "127.0.0.1:1"

	_, err := bootstrap.SetupStorage(context.Background(), cfg, infralogger.NewNop())
	require.Error(t, err)
}

func TestSetupEvents_NATSAndStream(t *testing.T) {
	t.Parallel()

	url := startNATS(t)
	mr := miniredis.RunT(t)

	cfg := &config.Config{}
	cfg.NATS = config.NATSConfig{Enabled: true, URL: url, SubjectPrefix: infraevents.DefaultSubjectPrefix}
	cfg.Redis.Address = mr.Addr()
	cfg.Redis.SetDefaults()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ev, err := bootstrap.SetupEvents(context.Background(), cfg, client, infralogger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { ev.Close(infralogger.NewNop()) })
	require.NotNil(t, ev.NATS)
	assert.Nil(t, ev.Broker)

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(sub.Close)
	msgs := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe(infraevents.DefaultSubjectPrefix+".>", msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	event := infraevents.NewScanEvent(infraevents.ScanQueued, "scan-1", "example.com", false)
	require.NoError(t, ev.Publisher.Publish(context.Background(), event))

	select {
	case msg := <-msgs:
		assert.Equal(t, infraevents.DefaultSubjectPrefix+".queued", msg.Subject)
		assert.Contains(t, string(msg.Data), `"scan_id":"scan-1"`)
	case <-time.After(waitTimeout):
		t.Fatal("no NATS message")
	}

	n, err := client.XLen(context.Background(), cfg.Redis.KeyPrefix+infraevents.StreamName).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSetupEvents_NoSinks(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.NATS = config.NATSConfig{Enabled: true, URL: "nats://127.0.0.1:1"}

	ev, err := bootstrap.SetupEvents(context.Background(), cfg, nil, infralogger.NewNop())
	require.NoError(t, err)

	assert.Nil(t, ev.NATS)
	assert.IsType(t, events.Nop{}, ev.Publisher)
}
