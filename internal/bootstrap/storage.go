package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	infraredis "github.com/jonesrussell/seoscan/infrastructure/redis"
	"github.com/jonesrussell/seoscan/internal/config"
	"github.com/jonesrussell/seoscan/internal/store"
)

// StorageComponents holds the store and the connections behind it. Redis
// and DB are nil when the configuration does not need them.
type StorageComponents struct {
	Store  *store.Store
	Locker store.Locker
	Redis  *redis.Client
	DB     *sqlx.DB
}

// SetupStorage connects the configured backend and, when Redis is
// available, the cross-instance enqueue lock.
func SetupStorage(ctx context.Context, cfg *config.Config, log infralogger.Logger) (*StorageComponents, error) {
	sc := &StorageComponents{}

	if cfg.UsesRedis() {
		client, err := infraredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		sc.Redis = client
		sc.Locker = store.NewRedisLocker(client, cfg.Redis.KeyPrefix, store.LockConfig{TTL: cfg.Store.LockTTL})
		log.Info("Connected to Redis", infralogger.String("address", cfg.Redis.Address))
	}

	var backend store.Backend
	switch cfg.Store.Backend {
	case config.BackendRedis:
		backend = store.NewRedisBackend(sc.Redis, cfg.Redis.KeyPrefix, cfg.Janitor.Retention)
	case config.BackendPostgres:
		db, err := store.OpenPostgres(ctx, cfg.Database)
		if err != nil {
			sc.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		sc.DB = db
		pg := store.NewPostgresBackend(db)
		if cfg.Store.Migrate {
			if err = pg.Migrate(ctx); err != nil {
				sc.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
			log.Info("Applied store migrations")
		}
		backend = pg
	default:
		backend = store.NewMemoryBackend()
	}

	sc.Store = store.New(backend)
	log.Info("Store ready", infralogger.String("backend", cfg.Store.Backend))
	return sc, nil
}

// Close releases the connections. It is safe on a partially built value.
func (sc *StorageComponents) Close() {
	if sc.Redis != nil {
		_ = sc.Redis.Close()
	}
	if sc.DB != nil {
		_ = sc.DB.Close()
	}
}
