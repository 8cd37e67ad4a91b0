package app

import (
	"context"
	"errors"
	"fmt"

	"planner-agent/internal/config"
	"planner-agent/internal/db"
	"planner-agent/internal/logger"
	"planner-agent/internal/redis"
	"planner-agent/internal/storage"
)

// Infra holds the durable storage backend chosen by configuration and the
// connections it owns.
type Infra struct {
	Storage storage.Store
	DB      *db.DB
	Redis   *redis.Client
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		logger.Warn("memory storage selected; sessions will not survive a restart", nil)
		return &Infra{Storage: storage.NewMemoryStore()}, nil

	case config.DriverFile:
		fs, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageNamespace)
		if err != nil {
			return nil, err
		}
		logger.Info("file storage ready", map[string]any{"path": cfg.StoragePath})
		return &Infra{Storage: fs}, nil

	case config.DriverRedis:
		redisClient, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		logger.Info("redis ready", map[string]any{"addr": cfg.RedisAddr})
		return &Infra{
			Storage: storage.NewRedisStore(redisClient.Client, cfg.StorageNamespace),
			Redis:   redisClient,
		}, nil

	case config.DriverPostgres:
		database, err := db.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		logger.Info("database ready", nil)
		return &Infra{
			Storage: storage.NewPostgresStore(database.DB, cfg.StorageNamespace),
			DB:      database,
		}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

func (i *Infra) Close() error {
	var errs []error
	if i.DB != nil {
		errs = append(errs, i.DB.Close())
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	return errors.Join(errs...)
}
