package credit

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/apicredits/internal/config"
	creditdomain "github.com/smallbiznis/apicredits/internal/credit/domain"
	"github.com/smallbiznis/apicredits/internal/credit/repository"
	"github.com/smallbiznis/apicredits/internal/credit/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("credit.service",
	fx.Provide(service.NewService),
)

// StoreModule provides the balance store for the configured backend.
func StoreModule(backend string) fx.Option {
	switch backend {
	case config.StoreBackendSQL:
		return fx.Provide(repository.NewSQLStore)
	case config.StoreBackendBolt:
		return fx.Provide(provideBoltStore)
	case config.StoreBackendRedis:
		return fx.Provide(provideRedisStore)
	default:
		return fx.Provide(repository.NewMemoryStore)
	}
}

func provideBoltStore(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (creditdomain.Store, error) {
	db, err := repository.OpenBolt(cfg.BoltPath)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return db.Close()
		},
	})
	log.Info("credit store ready", zap.String("backend", config.StoreBackendBolt), zap.String("path", cfg.BoltPath))
	return repository.NewBoltStore(db), nil
}

type redisStoreParams struct {
	fx.In

	Client *redis.Client `optional:"true"`
	Log    *zap.Logger
}

func provideRedisStore(p redisStoreParams) (creditdomain.Store, error) {
	if p.Client == nil {
		return nil, errors.New("redis credit store requires REDIS_ADDR")
	}
	p.Log.Info("credit store ready", zap.String("backend", config.StoreBackendRedis))
	return repository.NewRedisStore(p.Client), nil
}
