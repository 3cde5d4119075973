package session

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/macrolog/internal/clock"
	"github.com/smallbiznis/macrolog/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("session.manager",
	fx.Provide(newStores),
	fx.Provide(newManager),
)

type stores struct {
	fx.Out

	Store  Store
	Locker *Locker
}

func newStores(lc fx.Lifecycle, cfg config.Config, clk clock.Clock, log *zap.Logger) (stores, error) {
	if cfg.Session.Store != config.SessionStoreRedis {
		return stores{Store: NewMemoryStore(cfg.Session.TTL, clk)}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.Session.RedisAddr),
		Password: strings.TrimSpace(cfg.Session.RedisPassword),
		DB:       cfg.Session.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			log.Info("closing session redis client")
			return client.Close()
		},
	})

	return stores{
		Store:  NewRedisStore(client, cfg.Session.TTL),
		Locker: NewLocker(client),
	}, nil
}

type managerParams struct {
	fx.In

	Cfg    config.Config
	Store  Store
	Locker *Locker `optional:"true"`
	Clock  clock.Clock
	Log    *zap.Logger
}

func newManager(p managerParams) *Manager {
	return NewManager(p.Store, p.Clock, p.Log, ManagerOptions{
		Secure: p.Cfg.Session.CookieSecure,
		TTL:    p.Cfg.Session.TTL,
		Locker: p.Locker,
	})
}
