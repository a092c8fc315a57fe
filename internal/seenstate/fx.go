package seenstate

import (
	"github.com/lumeapp/lume-stories/pkg/config"
	"github.com/lumeapp/lume-stories/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Provide(
	fx.Annotate(
		func(client *redis.Client, cfg *config.Config, log logger.Logger) *RedisTracker {
			return NewRedisTracker(client, cfg.Story.TTL, log)
		},
		fx.As(new(Tracker)),
	),
)
