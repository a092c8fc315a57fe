package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/lumeapp/lume-stories/internal/aggregator"
	"github.com/lumeapp/lume-stories/internal/aggregator/aggregatorimpl"
	"github.com/lumeapp/lume-stories/internal/composer"
	"github.com/lumeapp/lume-stories/internal/janitor"
	"github.com/lumeapp/lume-stories/internal/mediastore"
	_ "github.com/lumeapp/lume-stories/internal/migrations"
	"github.com/lumeapp/lume-stories/internal/playback"
	"github.com/lumeapp/lume-stories/internal/ratelimit"
	repositories "github.com/lumeapp/lume-stories/internal/repositories/fx"
	"github.com/lumeapp/lume-stories/internal/seenstate"
	"github.com/lumeapp/lume-stories/pkg/config"
	"github.com/lumeapp/lume-stories/pkg/logger"
	"github.com/lumeapp/lume-stories/pkg/pgx"
	"github.com/lumeapp/lume-stories/pkg/redis"
	"github.com/pressly/goose/v3"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
		pgx.New,
		redis.New,
	),
	fx.Provide(
		// One story per 10 seconds with a burst of 3 keeps publish spam
		// out of followers' trays.
		func() ratelimit.Limiter {
			return ratelimit.NewInMemoryLimiter(1, 10*time.Second, 3)
		},
	),
	repositories.Module,
	seenstate.Module,
	mediastore.Module,
	aggregatorimpl.Module,
	composer.Module,
	playback.Module,
	janitor.Module,
	fx.Invoke(runMigrations),
	fx.Invoke(run),
)

// runMigrations applies the registered Go migrations before anything else
// touches the schema.
func runMigrations(c *config.Config) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db, err := sql.Open("postgres", c.GetDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	return goose.Up(db, ".")
}

func run(lc fx.Lifecycle, log logger.Logger, cfg *config.Config, j *janitor.Janitor,
	_ aggregator.Service, _ *composer.Factory, _ *playback.Factory) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go startHttpServer(log, cfg)

			if err := j.ScheduleExpirySweep(ctx); err != nil {
				log.Error("Failed to schedule expiry sweep", "error", err)
				return err
			}

			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func startHttpServer(log logger.Logger, cfg *config.Config) {
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		healthCheckHandler(w, r, log)
	})

	log.Info(fmt.Sprintf("Starting server on :%d", cfg.App.Port))

	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.App.Port), nil); err != nil {
		log.Error("Server failed to start", "error", err)
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request, logger logger.Logger) {
	logger.Info("Health check request received", "Method", r.Method, "URL", r.URL.String())
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		logger.Error("Failed to write response", "Error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
