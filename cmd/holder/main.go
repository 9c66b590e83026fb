// Command holder runs every registered moderation bot and answers the
// curator's registration requests.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"telegram-channel-moderation/internal/config"
	"telegram-channel-moderation/internal/holder"
	pg "telegram-channel-moderation/internal/infra/db/postgres"
	"telegram-channel-moderation/internal/infra/logging"
	"telegram-channel-moderation/internal/infra/metrics"
	"telegram-channel-moderation/internal/infra/queue"
	red "telegram-channel-moderation/internal/infra/redis"
	"telegram-channel-moderation/internal/infra/web"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode (console logs, no sampling)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *devMode, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 20)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Queue ----
	q, err := queue.New(cfg.Queue.URL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("queue")
	}
	defer q.Close()

	deps := holder.Deps{
		TxManager: pg.NewTxManager(pool),
		Bots:      pg.NewBotRepo(pool),
		Items:     pg.NewItemRepo(pool),
		Votes:     pg.NewVoteRepo(pool),
		Bans:      pg.NewBanRepo(pool),
		Stages:    pg.NewStageRepo(pool),
		Queue:     q,
		Locker:    red.NewLocker(redisClient),
		Limiter:   red.NewRateLimiter(redisClient),
	}
	h := holder.New(cfg, deps, logger)
	go func() {
		if err := h.Run(ctx); err != nil && err != context.Canceled {
			logger.Fatal().Err(err).Msg("holder stopped")
		}
	}()

	// ---- Admin HTTP ----
	srv := web.NewServer(logger).
		WithDependency("postgres", pool).
		WithDependency("redis", redisClient)
	go func() {
		if err := srv.Run(ctx, fmt.Sprintf(":%d", cfg.Admin.Port)); err != nil {
			logger.Error().Err(err).Msg("admin server stopped")
		}
	}()

	logger.Info().Msg("holder is up")

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
}
