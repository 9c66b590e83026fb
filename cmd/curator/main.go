// Command curator runs the front-desk bot: channel owners talk to it to
// register and revoke their moderation bots.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"telegram-channel-moderation/internal/bot/curator"
	"telegram-channel-moderation/internal/config"
	"telegram-channel-moderation/internal/dispatch"
	"telegram-channel-moderation/internal/domain/ports/adapter"
	pg "telegram-channel-moderation/internal/infra/db/postgres"
	"telegram-channel-moderation/internal/infra/logging"
	"telegram-channel-moderation/internal/infra/metrics"
	"telegram-channel-moderation/internal/infra/queue"
	"telegram-channel-moderation/internal/infra/telegram"
	"telegram-channel-moderation/internal/infra/web"
	"telegram-channel-moderation/internal/stage"
)

// curatorStageID keys the curator's own dialog stages in the stages table,
// away from every registered bot's id space.
const curatorStageID = 0

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode (console logs, no sampling)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *devMode, true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Queue ----
	q, err := queue.New(cfg.Queue.URL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("queue")
	}
	defer q.Close()

	// ---- Telegram ----
	bot, err := telegram.NewBot(cfg.Curator.Token, cfg.Curator.Workers, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}

	// ---- Dialog state ----
	store := stage.NewStore(curatorStageID, pg.NewStageRepo(pool), cfg.Stage.TTL, logger)
	if err := store.Restore(ctx); err != nil {
		logger.Fatal().Err(err).Msg("stage restore")
	}
	go store.RunSweeper(ctx, cfg.Stage.SweepInterval)

	// ---- Dispatch tree ----
	d := dispatch.NewDispatcher(store, logger)
	front := curator.New(bot, q, logger)
	if err := front.Wire(d); err != nil {
		logger.Fatal().Err(err).Msg("wiring")
	}

	// revocation events reach the owner through the curator bot
	err = q.Listen(ctx, []string{adapter.TopicBotRevoked}, func(_ string, payload []byte) ([]byte, error) {
		var ev adapter.BotRevokedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return nil, front.NotifyRevoked(ctx, ev)
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("queue listen")
	}

	go bot.Poll(ctx, d)

	// ---- Admin HTTP ----
	srv := web.NewServer(logger).WithDependency("postgres", pool)
	go func() {
		if err := srv.Run(ctx, fmt.Sprintf(":%d", cfg.Admin.Port)); err != nil {
			logger.Error().Err(err).Msg("admin server stopped")
		}
	}()

	logger.Info().Msg("curator is up")

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
}
