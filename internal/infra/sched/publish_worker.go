package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/adapter"
	"telegram-channel-moderation/internal/infra/redis"
	"telegram-channel-moderation/internal/usecase"
)

// PublishWorker drains one bot's approved queue into its channel, one item
// per publish-delay window. Every moderation bot gets its own worker; the
// Redis lock keeps two holder instances off the same queue.
type PublishWorker struct {
	interval time.Duration
	reg      *model.BotRegistration
	pubUC    *usecase.PublishUseCase
	sender   adapter.Sender
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewPublishWorker(interval time.Duration, reg *model.BotRegistration, pubUC *usecase.PublishUseCase, sender adapter.Sender, locker redis.Locker, logger *zerolog.Logger) *PublishWorker {
	l := logger.With().Str("component", "PublishWorker").Int64("bot", reg.ID).Logger()
	return &PublishWorker{
		interval: interval,
		reg:      reg,
		pubUC:    pubUC,
		sender:   sender,
		locker:   locker,
		log:      &l,
	}
}

func (w *PublishWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting publish worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping publish worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *PublishWorker) tick(ctx context.Context) {
	if !w.reg.Active {
		return
	}
	key := redis.PublishLockKey(w.reg.ID)
	token, err := w.locker.TryLock(ctx, key, w.interval)
	if err != nil {
		if !errors.Is(err, domain.ErrLockBusy) {
			w.log.Warn().Err(err).Msg("publish lock unavailable")
		}
		return
	}
	defer func() {
		if err := w.locker.Unlock(ctx, key, token); err != nil {
			w.log.Warn().Err(err).Msg("publish unlock failed")
		}
	}()

	item, err := w.pubUC.PublishNext(ctx, w.reg, w.sender)
	if err != nil {
		if errors.Is(err, domain.ErrBotDeactivated) {
			return
		}
		w.log.Error().Err(err).Msg("publish tick failed")
		return
	}
	if item == nil {
		return
	}
	if err := w.sender.ReplyTo(ctx, item.OriginChatID, item.ID, "Your post is now published. Thanks for the contribution!"); err != nil {
		w.log.Warn().Err(err).Int64("item", item.ID).Msg("publish notification failed")
	}
}
