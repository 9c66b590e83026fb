package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/adapter"
	"telegram-channel-moderation/internal/usecase"
)

// TimeoutWorker rejects items that sat in moderation past the vote timeout
// without collecting enough ballots either way.
type TimeoutWorker struct {
	interval time.Duration
	reg      *model.BotRegistration
	pubUC    *usecase.PublishUseCase
	sender   adapter.Sender
	log      *zerolog.Logger
}

func NewTimeoutWorker(interval time.Duration, reg *model.BotRegistration, pubUC *usecase.PublishUseCase, sender adapter.Sender, logger *zerolog.Logger) *TimeoutWorker {
	l := logger.With().Str("component", "TimeoutWorker").Int64("bot", reg.ID).Logger()
	return &TimeoutWorker{
		interval: interval,
		reg:      reg,
		pubUC:    pubUC,
		sender:   sender,
		log:      &l,
	}
}

func (w *TimeoutWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting timeout worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping timeout worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *TimeoutWorker) tick(ctx context.Context) {
	if !w.reg.Active {
		return
	}
	expired, err := w.pubUC.ExpirePending(ctx, w.reg)
	if err != nil {
		w.log.Error().Err(err).Msg("timeout tick failed")
		return
	}
	if len(expired) == 0 {
		return
	}
	w.log.Info().Int("count", len(expired)).Msg("stale items rejected")
	for _, ex := range expired {
		text := fmt.Sprintf(
			"Sorry, your post got only %d out of %d required votes in time and was declined.",
			ex.Tally.Approve, w.reg.Settings.RequiredVotes)
		if err := w.sender.ReplyTo(ctx, ex.Item.OriginChatID, ex.Item.ID, text); err != nil {
			w.log.Warn().Err(err).Int64("item", ex.Item.ID).Msg("timeout notification failed")
		}
	}
}
