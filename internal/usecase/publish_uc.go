package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/adapter"
	"telegram-channel-moderation/internal/domain/ports/repository"
	"telegram-channel-moderation/internal/infra/metrics"
)

// PublishUseCase moves approved items into the target channel, oldest first,
// honoring the per-bot publish delay.
type PublishUseCase struct {
	txm   repository.TransactionManager
	items repository.ItemRepository
	votes repository.VoteRepository
	bots  repository.BotRepository
	log   zerolog.Logger
}

func NewPublishUseCase(txm repository.TransactionManager, items repository.ItemRepository, votes repository.VoteRepository, bots repository.BotRepository, log *zerolog.Logger) *PublishUseCase {
	return &PublishUseCase{
		txm:   txm,
		items: items,
		votes: votes,
		bots:  bots,
		log:   log.With().Str("component", "publish").Logger(),
	}
}

// PublishNext forwards the oldest approved item to the bot's channel and
// marks it published. Returns (nil, nil) when the queue is empty or the
// publish delay has not elapsed yet.
//
// The select, the forward and the state flip share one transaction with the
// item row locked. A failed forward rolls everything back; a crash between
// the Telegram call and the commit re-forwards the item on the next tick,
// which beats silently losing it.
func (uc *PublishUseCase) PublishNext(ctx context.Context, reg *model.BotRegistration, sender adapter.Sender) (*model.Item, error) {
	if !reg.Active {
		return nil, domain.ErrBotDeactivated
	}
	now := time.Now()
	if now.Before(reg.PublishAllowedAt()) {
		return nil, nil
	}

	var published *model.Item
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		item, err := uc.items.OldestApproved(ctx, tx, reg.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		if err := sender.ForwardToChannel(ctx, reg.TargetChannel, item.OriginChatID, item.ID); err != nil {
			return err
		}
		if err := uc.items.MarkPublished(ctx, tx, item.ID, item.OriginChatID); err != nil {
			return err
		}
		if err := uc.bots.SetLastPublishAt(ctx, tx, reg.ID, now); err != nil {
			return err
		}
		item.IsPublished = true
		published = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	if published != nil {
		reg.LastPublishAt = &now
		metrics.IncItemPublished()
		uc.log.Info().
			Int64("bot", reg.ID).
			Int64("item", published.ID).
			Str("channel", reg.TargetChannel).
			Msg("item published")
	}
	return published, nil
}

// ExpiredItem pairs a timed-out item with the ballots it had collected, so
// the decline notification can say how short it fell.
type ExpiredItem struct {
	Item  *model.Item
	Tally model.Tally
}

// ExpirePending rejects every item that sat unmoderated past the vote
// timeout. Each item is settled in its own transaction so one failure does
// not hold back the rest.
func (uc *PublishUseCase) ExpirePending(ctx context.Context, reg *model.BotRegistration) ([]ExpiredItem, error) {
	cutoff := time.Now().Add(-reg.Settings.VoteTimeout)
	stale, err := uc.items.PendingOlderThan(ctx, nil, reg.ID, cutoff)
	if err != nil {
		return nil, err
	}

	var expired []ExpiredItem
	for _, item := range stale {
		err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			rejected, err := uc.items.RejectIfPending(ctx, tx, item.ID, item.OriginChatID)
			if err != nil {
				return err
			}
			if !rejected {
				return nil
			}
			item.IsRejected = true
			tally, err := uc.votes.Tally(ctx, tx, item.ID, item.OriginChatID)
			if err != nil {
				return err
			}
			expired = append(expired, ExpiredItem{Item: item, Tally: tally})
			return nil
		})
		if err != nil {
			uc.log.Error().Err(err).Int64("item", item.ID).Msg("expiring stale item failed")
			continue
		}
	}
	for range expired {
		metrics.IncItemDecided("expired")
	}
	return expired, nil
}
