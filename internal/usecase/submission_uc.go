package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/repository"
)

// RateLimiter is the submission throttle, backed by Redis in production.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SubmissionUseCase accepts new content from submitters and files it for
// moderation.
type SubmissionUseCase struct {
	items   repository.ItemRepository
	bans    repository.BanRepository
	limiter RateLimiter
	limitFn func(botID, userID int64) string
	log     zerolog.Logger
}

// Submitters may file at most this many items per window before the bot asks
// them to slow down.
const (
	submitLimit  = 5
	submitWindow = 10 * time.Minute
)

func NewSubmissionUseCase(items repository.ItemRepository, bans repository.BanRepository, limiter RateLimiter, limitFn func(botID, userID int64) string, log *zerolog.Logger) *SubmissionUseCase {
	return &SubmissionUseCase{
		items:   items,
		bans:    bans,
		limiter: limiter,
		limitFn: limitFn,
		log:     log.With().Str("component", "submission").Logger(),
	}
}

// Submit files one message for moderation. Returns domain.ErrUserBanned for
// banned submitters and domain.ErrOperationFailed when the rate limit is hit.
func (uc *SubmissionUseCase) Submit(ctx context.Context, botID, ownerID, originChatID, messageID int64) (*model.Item, error) {
	banned, err := uc.bans.IsBanned(ctx, nil, botID, ownerID)
	if err != nil {
		return nil, err
	}
	if banned {
		return nil, domain.ErrUserBanned
	}

	if uc.limiter != nil {
		ok, err := uc.limiter.Allow(ctx, uc.limitFn(botID, ownerID), submitLimit, submitWindow)
		if err != nil {
			// Redis being down must not stop submissions.
			uc.log.Warn().Err(err).Msg("rate limiter unavailable, letting submission through")
		} else if !ok {
			return nil, domain.ErrOperationFailed
		}
	}

	item, err := model.NewItem(messageID, originChatID, ownerID, botID)
	if err != nil {
		return nil, err
	}
	if err := uc.items.Insert(ctx, nil, item); err != nil {
		return nil, err
	}
	return item, nil
}

// AttachModerationMessage records the id of the voting-keyboard message once
// it has been posted to the moderation chat.
func (uc *SubmissionUseCase) AttachModerationMessage(ctx context.Context, itemID, originChatID, moderationMessageID int64) error {
	return uc.items.SetModerationMessageID(ctx, nil, itemID, originChatID, moderationMessageID)
}

// ValidateText checks a text submission against the bot's length bounds.
func ValidateText(text string, s model.Settings) error {
	n := len([]rune(text))
	if n < s.TextMin || n > s.TextMax {
		return domain.ErrInvalidArgument
	}
	return nil
}
