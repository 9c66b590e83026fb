package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/repository"
)

// Bounds for owner-tunable settings. Telegram itself throttles channel posts,
// so a zero publish delay is allowed but a negative one is not.
const (
	maxPublishDelay  = 24 * time.Hour
	maxRequiredVotes = 100
	minVoteTimeout   = time.Minute
	maxVoteTimeout   = 7 * 24 * time.Hour
	maxTextLimit     = 5000
)

// SettingsUseCase validates and persists per-bot moderation settings.
type SettingsUseCase struct {
	bots repository.BotRepository
	log  zerolog.Logger
}

func NewSettingsUseCase(bots repository.BotRepository, log *zerolog.Logger) *SettingsUseCase {
	return &SettingsUseCase{bots: bots, log: log.With().Str("component", "settings").Logger()}
}

func (uc *SettingsUseCase) save(ctx context.Context, reg *model.BotRegistration) error {
	if err := uc.bots.UpdateSettings(ctx, nil, reg.ID, reg.Settings); err != nil {
		return err
	}
	uc.log.Info().Int64("bot", reg.ID).Msg("settings updated")
	return nil
}

func (uc *SettingsUseCase) SetPublishDelay(ctx context.Context, reg *model.BotRegistration, d time.Duration) error {
	if d < 0 || d > maxPublishDelay {
		return domain.ErrInvalidArgument
	}
	reg.Settings.PublishDelay = d
	return uc.save(ctx, reg)
}

func (uc *SettingsUseCase) SetRequiredVotes(ctx context.Context, reg *model.BotRegistration, n int) error {
	if n < 1 || n > maxRequiredVotes {
		return domain.ErrInvalidArgument
	}
	reg.Settings.RequiredVotes = n
	return uc.save(ctx, reg)
}

func (uc *SettingsUseCase) SetVoteTimeout(ctx context.Context, reg *model.BotRegistration, d time.Duration) error {
	if d < minVoteTimeout || d > maxVoteTimeout {
		return domain.ErrInvalidArgument
	}
	reg.Settings.VoteTimeout = d
	return uc.save(ctx, reg)
}

func (uc *SettingsUseCase) SetTextLimits(ctx context.Context, reg *model.BotRegistration, min, max int) error {
	if min < 1 || max > maxTextLimit || min >= max {
		return domain.ErrInvalidArgument
	}
	reg.Settings.TextMin, reg.Settings.TextMax = min, max
	return uc.save(ctx, reg)
}

func (uc *SettingsUseCase) SetStartMessage(ctx context.Context, reg *model.BotRegistration, text string) error {
	if text == "" {
		return domain.ErrInvalidArgument
	}
	reg.Settings.StartMessage = text
	return uc.save(ctx, reg)
}

func (uc *SettingsUseCase) TogglePowerMode(ctx context.Context, reg *model.BotRegistration) (bool, error) {
	reg.Settings.PowerMode = !reg.Settings.PowerMode
	return reg.Settings.PowerMode, uc.save(ctx, reg)
}

func (uc *SettingsUseCase) ToggleVoteSwitching(ctx context.Context, reg *model.BotRegistration) (bool, error) {
	reg.Settings.VoteSwitching = !reg.Settings.VoteSwitching
	return reg.Settings.VoteSwitching, uc.save(ctx, reg)
}

func (uc *SettingsUseCase) SetContent(ctx context.Context, reg *model.BotRegistration, c model.ContentSettings) error {
	if c == (model.ContentSettings{}) {
		// a bot that accepts nothing is a dead bot
		return domain.ErrInvalidArgument
	}
	reg.Settings.Content = c
	return uc.save(ctx, reg)
}
