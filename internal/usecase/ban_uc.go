package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/repository"
)

// BanUseCase maintains the per-bot submitter ban list.
type BanUseCase struct {
	bans repository.BanRepository
	log  zerolog.Logger
}

func NewBanUseCase(bans repository.BanRepository, log *zerolog.Logger) *BanUseCase {
	return &BanUseCase{bans: bans, log: log.With().Str("component", "bans").Logger()}
}

func (uc *BanUseCase) Ban(ctx context.Context, botID, userID int64, displayName string) error {
	if err := uc.bans.Ban(ctx, nil, botID, userID, displayName); err != nil {
		return err
	}
	uc.log.Info().Int64("bot", botID).Int64("user", userID).Msg("user banned")
	return nil
}

func (uc *BanUseCase) Unban(ctx context.Context, botID, userID int64) error {
	if err := uc.bans.Unban(ctx, nil, botID, userID); err != nil {
		return err
	}
	uc.log.Info().Int64("bot", botID).Int64("user", userID).Msg("user unbanned")
	return nil
}

func (uc *BanUseCase) IsBanned(ctx context.Context, botID, userID int64) (bool, error) {
	return uc.bans.IsBanned(ctx, nil, botID, userID)
}

func (uc *BanUseCase) List(ctx context.Context, botID int64) ([]model.BannedUser, error) {
	return uc.bans.List(ctx, nil, botID)
}
