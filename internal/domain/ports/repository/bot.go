package repository

import (
	"context"
	"time"

	"telegram-channel-moderation/internal/domain/model"
)

type BotRepository interface {
	Save(ctx context.Context, tx Tx, b *model.BotRegistration) error
	Find(ctx context.Context, tx Tx, id int64) (*model.BotRegistration, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.BotRegistration, error)
	UpdateSettings(ctx context.Context, tx Tx, id int64, s model.Settings) error
	// SetLastPublishAt is written in the publish transaction together with
	// ItemRepository.MarkPublished.
	SetLastPublishAt(ctx context.Context, tx Tx, id int64, at time.Time) error
	Deactivate(ctx context.Context, tx Tx, id int64) error
}

// BanRepository tracks users barred from submitting to a given bot.
type BanRepository interface {
	Ban(ctx context.Context, tx Tx, botID, userID int64, displayName string) error
	Unban(ctx context.Context, tx Tx, botID, userID int64) error
	IsBanned(ctx context.Context, tx Tx, botID, userID int64) (bool, error)
	List(ctx context.Context, tx Tx, botID int64) ([]model.BannedUser, error)
}
