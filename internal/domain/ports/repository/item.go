package repository

import (
	"context"
	"time"

	"telegram-channel-moderation/internal/domain/model"
)

type ItemRepository interface {
	Insert(ctx context.Context, tx Tx, item *model.Item) error
	Find(ctx context.Context, tx Tx, itemID, originChatID int64) (*model.Item, error)
	// ApproveIfPending flips is_approved only when the item is still pending;
	// reports whether this call performed the transition.
	ApproveIfPending(ctx context.Context, tx Tx, itemID, originChatID int64) (bool, error)
	// RejectIfPending flips is_rejected only when the item is still pending.
	RejectIfPending(ctx context.Context, tx Tx, itemID, originChatID int64) (bool, error)
	// OldestApproved returns the single oldest approved, unpublished item for
	// a bot, or domain.ErrNotFound.
	OldestApproved(ctx context.Context, tx Tx, botID int64) (*model.Item, error)
	PendingOlderThan(ctx context.Context, tx Tx, botID int64, cutoff time.Time) ([]*model.Item, error)
	// MarkPublished flips is_published; callers run it in the same tx that
	// bumps the bot's last_publish_at so a crash cannot double-publish.
	MarkPublished(ctx context.Context, tx Tx, itemID, originChatID int64) error
	SetModerationMessageID(ctx context.Context, tx Tx, itemID, originChatID, moderationMessageID int64) error
	// Stats aggregates per-state counts for /stats.
	Stats(ctx context.Context, tx Tx, botID int64) (map[model.ItemState]int, error)
}
