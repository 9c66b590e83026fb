package repository

import (
	"context"

	"telegram-channel-moderation/internal/domain/model"
)

// StageRepository is the durable backing of the in-memory stage store.
// All writes are best-effort and asynchronous from the dispatcher's point of
// view; LoadAll is called once at startup to resume interrupted dialogs.
type StageRepository interface {
	LoadAll(ctx context.Context, botID int64) ([]*model.Stage, error)
	Upsert(ctx context.Context, botID int64, stage *model.Stage) error
	Delete(ctx context.Context, botID int64, key string) error
}
