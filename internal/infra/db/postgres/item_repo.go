package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/repository"
)

var _ repository.ItemRepository = (*itemRepo)(nil)

type itemRepo struct{ pool *pgxpool.Pool }

func NewItemRepo(pool *pgxpool.Pool) *itemRepo {
	return &itemRepo{pool: pool}
}

const itemColumns = `id, origin_chat_id, owner_id, bot_id, created_at,
       is_approved, is_rejected, is_published, moderation_message_id`

func scanItem(row pgx.Row) (*model.Item, error) {
	it := &model.Item{}
	if err := row.Scan(&it.ID, &it.OriginChatID, &it.OwnerID, &it.BotID, &it.CreatedAt,
		&it.IsApproved, &it.IsRejected, &it.IsPublished, &it.ModerationMessageID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return it, nil
}

func (r *itemRepo) Insert(ctx context.Context, tx repository.Tx, item *model.Item) error {
	const q = `
INSERT INTO items (id, origin_chat_id, owner_id, bot_id, created_at)
VALUES ($1,$2,$3,$4,$5);`

	if _, err := execSQL(ctx, r.pool, tx, q, item.ID, item.OriginChatID, item.OwnerID, item.BotID, item.CreatedAt); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *itemRepo) Find(ctx context.Context, tx repository.Tx, itemID, originChatID int64) (*model.Item, error) {
	q := `SELECT ` + itemColumns + ` FROM items WHERE id=$1 AND origin_chat_id=$2`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, itemID, originChatID)
	if err != nil {
		return nil, err
	}
	return scanItem(row)
}

func (r *itemRepo) ApproveIfPending(ctx context.Context, tx repository.Tx, itemID, originChatID int64) (bool, error) {
	const q = `
UPDATE items SET is_approved=TRUE
 WHERE id=$1 AND origin_chat_id=$2
   AND is_approved=FALSE AND is_rejected=FALSE AND is_published=FALSE;`

	cmd, err := execSQL(ctx, r.pool, tx, q, itemID, originChatID)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *itemRepo) RejectIfPending(ctx context.Context, tx repository.Tx, itemID, originChatID int64) (bool, error) {
	const q = `
UPDATE items SET is_rejected=TRUE
 WHERE id=$1 AND origin_chat_id=$2
   AND is_approved=FALSE AND is_rejected=FALSE AND is_published=FALSE;`

	cmd, err := execSQL(ctx, r.pool, tx, q, itemID, originChatID)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *itemRepo) OldestApproved(ctx context.Context, tx repository.Tx, botID int64) (*model.Item, error) {
	q := `SELECT ` + itemColumns + `
  FROM items
 WHERE bot_id=$1 AND is_approved=TRUE AND is_published=FALSE
 ORDER BY created_at ASC LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, botID)
	if err != nil {
		return nil, err
	}
	return scanItem(row)
}

func (r *itemRepo) PendingOlderThan(ctx context.Context, tx repository.Tx, botID int64, cutoff time.Time) ([]*model.Item, error) {
	const q = `SELECT ` + itemColumns + `
  FROM items
 WHERE bot_id=$1 AND is_approved=FALSE AND is_rejected=FALSE AND is_published=FALSE
   AND created_at <= $2
 ORDER BY created_at ASC;`

	rows, err := queryRows(ctx, r.pool, tx, q, botID, cutoff)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *itemRepo) MarkPublished(ctx context.Context, tx repository.Tx, itemID, originChatID int64) error {
	const q = `UPDATE items SET is_published=TRUE WHERE id=$1 AND origin_chat_id=$2;`
	if _, err := execSQL(ctx, r.pool, tx, q, itemID, originChatID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *itemRepo) SetModerationMessageID(ctx context.Context, tx repository.Tx, itemID, originChatID, moderationMessageID int64) error {
	const q = `UPDATE items SET moderation_message_id=$3 WHERE id=$1 AND origin_chat_id=$2;`
	if _, err := execSQL(ctx, r.pool, tx, q, itemID, originChatID, moderationMessageID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *itemRepo) Stats(ctx context.Context, tx repository.Tx, botID int64) (map[model.ItemState]int, error) {
	const q = `
SELECT COUNT(*) FILTER (WHERE is_published),
       COUNT(*) FILTER (WHERE is_rejected),
       COUNT(*) FILTER (WHERE is_approved AND NOT is_published),
       COUNT(*) FILTER (WHERE NOT is_approved AND NOT is_rejected AND NOT is_published)
  FROM items WHERE bot_id=$1;`

	row, err := pickRow(ctx, r.pool, tx, q, botID)
	if err != nil {
		return nil, err
	}
	var published, rejected, approved, pending int
	if err := row.Scan(&published, &rejected, &approved, &pending); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return map[model.ItemState]int{
		model.ItemStatePublished: published,
		model.ItemStateRejected:  rejected,
		model.ItemStateApproved:  approved,
		model.ItemStatePending:   pending,
	}, nil
}
