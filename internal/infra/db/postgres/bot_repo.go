package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/repository"
)

var _ repository.BotRepository = (*botRepo)(nil)

type botRepo struct{ pool *pgxpool.Pool }

func NewBotRepo(pool *pgxpool.Pool) *botRepo {
	return &botRepo{pool: pool}
}

const botColumns = `id, token, owner_id, moderation_chat_id, target_channel,
       active, settings, last_publish_at, created_at`

func scanBot(row pgx.Row) (*model.BotRegistration, error) {
	b := &model.BotRegistration{}
	var settings []byte
	if err := row.Scan(&b.ID, &b.Token, &b.OwnerID, &b.ModerationChatID, &b.TargetChannel,
		&b.Active, &settings, &b.LastPublishAt, &b.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	b.Settings = model.DefaultSettings()
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &b.Settings); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return b, nil
}

// Save upserts a registration. A bot re-registered by a new owner takes over
// the row, matching how token revocation works on the Telegram side.
func (r *botRepo) Save(ctx context.Context, tx repository.Tx, b *model.BotRegistration) error {
	const q = `
INSERT INTO bots (id, token, owner_id, moderation_chat_id, target_channel, active, settings, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
    token=$2, owner_id=$3, moderation_chat_id=$4, target_channel=$5,
    active=$6, settings=$7;`

	settings, err := json.Marshal(b.Settings)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	if _, err := execSQL(ctx, r.pool, tx, q,
		b.ID, b.Token, b.OwnerID, b.ModerationChatID, b.TargetChannel,
		b.Active, settings, b.CreatedAt); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *botRepo) Find(ctx context.Context, tx repository.Tx, botID int64) (*model.BotRegistration, error) {
	const q = `SELECT ` + botColumns + ` FROM bots WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, botID)
	if err != nil {
		return nil, err
	}
	return scanBot(row)
}

func (r *botRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.BotRegistration, error) {
	const q = `SELECT ` + botColumns + ` FROM bots WHERE active=TRUE ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.BotRegistration
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *botRepo) UpdateSettings(ctx context.Context, tx repository.Tx, botID int64, s model.Settings) error {
	const q = `UPDATE bots SET settings=$2 WHERE id=$1;`
	settings, err := json.Marshal(s)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	cmd, err := execSQL(ctx, r.pool, tx, q, botID, settings)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *botRepo) SetLastPublishAt(ctx context.Context, tx repository.Tx, botID int64, at time.Time) error {
	const q = `UPDATE bots SET last_publish_at=$2 WHERE id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, botID, at); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *botRepo) Deactivate(ctx context.Context, tx repository.Tx, botID int64) error {
	const q = `UPDATE bots SET active=FALSE WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, botID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ repository.BanRepository = (*banRepo)(nil)

type banRepo struct{ pool *pgxpool.Pool }

func NewBanRepo(pool *pgxpool.Pool) *banRepo {
	return &banRepo{pool: pool}
}

func (r *banRepo) Ban(ctx context.Context, tx repository.Tx, botID, userID int64, displayName string) error {
	const q = `
INSERT INTO bans (bot_id, user_id, display_name, created_at)
VALUES ($1,$2,$3,$4);`

	_, err := execSQL(ctx, r.pool, tx, q, botID, userID, displayName, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *banRepo) Unban(ctx context.Context, tx repository.Tx, botID, userID int64) error {
	const q = `DELETE FROM bans WHERE bot_id=$1 AND user_id=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, botID, userID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *banRepo) IsBanned(ctx context.Context, tx repository.Tx, botID, userID int64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM bans WHERE bot_id=$1 AND user_id=$2);`
	row, err := pickRow(ctx, r.pool, tx, q, botID, userID)
	if err != nil {
		return false, err
	}
	var banned bool
	if err := row.Scan(&banned); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return banned, nil
}

func (r *banRepo) List(ctx context.Context, tx repository.Tx, botID int64) ([]model.BannedUser, error) {
	const q = `SELECT user_id, display_name, created_at FROM bans WHERE bot_id=$1 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, botID)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []model.BannedUser
	for rows.Next() {
		var u model.BannedUser
		if err := rows.Scan(&u.UserID, &u.DisplayName, &u.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, u)
	}
	return out, nil
}
