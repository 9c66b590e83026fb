package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/repository"
)

var _ repository.VoteRepository = (*voteRepo)(nil)

type voteRepo struct{ pool *pgxpool.Pool }

func NewVoteRepo(pool *pgxpool.Pool) *voteRepo {
	return &voteRepo{pool: pool}
}

// uniqueViolation is the Postgres SQLSTATE for a unique constraint hit.
const uniqueViolation = "23505"

func (r *voteRepo) Insert(ctx context.Context, tx repository.Tx, v *model.Vote) error {
	const q = `
INSERT INTO votes (voter_id, item_id, origin_chat_id, approve, created_at)
VALUES ($1,$2,$3,$4,$5);`

	_, err := execSQL(ctx, r.pool, tx, q, v.VoterID, v.ItemID, v.OriginChatID, v.Approve, v.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyVoted
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *voteRepo) Switch(ctx context.Context, tx repository.Tx, voterID, itemID, originChatID int64, approve bool) error {
	const q = `
UPDATE votes SET approve=$4
 WHERE voter_id=$1 AND item_id=$2 AND origin_chat_id=$3 AND approve <> $4;`

	cmd, err := execSQL(ctx, r.pool, tx, q, voterID, itemID, originChatID, approve)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *voteRepo) Find(ctx context.Context, tx repository.Tx, voterID, itemID, originChatID int64) (*model.Vote, error) {
	const q = `
SELECT voter_id, item_id, origin_chat_id, approve, created_at
  FROM votes WHERE voter_id=$1 AND item_id=$2 AND origin_chat_id=$3;`

	row, err := pickRow(ctx, r.pool, tx, q, voterID, itemID, originChatID)
	if err != nil {
		return nil, err
	}
	v := &model.Vote{}
	if err := row.Scan(&v.VoterID, &v.ItemID, &v.OriginChatID, &v.Approve, &v.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return v, nil
}

func (r *voteRepo) Tally(ctx context.Context, tx repository.Tx, itemID, originChatID int64) (model.Tally, error) {
	const q = `
SELECT COALESCE(SUM(approve::INT),0), COUNT(*)
  FROM votes WHERE item_id=$1 AND origin_chat_id=$2;`

	row, err := pickRow(ctx, r.pool, tx, q, itemID, originChatID)
	if err != nil {
		return model.Tally{}, err
	}
	var t model.Tally
	if err := row.Scan(&t.Approve, &t.Total); err != nil {
		return model.Tally{}, domain.ErrReadDatabaseRow
	}
	return t, nil
}
