package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/repository"
)

var _ repository.StageRepository = (*stageRepo)(nil)

type stageRepo struct{ pool *pgxpool.Pool }

func NewStageRepo(pool *pgxpool.Pool) *stageRepo {
	return &stageRepo{pool: pool}
}

func (r *stageRepo) LoadAll(ctx context.Context, botID int64) ([]*model.Stage, error) {
	const q = `SELECT key, step, meta, updated_at FROM stages WHERE bot_id=$1;`
	rows, err := queryRows(ctx, r.pool, nil, q, botID)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Stage
	for rows.Next() {
		st := &model.Stage{}
		var meta []byte
		if err := rows.Scan(&st.Key, &st.StepName, &meta, &st.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		st.Meta = map[string]string{}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &st.Meta); err != nil {
				return nil, domain.ErrReadDatabaseRow
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (r *stageRepo) Upsert(ctx context.Context, botID int64, stage *model.Stage) error {
	const q = `
INSERT INTO stages (bot_id, key, step, meta, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (bot_id, key) DO UPDATE SET step=$3, meta=$4, updated_at=$5;`

	meta, err := json.Marshal(stage.Meta)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	if _, err := execSQL(ctx, r.pool, nil, q, botID, stage.Key, stage.StepName, meta, stage.UpdatedAt); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *stageRepo) Delete(ctx context.Context, botID int64, key string) error {
	const q = `DELETE FROM stages WHERE bot_id=$1 AND key=$2;`
	if _, err := execSQL(ctx, r.pool, nil, q, botID, key); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}
