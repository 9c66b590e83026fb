package repository

import (
	"context"

	"telegram-channel-moderation/internal/domain/model"
)

type VoteRepository interface {
	// Insert records a vote. Returns domain.ErrAlreadyVoted when the unique
	// (voter, item, origin_chat) constraint is hit.
	Insert(ctx context.Context, tx Tx, v *model.Vote) error
	// Switch overwrites the approve flag of an existing vote. Returns
	// domain.ErrNotFound when the voter has no recorded vote.
	Switch(ctx context.Context, tx Tx, voterID, itemID, originChatID int64, approve bool) error
	Find(ctx context.Context, tx Tx, voterID, itemID, originChatID int64) (*model.Vote, error)
	// Tally recomputes the aggregate from the votes table.
	Tally(ctx context.Context, tx Tx, itemID, originChatID int64) (model.Tally, error)
}
