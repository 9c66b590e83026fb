package usecase

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/repository"
	"telegram-channel-moderation/internal/infra/metrics"
)

// VoteOutcome reports what one ballot did to the item.
type VoteOutcome struct {
	Tally model.Tally
	// Switched is set when an existing ballot was overwritten instead of a
	// new one recorded.
	Switched bool
	// Decided is set by the call that crossed the threshold. Ballots on an
	// approved item keep being recorded until it is published, but leave
	// Decided unset, so the settle side effects fire exactly once.
	Decided  bool
	Approved bool
}

// VotingUseCase records moderator ballots and settles items that reach the
// vote threshold. The whole read-tally-settle sequence runs in one database
// transaction with the item row locked, so two concurrent ballots cannot both
// observe the threshold crossing.
type VotingUseCase struct {
	txm   repository.TransactionManager
	items repository.ItemRepository
	votes repository.VoteRepository
	log   zerolog.Logger
}

func NewVotingUseCase(txm repository.TransactionManager, items repository.ItemRepository, votes repository.VoteRepository, log *zerolog.Logger) *VotingUseCase {
	return &VotingUseCase{
		txm:   txm,
		items: items,
		votes: votes,
		log:   log.With().Str("component", "voting").Logger(),
	}
}

// CastVote records one ballot.
//
// Returns domain.ErrVotingClosed once the item is rejected or published, and
// domain.ErrAlreadyVoted when the voter has a recorded ballot and vote
// switching is off (or the new ballot matches the old one).
func (uc *VotingUseCase) CastVote(ctx context.Context, voterID, itemID, originChatID int64, approve bool, settings model.Settings) (VoteOutcome, error) {
	var out VoteOutcome

	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		item, err := uc.items.Find(ctx, tx, itemID, originChatID)
		if err != nil {
			return err
		}
		if !item.VotingOpen() {
			return domain.ErrVotingClosed
		}

		vote, err := model.NewVote(voterID, itemID, originChatID, approve)
		if err != nil {
			return err
		}
		if err := uc.votes.Insert(ctx, tx, vote); err != nil {
			if !errors.Is(err, domain.ErrAlreadyVoted) {
				return err
			}
			if !settings.VoteSwitching {
				return domain.ErrAlreadyVoted
			}
			if err := uc.votes.Switch(ctx, tx, voterID, itemID, originChatID, approve); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					// same ballot as before, nothing to switch
					return domain.ErrAlreadyVoted
				}
				return err
			}
			out.Switched = true
		}

		tally, err := uc.votes.Tally(ctx, tx, itemID, originChatID)
		if err != nil {
			return err
		}
		out.Tally = tally

		switch {
		case tally.Approve >= settings.RequiredVotes:
			decided, err := uc.items.ApproveIfPending(ctx, tx, itemID, originChatID)
			if err != nil {
				return err
			}
			out.Decided, out.Approved = decided, true
		case tally.Against() >= settings.RequiredVotes:
			decided, err := uc.items.RejectIfPending(ctx, tx, itemID, originChatID)
			if err != nil {
				return err
			}
			out.Decided = decided
		}
		return nil
	})
	if err != nil {
		return VoteOutcome{}, err
	}

	metrics.IncVoteRecorded(approve)
	if out.Decided {
		outcome := "rejected"
		if out.Approved {
			outcome = "approved"
		}
		metrics.IncItemDecided(outcome)
		uc.log.Info().
			Int64("item", itemID).
			Int64("origin_chat", originChatID).
			Str("outcome", outcome).
			Int("approve", out.Tally.Approve).
			Int("against", out.Tally.Against()).
			Msg("item settled")
	}
	return out, nil
}
