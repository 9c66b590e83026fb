package model

import (
	"time"

	"telegram-channel-moderation/internal/domain"
)

// Vote is one moderator's yes/no on an item. The (VoterID, ItemID,
// OriginChatID) triple is unique; the database constraint is what prevents
// double voting. Votes are never deleted. Approve may be overwritten once,
// and only when vote switching is enabled for the bot.
type Vote struct {
	VoterID      int64
	ItemID       int64
	OriginChatID int64
	Approve      bool
	CreatedAt    time.Time
}

func NewVote(voterID, itemID, originChatID int64, approve bool) (*Vote, error) {
	if voterID == 0 || itemID == 0 || originChatID == 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Vote{
		VoterID:      voterID,
		ItemID:       itemID,
		OriginChatID: originChatID,
		Approve:      approve,
		CreatedAt:    time.Now(),
	}, nil
}

// Tally is the aggregate of all votes recorded for one item, always derived
// from the votes table rather than an in-memory counter.
type Tally struct {
	Approve int
	Total   int
}

func (t Tally) Against() int { return t.Total - t.Approve }
