package model

import (
	"time"

	"telegram-channel-moderation/internal/domain"
)

type ItemState string

const (
	ItemStatePending   ItemState = "pending"
	ItemStateApproved  ItemState = "approved"
	ItemStateRejected  ItemState = "rejected"
	ItemStatePublished ItemState = "published"
)

// Item is a piece of submitted content awaiting moderation. It is identified
// by the Telegram message id together with the chat it was submitted from,
// the same pair the moderation keyboard callbacks carry.
type Item struct {
	ID           int64 // Telegram message id in the origin chat
	OriginChatID int64
	OwnerID      int64 // submitter's Telegram user id
	BotID        int64
	CreatedAt    time.Time
	IsApproved   bool
	IsRejected   bool
	IsPublished  bool
	// ModerationMessageID references the voting-keyboard message in the
	// moderation chat, zero until the moderation request is sent.
	ModerationMessageID int64
}

func NewItem(id, originChatID, ownerID, botID int64) (*Item, error) {
	if id == 0 || originChatID == 0 || ownerID == 0 || botID == 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Item{
		ID:           id,
		OriginChatID: originChatID,
		OwnerID:      ownerID,
		BotID:        botID,
		CreatedAt:    time.Now(),
	}, nil
}

// State folds the persisted flags into the single logical state. The flags are
// written once each; an item never leaves Rejected or Published.
func (i *Item) State() ItemState {
	switch {
	case i.IsPublished:
		return ItemStatePublished
	case i.IsRejected:
		return ItemStateRejected
	case i.IsApproved:
		return ItemStateApproved
	default:
		return ItemStatePending
	}
}

// VotingOpen reports whether ballots are still accepted. Approval alone does
// not close voting; moderators keep voting until the item is published or
// rejected, the recorded decision just never changes.
func (i *Item) VotingOpen() bool { return !i.IsRejected && !i.IsPublished }
