package model

import (
	"time"

	"telegram-channel-moderation/internal/domain"
)

// Settings are the per-bot moderation knobs. A registration starts from
// DefaultSettings and owners override individual fields through the settings
// commands; the whole struct is persisted as JSON on the registration row.
type Settings struct {
	PublishDelay  time.Duration `json:"publish_delay"`
	RequiredVotes int           `json:"required_votes"`
	VoteTimeout   time.Duration `json:"vote_timeout"`
	TextMin       int           `json:"text_min"`
	TextMax       int           `json:"text_max"`
	// PowerMode lets every member of the moderation chat use the
	// administrator commands, not only the owner and chat admins.
	PowerMode bool `json:"power_mode"`
	// VoteSwitching allows a moderator to overwrite their recorded vote once.
	VoteSwitching bool `json:"vote_switching"`
	// StartMessage greets submitters on /start.
	StartMessage string `json:"start_message"`
	// Content toggles what kinds of submissions are accepted.
	Content ContentSettings `json:"content"`
}

type ContentSettings struct {
	Text     bool `json:"text"`
	Photo    bool `json:"photo"`
	Video    bool `json:"video"`
	Audio    bool `json:"audio"`
	Voice    bool `json:"voice"`
	Document bool `json:"document"`
	Sticker  bool `json:"sticker"`
}

func DefaultSettings() Settings {
	return Settings{
		PublishDelay:  15 * time.Minute,
		RequiredVotes: 2,
		VoteTimeout:   24 * time.Hour,
		TextMin:       50,
		TextMax:       1000,
		StartMessage:  "Just enter your message, and we're ready.",
		Content:       ContentSettings{Text: true},
	}
}

// BotRegistration is one spawned moderation bot. Lifecycle is owned by the
// holder; Active=false is the terminal state set on permanent auth failures,
// and every periodic worker checks it before rescheduling.
type BotRegistration struct {
	ID               int64 // Telegram bot id (the numeric part of the token)
	Token            string
	OwnerID          int64
	ModerationChatID int64
	TargetChannel    string // "@channelname"
	Active           bool
	Settings         Settings
	LastPublishAt    *time.Time
	CreatedAt        time.Time
}

func NewBotRegistration(id int64, token string, ownerID, moderationChatID int64, channel string, s Settings) (*BotRegistration, error) {
	if id == 0 || token == "" || ownerID == 0 || moderationChatID == 0 || channel == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &BotRegistration{
		ID:               id,
		Token:            token,
		OwnerID:          ownerID,
		ModerationChatID: moderationChatID,
		TargetChannel:    channel,
		Active:           true,
		Settings:         s,
		CreatedAt:        time.Now(),
	}, nil
}

// PublishAllowedAt is the earliest moment the publish worker may forward the
// next approved item.
func (b *BotRegistration) PublishAllowedAt() time.Time {
	if b.LastPublishAt == nil {
		return time.Time{}
	}
	return b.LastPublishAt.Add(b.Settings.PublishDelay)
}
