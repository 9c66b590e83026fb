package adapter

// Queue payloads. Both processes marshal these as JSON; a struct change must
// stay readable by the older side during a rolling restart, so fields are only
// ever added.

// NewBotRequest tells the holder to start running a finished registration.
type NewBotRequest struct {
	Token            string `json:"token"`
	OwnerID          int64  `json:"owner_id"`
	ModerationChatID int64  `json:"moderation_chat_id"`
	TargetChannel    string `json:"target_channel"`
}

// GetBotInfoRequest validates a candidate token against the Telegram API.
type GetBotInfoRequest struct {
	Token string `json:"token"`
}

type GetBotInfoReply struct {
	OK                bool   `json:"ok"`
	Error             string `json:"error,omitempty"`
	BotID             int64  `json:"bot_id,omitempty"`
	Username          string `json:"username,omitempty"`
	AlreadyRegistered bool   `json:"already_registered,omitempty"`
}

// GetModerationGroupRequest asks the holder to wait until the owner attaches
// the candidate bot to a moderation chat.
type GetModerationGroupRequest struct {
	Token   string `json:"token"`
	OwnerID int64  `json:"owner_id"`
}

type GetModerationGroupReply struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	ChatID int64  `json:"chat_id,omitempty"`
	Title  string `json:"title,omitempty"`
}

// StopBotRequest shuts a running moderation bot down.
type StopBotRequest struct {
	BotID int64 `json:"bot_id"`
}

// BotRevokedEvent notifies the curator that a bot's token stopped working and
// its registration was deactivated.
type BotRevokedEvent struct {
	BotID    int64  `json:"bot_id"`
	OwnerID  int64  `json:"owner_id"`
	Username string `json:"username,omitempty"`
}
