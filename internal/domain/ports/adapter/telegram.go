package adapter

import "context"

// InlineButton is a platform-agnostic inline keyboard button.
type InlineButton struct {
	Text string
	Data string // callback payload
	URL  string
}

// Sender is the outbound half of the Telegram adapter. Handlers and workers
// talk to this port; the real implementation wraps tgbotapi, tests use the
// noop implementation.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	ReplyTo(ctx context.Context, chatID int64, messageID int64, text string) error
	// SendButtons returns the id of the sent message so callers can tie
	// later edits to it.
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) (int64, error)
	ForwardMessage(ctx context.Context, toChatID, fromChatID, messageID int64) error
	// ForwardToChannel forwards by channel username ("@channel").
	ForwardToChannel(ctx context.Context, channel string, fromChatID, messageID int64) error
	EditMessageText(ctx context.Context, chatID int64, messageID int64, text string) error
	AnswerCallback(ctx context.Context, callbackID string) error
	SendTyping(ctx context.Context, chatID int64) error
}

// ChatInfo is the subset of chat metadata the registration flow needs.
type ChatInfo struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"` // private | group | supergroup | channel
	Title    string `json:"title"`
	Username string `json:"username"`
}

// ChatAPI exposes the chat queries the moderation bot performs at startup.
type ChatAPI interface {
	GetChat(ctx context.Context, chatID int64) (*ChatInfo, error)
	GetChatAdministrators(ctx context.Context, chatID int64) ([]int64, error)
}
