package telegram

import (
	"context"

	"telegram-channel-moderation/internal/domain/ports/adapter"
)

var (
	_ adapter.Sender  = (*NoopBot)(nil)
	_ adapter.ChatAPI = (*NoopBot)(nil)
)

// NoopBot discards everything. Used in dry-run mode and as a stand-in where a
// real connection is not wanted.
type NoopBot struct{}

func NewNoopBot() *NoopBot { return &NoopBot{} }

func (n *NoopBot) SendMessage(context.Context, int64, string) error { return nil }
func (n *NoopBot) ReplyTo(context.Context, int64, int64, string) error {
	return nil
}
func (n *NoopBot) SendButtons(context.Context, int64, string, [][]adapter.InlineButton) (int64, error) {
	return 0, nil
}
func (n *NoopBot) ForwardMessage(context.Context, int64, int64, int64) error { return nil }
func (n *NoopBot) ForwardToChannel(context.Context, string, int64, int64) error {
	return nil
}
func (n *NoopBot) EditMessageText(context.Context, int64, int64, string) error { return nil }
func (n *NoopBot) AnswerCallback(context.Context, string) error                { return nil }
func (n *NoopBot) SendTyping(context.Context, int64) error                     { return nil }

func (n *NoopBot) GetChat(context.Context, int64) (*adapter.ChatInfo, error) {
	return &adapter.ChatInfo{}, nil
}
func (n *NoopBot) GetChatAdministrators(context.Context, int64) ([]int64, error) {
	return nil, nil
}
