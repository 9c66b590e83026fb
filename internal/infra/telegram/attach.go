package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-channel-moderation/internal/domain/ports/adapter"
)

// Check verifies the token is still accepted by Telegram. Used by the holder
// to notice revoked bots.
func (b *Bot) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.api.GetMe()
	return err
}

// AwaitAttach polls until the owner says /attach in a group the bot is a
// member of, or until ctx expires. It runs during registration, before the
// bot has a dispatch tree.
func (b *Bot) AwaitAttach(ctx context.Context, ownerID int64) (*adapter.ChatInfo, error) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil, ctx.Err()
			}
			m := upd.Message
			if m == nil || m.From == nil || m.Chat == nil {
				continue
			}
			if m.From.ID != ownerID || m.Chat.IsPrivate() {
				continue
			}
			text := strings.TrimSpace(m.Text)
			if text == "/attach" || strings.HasPrefix(text, "/attach@") {
				return &adapter.ChatInfo{
					ID:       m.Chat.ID,
					Type:     m.Chat.Type,
					Title:    m.Chat.Title,
					Username: m.Chat.UserName,
				}, nil
			}
		}
	}
}
