package telegram

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/dispatch"
	"telegram-channel-moderation/internal/domain/ports/adapter"
)

var (
	_ adapter.Sender  = (*Bot)(nil)
	_ adapter.ChatAPI = (*Bot)(nil)
)

// Bot wraps one tgbotapi connection. The same type serves the curator bot and
// every spawned moderation bot; only the wiring of the dispatcher differs.
type Bot struct {
	api *tgbotapi.BotAPI
	log zerolog.Logger

	// workers shards update processing. Updates of one conversation always
	// land on the same worker, so a dialog is handled strictly in order.
	workers int
}

func NewBot(token string, workers int, log *zerolog.Logger) (*Bot, error) {
	if workers <= 0 {
		workers = 4
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:     api,
		log:     log.With().Str("component", "telegram").Str("bot", api.Self.UserName).Logger(),
		workers: workers,
	}, nil
}

// Self reports the authenticated bot's identity.
func (b *Bot) Self() (id int64, username string) {
	return b.api.Self.ID, b.api.Self.UserName
}

// Validate checks a candidate token against the Telegram API without keeping
// a connection around.
func Validate(token string) (id int64, username string, err error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return 0, "", err
	}
	return api.Self.ID, api.Self.UserName, nil
}

// IsUnauthorized reports whether err is Telegram telling us the token was
// revoked. The holder deactivates the registration on this.
func IsUnauthorized(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 401
	}
	return false
}

// Poll pulls updates and feeds them to the dispatcher until ctx is cancelled.
// Each update is routed to a worker by its conversation key so that messages
// of one dialog never race each other.
func (b *Bot) Poll(ctx context.Context, d *dispatch.Dispatcher) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	shards := make([]chan tgbotapi.Update, b.workers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan tgbotapi.Update, 32)
		wg.Add(1)
		go func(ch <-chan tgbotapi.Update) {
			defer wg.Done()
			for upd := range ch {
				upd := upd
				d.Dispatch(ctx, &upd)
			}
		}(shards[i])
	}

	for {
		select {
		case upd, ok := <-updates:
			if !ok {
				for _, ch := range shards {
					close(ch)
				}
				wg.Wait()
				return
			}
			shards[b.shard(&upd)] <- upd
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			for _, ch := range shards {
				close(ch)
			}
			wg.Wait()
			return
		}
	}
}

func (b *Bot) shard(u *tgbotapi.Update) int {
	key, err := dispatch.ConversationKey(u)
	if err != nil {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(b.workers))
}

func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ReplyTo(ctx context.Context, chatID int64, messageID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = int(messageID)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			switch {
			case btn.URL != "":
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
			default:
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
			}
		}
		kb = append(kb, btns)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kb...)
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return int64(sent.MessageID), nil
}

func (b *Bot) ForwardMessage(ctx context.Context, toChatID, fromChatID, messageID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.api.Send(tgbotapi.NewForward(toChatID, fromChatID, int(messageID)))
	return err
}

func (b *Bot) ForwardToChannel(ctx context.Context, channel string, fromChatID, messageID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fwd := tgbotapi.ForwardConfig{
		BaseChat:   tgbotapi.BaseChat{ChannelUsername: channel},
		FromChatID: fromChatID,
		MessageID:  int(messageID),
	}
	_, err := b.api.Send(fwd)
	return err
}

func (b *Bot) EditMessageText(ctx context.Context, chatID int64, messageID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, int(messageID), text))
	return err
}

func (b *Bot) AnswerCallback(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

func (b *Bot) SendTyping(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

func (b *Bot) GetChat(ctx context.Context, chatID int64) (*adapter.ChatInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chat, err := b.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return nil, err
	}
	return &adapter.ChatInfo{
		ID:       chat.ID,
		Type:     chat.Type,
		Title:    chat.Title,
		Username: chat.UserName,
	}, nil
}

func (b *Bot) GetChatAdministrators(ctx context.Context, chatID int64) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	admins, err := b.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(admins))
	for _, a := range admins {
		ids = append(ids, a.User.ID)
	}
	return ids, nil
}
