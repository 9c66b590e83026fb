package moderation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-channel-moderation/internal/dispatch"
	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/model"
)

var (
	banRe     = regexp.MustCompile(`^/ban_(?P<user_id>\d+)$`)
	unbanRe   = regexp.MustCompile(`^/unban_(?P<user_id>\d+)$`)
	replyRe   = regexp.MustCompile(`(?s)^/reply_(?P<chat_id>-?\d+)_(?P<message_id>\d+)\s+(?P<text>.+)$`)
	contentRe = regexp.MustCompile(`^/togglecontent_(?P<kind>text|photo|video|audio|voice|document|sticker)$`)

	// keyboard shortcuts under every moderation request
	banCbRe   = regexp.MustCompile(`^ban_(?P<user_id>\d+)$`)
	replyCbRe = regexp.MustCompile(`^reply_(?P<chat_id>-?\d+)_(?P<message_id>\d+)$`)
)

func (r *Runner) requireAdmin(ctx context.Context, u *tgbotapi.Update) bool {
	if r.mayAdminister(ctx, u.Message.From.ID) {
		return true
	}
	_ = r.sender.ReplyTo(ctx, u.Message.Chat.ID, int64(u.Message.MessageID),
		"Only the owner or a chat admin can do that.")
	return false
}

func (r *Runner) handleStats(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	report, err := r.uc.Stats.Report(ctx, r.reg.ID)
	if err != nil {
		return dispatch.Done(), err
	}
	return dispatch.Done(), r.sender.SendMessage(ctx, u.Message.Chat.ID, report)
}

func (r *Runner) handleBan(ctx context.Context, u *tgbotapi.Update, args dispatch.Args) (dispatch.Result, error) {
	if !r.requireAdmin(ctx, u) {
		return dispatch.Done(), nil
	}
	userID, err := strconv.ParseInt(args["user_id"], 10, 64)
	if err != nil {
		return dispatch.Done(), fmt.Errorf("%w: user_id", domain.ErrInvalidArgument)
	}

	// when the command replies to a forwarded submission, pick the display
	// name up from the forward header
	displayName := ""
	if rm := u.Message.ReplyToMessage; rm != nil && rm.ForwardFrom != nil {
		displayName = strings.TrimSpace(rm.ForwardFrom.FirstName + " " + rm.ForwardFrom.LastName)
	}

	if err := r.uc.Bans.Ban(ctx, r.reg.ID, userID, displayName); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return dispatch.Done(), r.sender.SendMessage(ctx, u.Message.Chat.ID, "Already banned.")
		}
		return dispatch.Done(), err
	}
	return dispatch.Done(), r.sender.SendMessage(ctx, u.Message.Chat.ID,
		fmt.Sprintf("User %d is banned from submitting. Undo with /unban_%d.", userID, userID))
}

func (r *Runner) handleUnban(ctx context.Context, u *tgbotapi.Update, args dispatch.Args) (dispatch.Result, error) {
	if !r.requireAdmin(ctx, u) {
		return dispatch.Done(), nil
	}
	userID, err := strconv.ParseInt(args["user_id"], 10, 64)
	if err != nil {
		return dispatch.Done(), fmt.Errorf("%w: user_id", domain.ErrInvalidArgument)
	}
	if err := r.uc.Bans.Unban(ctx, r.reg.ID, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return dispatch.Done(), r.sender.SendMessage(ctx, u.Message.Chat.ID, "That user isn't banned.")
		}
		return dispatch.Done(), err
	}
	return dispatch.Done(), r.sender.SendMessage(ctx, u.Message.Chat.ID,
		fmt.Sprintf("User %d may submit again.", userID))
}

func (r *Runner) handleBanList(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	banned, err := r.uc.Bans.List(ctx, r.reg.ID)
	if err != nil {
		return dispatch.Done(), err
	}
	if len(banned) == 0 {
		return dispatch.Done(), r.sender.SendMessage(ctx, u.Message.Chat.ID, "Nobody is banned.")
	}
	var b strings.Builder
	b.WriteString("Banned submitters:\n")
	for _, user := range banned {
		name := user.DisplayName
		if name == "" {
			name = "(no name)"
		}
		fmt.Fprintf(&b, "  %s - /unban_%d\n", name, user.UserID)
	}
	return dispatch.Done(), r.sender.SendMessage(ctx, u.Message.Chat.ID, strings.TrimRight(b.String(), "\n"))
}

// handleReply relays a moderator's answer back to the submitter, replying to
// the original submission in their private chat.
func (r *Runner) handleReply(ctx context.Context, u *tgbotapi.Update, args dispatch.Args) (dispatch.Result, error) {
	return dispatch.Done(), r.relayReply(ctx, args["chat_id"], args["message_id"], args["text"])
}

// handleReplyButton starts the reply dialog from the keyboard shortcut; the
// moderator's next text message in this chat becomes the reply.
func (r *Runner) handleReplyButton(ctx context.Context, u *tgbotapi.Update, args dispatch.Args) (dispatch.Result, error) {
	cb := u.CallbackQuery
	defer func() { _ = r.sender.AnswerCallback(ctx, cb.ID) }()
	if !r.mayAdminister(ctx, cb.From.ID) {
		return dispatch.Done(), nil
	}
	if err := r.sender.SendMessage(ctx, r.reg.ModerationChatID,
		"Send the reply text, or /cancel."); err != nil {
		return dispatch.Done(), err
	}
	return dispatch.Next(dispatch.Args{
		"chat_id":    args["chat_id"],
		"message_id": args["message_id"],
	}), nil
}

func (r *Runner) handleReplySend(ctx context.Context, u *tgbotapi.Update, args dispatch.Args) (dispatch.Result, error) {
	return dispatch.Done(), r.relayReply(ctx, args["chat_id"], args["message_id"], u.Message.Text)
}

func (r *Runner) relayReply(ctx context.Context, rawChatID, rawMessageID, text string) error {
	chatID, err := strconv.ParseInt(rawChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: chat_id", domain.ErrInvalidArgument)
	}
	messageID, err := strconv.ParseInt(rawMessageID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: message_id", domain.ErrInvalidArgument)
	}
	if err := r.sender.ReplyTo(ctx, chatID, messageID, "Moderators: "+text); err != nil {
		return r.sender.SendMessage(ctx, r.reg.ModerationChatID,
			"Couldn't deliver that, the submitter may have blocked the bot.")
	}
	return r.sender.SendMessage(ctx, r.reg.ModerationChatID, "Delivered.")
}

// handleBanButton bans the submitter straight from the moderation request's
// keyboard. The payload carries the submitter's user id.
func (r *Runner) handleBanButton(ctx context.Context, u *tgbotapi.Update, args dispatch.Args) (dispatch.Result, error) {
	cb := u.CallbackQuery
	defer func() { _ = r.sender.AnswerCallback(ctx, cb.ID) }()
	if !r.mayAdminister(ctx, cb.From.ID) {
		return dispatch.Done(), nil
	}
	userID, err := strconv.ParseInt(args["user_id"], 10, 64)
	if err != nil {
		return dispatch.Done(), fmt.Errorf("%w: user_id", domain.ErrInvalidArgument)
	}
	if err := r.uc.Bans.Ban(ctx, r.reg.ID, userID, ""); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return dispatch.Done(), nil
		}
		return dispatch.Done(), err
	}
	return dispatch.Done(), r.sender.SendMessage(ctx, r.reg.ModerationChatID,
		fmt.Sprintf("User %d is banned from submitting. Undo with /unban_%d.", userID, userID))
}

func (r *Runner) handleTogglePower(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	if !r.requireAdmin(ctx, u) {
		return dispatch.Done(), nil
	}
	on, err := r.uc.Settings.TogglePowerMode(ctx, r.reg)
	if err != nil {
		return dispatch.Done(), err
	}
	text := "Power mode off: settings are admin-only again."
	if on {
		text = "Power mode on: every member of this chat may change settings."
	}
	return dispatch.Done(), r.sender.SendMessage(ctx, u.Message.Chat.ID, text)
}

func (r *Runner) handleToggleVoteSwitch(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	if !r.requireAdmin(ctx, u) {
		return dispatch.Done(), nil
	}
	on, err := r.uc.Settings.ToggleVoteSwitching(ctx, r.reg)
	if err != nil {
		return dispatch.Done(), err
	}
	text := "Vote switching off: first ballot counts."
	if on {
		text = "Vote switching on: moderators may change their ballot."
	}
	return dispatch.Done(), r.sender.SendMessage(ctx, u.Message.Chat.ID, text)
}

func (r *Runner) handleToggleContent(ctx context.Context, u *tgbotapi.Update, args dispatch.Args) (dispatch.Result, error) {
	if !r.requireAdmin(ctx, u) {
		return dispatch.Done(), nil
	}
	kind := args["kind"]
	c := r.reg.Settings.Content
	var flag *bool
	switch kind {
	case "text":
		flag = &c.Text
	case "photo":
		flag = &c.Photo
	case "video":
		flag = &c.Video
	case "audio":
		flag = &c.Audio
	case "voice":
		flag = &c.Voice
	case "document":
		flag = &c.Document
	case "sticker":
		flag = &c.Sticker
	}
	*flag = !*flag

	if err := r.uc.Settings.SetContent(ctx, r.reg, c); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) && c == (model.ContentSettings{}) {
			return dispatch.Done(), r.sender.SendMessage(ctx, u.Message.Chat.ID,
				"Can't disable the last remaining content type.")
		}
		return dispatch.Done(), err
	}
	state := "disabled"
	if *flag {
		state = "enabled"
	}
	return dispatch.Done(), r.sender.SendMessage(ctx, u.Message.Chat.ID,
		fmt.Sprintf("%s submissions %s.", strings.ToUpper(kind[:1])+kind[1:], state))
}
