package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-channel-moderation/internal/dispatch"
	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/adapter"
)

const (
	confirmData = "confirm_publishing"
	declineData = "cancel_publishing"
)

func (r *Runner) wireSubmission(d *dispatch.Dispatcher) error {
	text := dispatch.NewStep("submit_text",
		dispatch.All(dispatch.Private(), dispatch.TextAny()), r.handleTextSubmission)
	media := dispatch.NewStep("submit_media",
		dispatch.All(dispatch.Private(), dispatch.MultimediaAny()), r.handleMediaSubmission)
	confirm := dispatch.NewStep("confirm_publishing", dispatch.Callback(confirmData), r.handleConfirm)
	decline := dispatch.NewStep("cancel_publishing", dispatch.Callback(declineData), r.handleDecline)

	steps := []struct {
		s    *dispatch.Step
		opts []dispatch.Option
	}{
		{text, []dispatch.Option{dispatch.NonFinal()}},
		{media, []dispatch.Option{dispatch.NonFinal()}},
		{confirm, []dispatch.Option{dispatch.After(text)}},
		{decline, []dispatch.Option{dispatch.After(text)}},
		{confirm, []dispatch.Option{dispatch.After(media)}},
		{decline, []dispatch.Option{dispatch.After(media)}},
		// sending new content mid-confirmation replaces the draft
		{text, []dispatch.Option{dispatch.After(text), dispatch.NonFinal()}},
		{media, []dispatch.Option{dispatch.After(text), dispatch.NonFinal()}},
		{text, []dispatch.Option{dispatch.After(media), dispatch.NonFinal()}},
		{media, []dispatch.Option{dispatch.After(media), dispatch.NonFinal()}},
	}
	for _, st := range steps {
		if err := d.Handle(st.s, st.opts...); err != nil {
			return fmt.Errorf("wire %s: %w", st.s.Name(), err)
		}
	}
	return nil
}

func (r *Runner) handleTextSubmission(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	m := u.Message
	if !r.reg.Settings.Content.Text {
		err := r.sender.SendMessage(ctx, m.Chat.ID, "This bot doesn't accept text posts.")
		return dispatch.Done(), err
	}
	n := len([]rune(m.Text))
	if n < r.reg.Settings.TextMin || n > r.reg.Settings.TextMax {
		err := r.sender.SendMessage(ctx, m.Chat.ID, fmt.Sprintf(
			"Posts must be between %d and %d characters, yours is %d.",
			r.reg.Settings.TextMin, r.reg.Settings.TextMax, n))
		return dispatch.Done(), err
	}
	return r.askConfirmation(ctx, m)
}

func (r *Runner) handleMediaSubmission(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	m := u.Message
	if kind := mediaKind(m); !r.contentAllowed(kind) {
		err := r.sender.SendMessage(ctx, m.Chat.ID,
			fmt.Sprintf("This bot doesn't accept %s posts.", kind))
		return dispatch.Done(), err
	}
	return r.askConfirmation(ctx, m)
}

func (r *Runner) askConfirmation(ctx context.Context, m *tgbotapi.Message) (dispatch.Result, error) {
	_, err := r.sender.SendButtons(ctx, m.Chat.ID, "Send this to the moderators?",
		[][]adapter.InlineButton{{
			{Text: "Yes, submit", Data: confirmData},
			{Text: "No, scrap it", Data: declineData},
		}})
	if err != nil {
		return dispatch.Done(), err
	}
	return dispatch.Next(dispatch.Args{
		"submit_message_id": strconv.Itoa(m.MessageID),
		"submit_chat_id":    strconv.FormatInt(m.Chat.ID, 10),
	}), nil
}

func (r *Runner) handleConfirm(ctx context.Context, u *tgbotapi.Update, args dispatch.Args) (dispatch.Result, error) {
	cb := u.CallbackQuery
	defer func() { _ = r.sender.AnswerCallback(ctx, cb.ID) }()

	messageID, err := strconv.ParseInt(args["submit_message_id"], 10, 64)
	if err != nil {
		return dispatch.Done(), fmt.Errorf("%w: submit_message_id missing from stage", domain.ErrInvalidArgument)
	}
	chatID, err := strconv.ParseInt(args["submit_chat_id"], 10, 64)
	if err != nil {
		return dispatch.Done(), fmt.Errorf("%w: submit_chat_id missing from stage", domain.ErrInvalidArgument)
	}

	item, err := r.uc.Submission.Submit(ctx, r.reg.ID, cb.From.ID, chatID, messageID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserBanned):
			return dispatch.Done(), r.sender.SendMessage(ctx, chatID, "You are not allowed to submit here.")
		case errors.Is(err, domain.ErrOperationFailed):
			return dispatch.Done(), r.sender.SendMessage(ctx, chatID, "Slow down a little and try again later.")
		}
		return dispatch.Done(), err
	}

	if err := r.postModerationRequest(ctx, item); err != nil {
		r.log.Error().Err(err).Int64("item", item.ID).Msg("posting moderation request failed")
		return dispatch.Done(), r.sender.SendMessage(ctx, chatID,
			"Your post is filed but I couldn't reach the moderators yet. They'll see it shortly.")
	}
	return dispatch.Done(), r.sender.SendMessage(ctx, chatID, "Sent to the moderators. I'll keep you posted.")
}

// postModerationRequest forwards the submission into the moderation chat and
// hangs the vote keyboard under it.
func (r *Runner) postModerationRequest(ctx context.Context, item *model.Item) error {
	if err := r.sender.ForwardMessage(ctx, r.reg.ModerationChatID, item.OriginChatID, item.ID); err != nil {
		return err
	}
	kbMsgID, err := r.sender.SendButtons(ctx, r.reg.ModerationChatID,
		fmt.Sprintf("Vote: /vote_%d_%d_yes or /vote_%d_%d_no",
			item.OriginChatID, item.ID, item.OriginChatID, item.ID),
		ModerationKeyboard(item.OriginChatID, item.ID, item.OwnerID))
	if err != nil {
		return err
	}
	if err := r.uc.Submission.AttachModerationMessage(ctx, item.ID, item.OriginChatID, kbMsgID); err != nil {
		r.log.Warn().Err(err).Int64("item", item.ID).Msg("recording moderation message id failed")
	}
	return nil
}

func (r *Runner) handleDecline(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	cb := u.CallbackQuery
	defer func() { _ = r.sender.AnswerCallback(ctx, cb.ID) }()
	return dispatch.Done(), r.sender.SendMessage(ctx, cb.From.ID, "Ok, scrapped.")
}

func (r *Runner) contentAllowed(kind string) bool {
	c := r.reg.Settings.Content
	switch kind {
	case "photo":
		return c.Photo
	case "video":
		return c.Video
	case "audio":
		return c.Audio
	case "voice":
		return c.Voice
	case "document":
		return c.Document
	case "sticker":
		return c.Sticker
	default:
		return false
	}
}

func mediaKind(m *tgbotapi.Message) string {
	switch {
	case len(m.Photo) > 0:
		return "photo"
	case m.Video != nil:
		return "video"
	case m.Audio != nil:
		return "audio"
	case m.Voice != nil:
		return "voice"
	case m.Document != nil:
		return "document"
	case m.Sticker != nil:
		return "sticker"
	default:
		return "unknown"
	}
}
