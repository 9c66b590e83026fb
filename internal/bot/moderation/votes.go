package moderation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-channel-moderation/internal/dispatch"
	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/ports/adapter"
)

var (
	voteCmdRe = regexp.MustCompile(`^/vote_(?P<origin_chat_id>-?\d+)_(?P<message_id>\d+)_(?P<dir>yes|no)$`)
	voteCbRe  = regexp.MustCompile(`^vote_(?P<origin_chat_id>-?\d+)_(?P<message_id>\d+)_(?P<dir>yes|no)$`)
)

// ModerationKeyboard builds the inline keyboard attached to every moderation
// request: vote buttons plus reply/ban shortcuts. The payloads round-trip
// through voteCbRe, replyCbRe and banCbRe.
func ModerationKeyboard(originChatID, messageID, ownerID int64) [][]adapter.InlineButton {
	return [][]adapter.InlineButton{
		{
			{Text: "👍", Data: fmt.Sprintf("vote_%d_%d_yes", originChatID, messageID)},
			{Text: "👎", Data: fmt.Sprintf("vote_%d_%d_no", originChatID, messageID)},
		},
		{
			{Text: "Reply", Data: fmt.Sprintf("reply_%d_%d", originChatID, messageID)},
			{Text: "Ban", Data: fmt.Sprintf("ban_%d", ownerID)},
		},
	}
}

func (r *Runner) handleVote(ctx context.Context, u *tgbotapi.Update, args dispatch.Args) (dispatch.Result, error) {
	originChatID, err := strconv.ParseInt(args["origin_chat_id"], 10, 64)
	if err != nil {
		return dispatch.Done(), fmt.Errorf("%w: origin_chat_id", domain.ErrInvalidArgument)
	}
	messageID, err := strconv.ParseInt(args["message_id"], 10, 64)
	if err != nil {
		return dispatch.Done(), fmt.Errorf("%w: message_id", domain.ErrInvalidArgument)
	}
	approve := args["dir"] == "yes"

	var voterID int64
	if u.CallbackQuery != nil {
		voterID = u.CallbackQuery.From.ID
		defer func() { _ = r.sender.AnswerCallback(ctx, u.CallbackQuery.ID) }()
	} else {
		voterID = u.Message.From.ID
	}

	out, err := r.uc.Voting.CastVote(ctx, voterID, messageID, originChatID, approve, r.reg.Settings)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrVotingClosed):
			return dispatch.Done(), r.notifyVoter(ctx, u, "Voting on that one is already over.")
		case errors.Is(err, domain.ErrAlreadyVoted):
			return dispatch.Done(), r.notifyVoter(ctx, u, "You already voted on that one.")
		case errors.Is(err, domain.ErrNotFound):
			return dispatch.Done(), r.notifyVoter(ctx, u, "I don't know that submission.")
		}
		return dispatch.Done(), err
	}

	if !out.Decided {
		return dispatch.Done(), nil
	}

	// exactly one ballot crosses the threshold, so this notification and the
	// keyboard edit happen once per item
	if out.Approved {
		if err := r.sender.ReplyTo(ctx, originChatID, messageID,
			"Your post was approved and queued for publishing."); err != nil {
			r.log.Warn().Err(err).Msg("approval notification failed")
		}
	} else {
		if err := r.sender.ReplyTo(ctx, originChatID, messageID, fmt.Sprintf(
			"Sorry, the moderators declined your post (%d for, %d against).",
			out.Tally.Approve, out.Tally.Against())); err != nil {
			r.log.Warn().Err(err).Msg("rejection notification failed")
		}
	}
	r.markSettled(ctx, originChatID, messageID, out.Approved)
	return dispatch.Done(), nil
}

// markSettled strips the vote keyboard off the moderation request by editing
// the message to its final verdict.
func (r *Runner) markSettled(ctx context.Context, originChatID, messageID int64, approved bool) {
	item, err := r.uc.Stats.Item(ctx, messageID, originChatID)
	if err != nil || item.ModerationMessageID == 0 {
		return
	}
	verdict := "Declined."
	if approved {
		verdict = "Approved, queued for publishing."
	}
	if err := r.sender.EditMessageText(ctx, r.reg.ModerationChatID, item.ModerationMessageID, verdict); err != nil {
		r.log.Debug().Err(err).Msg("verdict edit failed")
	}
}

func (r *Runner) notifyVoter(ctx context.Context, u *tgbotapi.Update, text string) error {
	if u.CallbackQuery != nil {
		// the AnswerCallback deferred in handleVote covers the ack; nothing
		// more to say in the chat
		return nil
	}
	return r.sender.ReplyTo(ctx, u.Message.Chat.ID, int64(u.Message.MessageID), text)
}
