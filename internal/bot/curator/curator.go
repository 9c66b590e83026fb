package curator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/dispatch"
	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/ports/adapter"
)

var (
	tokenRe   = regexp.MustCompile(`^(?P<token>\d+:[A-Za-z0-9_-]{30,})$`)
	channelRe = regexp.MustCompile(`^(?P<channel>@[A-Za-z0-9_]{5,})$`)
)

// How long the curator waits for the owner to attach the new bot to its
// moderation group before giving up on the registration.
const attachWait = 10 * time.Minute

const helpText = `I set up moderation bots for Telegram channels.

/reg - register a new moderation bot
/cancel - abort the current dialog`

// Curator runs the front-desk bot: it walks a channel owner through
// registering a moderation bot and hands the finished registration to the
// holder over the queue.
type Curator struct {
	sender adapter.Sender
	queue  adapter.Queue
	log    zerolog.Logger
}

func New(sender adapter.Sender, queue adapter.Queue, log *zerolog.Logger) *Curator {
	return &Curator{
		sender: sender,
		queue:  queue,
		log:    log.With().Str("component", "curator").Logger(),
	}
}

// Wire registers the registration dialog on the dispatcher. Order within each
// stage matters: the token and channel steps carry narrow filters, and their
// catch-all "try again" siblings are registered after them.
func (c *Curator) Wire(d *dispatch.Dispatcher) error {
	cancel := dispatch.NewStep("cancel", dispatch.Command("/cancel"), c.handleCancel)
	d.SetCancelStep(cancel)
	d.SetFallback(c.handleFallback)

	start := dispatch.NewStep("start", dispatch.All(dispatch.Private(), dispatch.Command("/start")), c.handleStart)
	help := dispatch.NewStep("help", dispatch.Command("/help"), c.handleHelp)
	reg := dispatch.NewStep("reg", dispatch.All(dispatch.Private(), dispatch.Command("/reg")), c.handleReg)
	token := dispatch.NewStep("reg_token", dispatch.Regexp(tokenRe), c.handleToken)
	badToken := dispatch.NewStep("reg_token_retry", dispatch.TextAny(), c.handleBadToken)
	channel := dispatch.NewStep("reg_channel", dispatch.Regexp(channelRe), c.handleChannel)
	badChannel := dispatch.NewStep("reg_channel_retry", dispatch.TextAny(), c.handleBadChannel)

	steps := []struct {
		s    *dispatch.Step
		opts []dispatch.Option
	}{
		{start, nil},
		{help, nil},
		{cancel, nil},
		{reg, []dispatch.Option{dispatch.NonFinal()}},

		{token, []dispatch.Option{dispatch.After(reg), dispatch.NonFinal()}},
		{badToken, []dispatch.Option{dispatch.After(reg), dispatch.NonFinal()}},
		// a failed attempt loops back to awaiting a token
		{token, []dispatch.Option{dispatch.After(badToken), dispatch.NonFinal()}},
		{badToken, []dispatch.Option{dispatch.After(badToken), dispatch.NonFinal()}},

		{channel, []dispatch.Option{dispatch.After(token)}},
		{badChannel, []dispatch.Option{dispatch.After(token), dispatch.NonFinal()}},
		{channel, []dispatch.Option{dispatch.After(badChannel)}},
		{badChannel, []dispatch.Option{dispatch.After(badChannel), dispatch.NonFinal()}},
	}
	for _, st := range steps {
		if err := d.Handle(st.s, st.opts...); err != nil {
			return fmt.Errorf("wire %s: %w", st.s.Name(), err)
		}
	}
	return nil
}

func chatOf(u *tgbotapi.Update) int64 { return u.Message.Chat.ID }
func userOf(u *tgbotapi.Update) int64 { return u.Message.From.ID }

func (c *Curator) handleStart(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	err := c.sender.SendMessage(ctx, chatOf(u),
		"Hi! I create moderation bots for channels. Say /reg to set one up.")
	return dispatch.Done(), err
}

func (c *Curator) handleHelp(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	err := c.sender.SendMessage(ctx, chatOf(u), helpText)
	return dispatch.Done(), err
}

func (c *Curator) handleCancel(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	err := c.sender.SendMessage(ctx, chatOf(u), "Ok, cancelled.")
	return dispatch.Done(), err
}

func (c *Curator) handleFallback(ctx context.Context, u *tgbotapi.Update) error {
	if u.Message == nil {
		return nil
	}
	return c.sender.SendMessage(ctx, chatOf(u), "I didn't understand that. "+helpText)
}

func (c *Curator) handleReg(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	err := c.sender.SendMessage(ctx, chatOf(u),
		"Create a bot with @BotFather and send me its token.")
	return dispatch.Next(nil), err
}

func (c *Curator) handleBadToken(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	err := c.sender.SendMessage(ctx, chatOf(u),
		"That doesn't look like a bot token. Paste the token from @BotFather, or /cancel.")
	return dispatch.Next(nil), err
}

// handleToken validates the token with the holder, then blocks until the
// owner attaches the bot to a moderation group. The wait runs on this
// conversation's worker on purpose: the dialog cannot advance anyway.
func (c *Curator) handleToken(ctx context.Context, u *tgbotapi.Update, args dispatch.Args) (dispatch.Result, error) {
	chatID, tokenStr := chatOf(u), args["token"]

	payload, _ := json.Marshal(adapter.GetBotInfoRequest{Token: tokenStr})
	raw, err := c.queue.Request(ctx, adapter.TopicGetBotInfo, payload, 30*time.Second)
	if err != nil {
		if err == domain.ErrQueueTimeout {
			sendErr := c.sender.SendMessage(ctx, chatID, "I can't verify tokens right now, try again later.")
			return dispatch.Done(), sendErr
		}
		return dispatch.Done(), err
	}
	var info adapter.GetBotInfoReply
	if err := json.Unmarshal(raw, &info); err != nil {
		return dispatch.Done(), err
	}
	if !info.OK {
		err := c.sender.SendMessage(ctx, chatID, "Telegram rejected that token. Check it and /reg again.")
		return dispatch.Done(), err
	}
	if info.AlreadyRegistered {
		err := c.sender.SendMessage(ctx, chatID, fmt.Sprintf("@%s is already registered.", info.Username))
		return dispatch.Done(), err
	}

	if err := c.sender.SendMessage(ctx, chatID, fmt.Sprintf(
		"Good, that's @%s. Now add it to your moderation group and say /attach there. I'll wait.",
		info.Username)); err != nil {
		return dispatch.Done(), err
	}

	groupPayload, _ := json.Marshal(adapter.GetModerationGroupRequest{Token: tokenStr, OwnerID: userOf(u)})
	raw, err = c.queue.Request(ctx, adapter.TopicGetModerationGroup, groupPayload, attachWait)
	if err != nil {
		if err == domain.ErrQueueTimeout {
			sendErr := c.sender.SendMessage(ctx, chatID, "No /attach arrived in time. Start over with /reg when ready.")
			return dispatch.Done(), sendErr
		}
		return dispatch.Done(), err
	}
	var group adapter.GetModerationGroupReply
	if err := json.Unmarshal(raw, &group); err != nil {
		return dispatch.Done(), err
	}
	if !group.OK {
		err := c.sender.SendMessage(ctx, chatID, "Attaching the bot failed: "+group.Error)
		return dispatch.Done(), err
	}

	err = c.sender.SendMessage(ctx, chatID, fmt.Sprintf(
		"Moderation group is %q. Last step: send the channel name (like @mychannel) and make @%s an admin there.",
		group.Title, info.Username))
	return dispatch.Next(dispatch.Args{
		"token":              tokenStr,
		"bot_id":             strconv.FormatInt(info.BotID, 10),
		"bot_username":       info.Username,
		"moderation_chat_id": strconv.FormatInt(group.ChatID, 10),
	}), err
}

func (c *Curator) handleBadChannel(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	err := c.sender.SendMessage(ctx, chatOf(u),
		"Channel names start with @ and contain no spaces, like @mychannel. Try again, or /cancel.")
	return dispatch.Next(nil), err
}

func (c *Curator) handleChannel(ctx context.Context, u *tgbotapi.Update, args dispatch.Args) (dispatch.Result, error) {
	chatID := chatOf(u)
	modChatID, err := strconv.ParseInt(args["moderation_chat_id"], 10, 64)
	if err != nil {
		return dispatch.Done(), fmt.Errorf("%w: bad moderation_chat_id in stage", domain.ErrInvalidArgument)
	}

	payload, _ := json.Marshal(adapter.NewBotRequest{
		Token:            args["token"],
		OwnerID:          userOf(u),
		ModerationChatID: modChatID,
		TargetChannel:    args["channel"],
	})
	if err := c.queue.Send(ctx, adapter.TopicNewBot, payload); err != nil {
		sendErr := c.sender.SendMessage(ctx, chatID, "Something went wrong on my side, try /reg again later.")
		if sendErr != nil {
			return dispatch.Done(), sendErr
		}
		return dispatch.Done(), err
	}

	c.log.Info().Str("bot", args["bot_username"]).Str("channel", args["channel"]).Msg("registration completed")
	err = c.sender.SendMessage(ctx, chatID, fmt.Sprintf(
		"All set! @%s now moderates submissions for %s.", args["bot_username"], args["channel"]))
	return dispatch.Done(), err
}

// NotifyRevoked tells an owner their bot's token stopped working. Called from
// the queue listener on curator.bot_revoked events.
func (c *Curator) NotifyRevoked(ctx context.Context, ev adapter.BotRevokedEvent) error {
	text := "One of your moderation bots was switched off because its token no longer works."
	if ev.Username != "" {
		text = fmt.Sprintf("@%s was switched off because its token no longer works. Re-register it with /reg.", ev.Username)
	}
	return c.sender.SendMessage(ctx, ev.OwnerID, text)
}
