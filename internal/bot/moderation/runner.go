package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/dispatch"
	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/adapter"
	"telegram-channel-moderation/internal/usecase"
)

// adminCacheTTL bounds how stale the moderation chat's admin list may get
// before the next permission check refetches it.
const adminCacheTTL = 5 * time.Minute

// UseCases bundles everything a moderation bot's handlers act through.
type UseCases struct {
	Voting     *usecase.VotingUseCase
	Submission *usecase.SubmissionUseCase
	Settings   *usecase.SettingsUseCase
	Bans       *usecase.BanUseCase
	Stats      *usecase.StatsUseCase
}

// Runner is one registered moderation bot: its Telegram identity, its
// dispatch tree and its settings. The holder constructs one Runner per active
// registration and runs them independently.
type Runner struct {
	reg    *model.BotRegistration
	sender adapter.Sender
	chats  adapter.ChatAPI
	uc     UseCases
	log    zerolog.Logger

	adminMu        sync.Mutex
	admins         map[int64]struct{}
	adminFetchedAt time.Time
}

func NewRunner(reg *model.BotRegistration, sender adapter.Sender, chats adapter.ChatAPI, uc UseCases, log *zerolog.Logger) *Runner {
	return &Runner{
		reg:    reg,
		sender: sender,
		chats:  chats,
		uc:     uc,
		log:    log.With().Str("component", "moderation").Int64("bot", reg.ID).Logger(),
	}
}

// Registration exposes the live registration this runner serves. The publish
// and timeout workers share the pointer so settings changes apply on the next
// tick.
func (r *Runner) Registration() *model.BotRegistration { return r.reg }

// Wire builds the dispatch tree. Root order is deliberate: chat-scoped
// moderation commands go first, the broad submission catch-alls last, so
// "/stats" in the moderation chat is never swallowed as a text submission.
func (r *Runner) Wire(d *dispatch.Dispatcher) error {
	inModChat := dispatch.Chat(r.reg.ModerationChatID)

	cancel := dispatch.NewStep("cancel", dispatch.Command("/cancel"), r.handleCancel)
	d.SetCancelStep(cancel)
	d.SetFallback(r.handleFallback)

	steps := []struct {
		s    *dispatch.Step
		opts []dispatch.Option
	}{
		{dispatch.NewStep("start", dispatch.All(dispatch.Private(), dispatch.Command("/start")), r.handleStart), nil},
		{dispatch.NewStep("help", dispatch.Command("/help"), r.handleHelp), nil},
		{cancel, nil},

		// voting, via command or inline keyboard
		{dispatch.NewStep("vote_cmd", dispatch.All(inModChat, dispatch.Regexp(voteCmdRe)), r.handleVote), nil},
		{dispatch.NewStep("vote_cb", dispatch.All(inModChat, dispatch.CallbackRegexp(voteCbRe)), r.handleVote), nil},

		// moderation chat administration
		{dispatch.NewStep("stats", dispatch.All(inModChat, dispatch.Command("/stats")), r.handleStats), nil},
		{dispatch.NewStep("ban", dispatch.All(inModChat, dispatch.Regexp(banRe)), r.handleBan), nil},
		{dispatch.NewStep("unban", dispatch.All(inModChat, dispatch.Regexp(unbanRe)), r.handleUnban), nil},
		{dispatch.NewStep("banlist", dispatch.All(inModChat, dispatch.Command("/banlist")), r.handleBanList), nil},
		{dispatch.NewStep("reply", dispatch.All(inModChat, dispatch.Regexp(replyRe)), r.handleReply), nil},
		{dispatch.NewStep("ban_cb", dispatch.All(inModChat, dispatch.CallbackRegexp(banCbRe)), r.handleBanButton), nil},
		{dispatch.NewStep("togglepower", dispatch.All(inModChat, dispatch.Command("/togglepower")), r.handleTogglePower), nil},
		{dispatch.NewStep("togglevoteswitch", dispatch.All(inModChat, dispatch.Command("/togglevoteswitch")), r.handleToggleVoteSwitch), nil},
		{dispatch.NewStep("togglecontent", dispatch.All(inModChat, dispatch.Regexp(contentRe)), r.handleToggleContent), nil},
	}
	for _, st := range steps {
		if err := d.Handle(st.s, st.opts...); err != nil {
			return fmt.Errorf("wire %s: %w", st.s.Name(), err)
		}
	}

	// the Reply keyboard button opens a two-step dialog: press, then type
	replyCb := dispatch.NewStep("reply_cb", dispatch.All(inModChat, dispatch.CallbackRegexp(replyCbRe)), r.handleReplyButton)
	replySend := dispatch.NewStep("reply_send", dispatch.All(inModChat, dispatch.TextAny()), r.handleReplySend)
	if err := d.Handle(replyCb, dispatch.NonFinal()); err != nil {
		return fmt.Errorf("wire reply_cb: %w", err)
	}
	if err := d.Handle(replySend, dispatch.After(replyCb)); err != nil {
		return fmt.Errorf("wire reply_send: %w", err)
	}

	if err := r.wireSettingsDialogs(d, inModChat); err != nil {
		return err
	}
	// submissions last; their filters are the broadest
	return r.wireSubmission(d)
}

func (r *Runner) handleStart(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	err := r.sender.SendMessage(ctx, u.Message.Chat.ID, r.reg.Settings.StartMessage)
	return dispatch.Done(), err
}

const modHelpText = `Moderation chat commands:
/vote_<chat>_<msg>_yes|no - vote on a submission
/stats - queue counters
/setdelay /setvotes /settimeout /settextlimits /setstartmessage - settings
/togglepower /togglevoteswitch /togglecontent_<kind>
/ban_<user> /unban_<user> /banlist
/reply_<chat>_<msg> <text> - answer a submitter`

func (r *Runner) handleHelp(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	text := "Send me a message and the moderators will take a look."
	if u.Message.Chat.ID == r.reg.ModerationChatID {
		text = modHelpText
	}
	err := r.sender.SendMessage(ctx, u.Message.Chat.ID, text)
	return dispatch.Done(), err
}

func (r *Runner) handleCancel(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	err := r.sender.SendMessage(ctx, u.Message.Chat.ID, "Ok, cancelled.")
	return dispatch.Done(), err
}

func (r *Runner) handleFallback(ctx context.Context, u *tgbotapi.Update) error {
	if u.Message == nil || u.Message.Chat == nil {
		return nil
	}
	// stay quiet in the moderation chat, people talk there
	if u.Message.Chat.ID == r.reg.ModerationChatID {
		return nil
	}
	if !u.Message.Chat.IsPrivate() {
		return nil
	}
	return r.sender.SendMessage(ctx, u.Message.Chat.ID,
		"I didn't understand that. Send me the content you want published, or /help.")
}

// mayAdminister reports whether userID may run settings and ban commands.
// With power mode on, every member of the moderation chat may; otherwise only
// the owner and the chat's admins.
func (r *Runner) mayAdminister(ctx context.Context, userID int64) bool {
	if r.reg.Settings.PowerMode || userID == r.reg.OwnerID {
		return true
	}

	r.adminMu.Lock()
	defer r.adminMu.Unlock()
	if time.Since(r.adminFetchedAt) > adminCacheTTL {
		ids, err := r.chats.GetChatAdministrators(ctx, r.reg.ModerationChatID)
		if err != nil {
			r.log.Warn().Err(err).Msg("admin list fetch failed, keeping cached list")
		} else {
			r.admins = make(map[int64]struct{}, len(ids))
			for _, id := range ids {
				r.admins[id] = struct{}{}
			}
			r.adminFetchedAt = time.Now()
		}
	}
	_, ok := r.admins[userID]
	return ok
}
