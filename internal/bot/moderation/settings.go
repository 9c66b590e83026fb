package moderation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-channel-moderation/internal/dispatch"
	"telegram-channel-moderation/internal/domain"
)

var (
	numberRe     = regexp.MustCompile(`^(?P<value>\d+)$`)
	textLimitsRe = regexp.MustCompile(`^(?P<min>\d+)\.\.(?P<max>\d+)$`)
)

// wireSettingsDialogs registers the two-step owner dialogs: the command
// prompts for a value, the follow-up message carries it. A message the value
// filter rejects falls through to the fallback with the stage kept, so the
// owner just tries again or says /cancel.
func (r *Runner) wireSettingsDialogs(d *dispatch.Dispatcher, inModChat dispatch.Filter) error {
	type dialog struct {
		command string
		prompt  string
		valueRe *regexp.Regexp
		onValue dispatch.Handler
	}
	dialogs := []dialog{
		{"/setdelay", "Send the new publish delay in minutes (0 disables the gap).", numberRe, r.applyDelay},
		{"/setvotes", "Send how many votes approve or decline a post.", numberRe, r.applyVotes},
		{"/settimeout", "Send the vote timeout in hours.", numberRe, r.applyTimeout},
		{"/settextlimits", "Send the text length bounds as min..max, for example 50..1000.", textLimitsRe, r.applyTextLimits},
		{"/setstartmessage", "Send the new greeting shown on /start.", nil, r.applyStartMessage},
	}

	for _, dl := range dialogs {
		dl := dl
		name := dl.command[1:]
		prompt := dispatch.NewStep(name, dispatch.All(inModChat, dispatch.Command(dl.command)),
			func(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
				if !r.requireAdmin(ctx, u) {
					return dispatch.Done(), nil
				}
				err := r.sender.SendMessage(ctx, u.Message.Chat.ID, dl.prompt)
				return dispatch.Next(nil), err
			})

		valueFilter := dispatch.TextAny()
		if dl.valueRe != nil {
			valueFilter = dispatch.Regexp(dl.valueRe)
		}
		value := dispatch.NewStep(name+"_value", dispatch.All(inModChat, valueFilter), dl.onValue)

		if err := d.Handle(prompt, dispatch.NonFinal()); err != nil {
			return fmt.Errorf("wire %s: %w", name, err)
		}
		if err := d.Handle(value, dispatch.After(prompt)); err != nil {
			return fmt.Errorf("wire %s_value: %w", name, err)
		}
	}
	return nil
}

func (r *Runner) settingApplied(ctx context.Context, u *tgbotapi.Update, err error, ok string) (dispatch.Result, error) {
	if err == domain.ErrInvalidArgument {
		return dispatch.Done(), r.sender.SendMessage(ctx, u.Message.Chat.ID, "That value is out of range.")
	}
	if err != nil {
		return dispatch.Done(), err
	}
	return dispatch.Done(), r.sender.SendMessage(ctx, u.Message.Chat.ID, ok)
}

func (r *Runner) applyDelay(ctx context.Context, u *tgbotapi.Update, args dispatch.Args) (dispatch.Result, error) {
	minutes, _ := strconv.Atoi(args["value"])
	err := r.uc.Settings.SetPublishDelay(ctx, r.reg, time.Duration(minutes)*time.Minute)
	return r.settingApplied(ctx, u, err, fmt.Sprintf("Publish delay is now %d minutes.", minutes))
}

func (r *Runner) applyVotes(ctx context.Context, u *tgbotapi.Update, args dispatch.Args) (dispatch.Result, error) {
	votes, _ := strconv.Atoi(args["value"])
	err := r.uc.Settings.SetRequiredVotes(ctx, r.reg, votes)
	return r.settingApplied(ctx, u, err, fmt.Sprintf("Posts now need %d votes either way.", votes))
}

func (r *Runner) applyTimeout(ctx context.Context, u *tgbotapi.Update, args dispatch.Args) (dispatch.Result, error) {
	hours, _ := strconv.Atoi(args["value"])
	err := r.uc.Settings.SetVoteTimeout(ctx, r.reg, time.Duration(hours)*time.Hour)
	return r.settingApplied(ctx, u, err, fmt.Sprintf("Undecided posts now expire after %d hours.", hours))
}

func (r *Runner) applyTextLimits(ctx context.Context, u *tgbotapi.Update, args dispatch.Args) (dispatch.Result, error) {
	min, _ := strconv.Atoi(args["min"])
	max, _ := strconv.Atoi(args["max"])
	err := r.uc.Settings.SetTextLimits(ctx, r.reg, min, max)
	return r.settingApplied(ctx, u, err, fmt.Sprintf("Text posts must now be %d..%d characters.", min, max))
}

func (r *Runner) applyStartMessage(ctx context.Context, u *tgbotapi.Update, _ dispatch.Args) (dispatch.Result, error) {
	err := r.uc.Settings.SetStartMessage(ctx, r.reg, u.Message.Text)
	return r.settingApplied(ctx, u, err, "Greeting updated.")
}
