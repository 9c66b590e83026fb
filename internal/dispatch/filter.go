package dispatch

import (
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Args is the argument set flowing through a dialog: stage metadata merged
// with fields extracted by filters along the way.
type Args map[string]string

func (a Args) Clone() Args {
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func (a Args) Merge(patch Args) {
	for k, v := range patch {
		a[k] = v
	}
}

// Match is the outcome of testing a filter: not applicable, applicable, or
// applicable with extracted fields to merge into the handler's args.
type Match struct {
	OK     bool
	Fields Args
}

func Rejected() Match        { return Match{} }
func Accepted() Match        { return Match{OK: true} }
func Extracted(f Args) Match { return Match{OK: true, Fields: f} }

// Filter is a pure predicate over an inbound update. Implementations carry no
// per-conversation state and are shared freely between dialogs.
type Filter interface {
	Test(u *tgbotapi.Update) Match
}

type filterFunc func(u *tgbotapi.Update) Match

func (f filterFunc) Test(u *tgbotapi.Update) Match { return f(u) }

// Any matches every update.
func Any() Filter {
	return filterFunc(func(*tgbotapi.Update) Match { return Accepted() })
}

// TextAny matches any message carrying non-empty text.
func TextAny() Filter {
	return filterFunc(func(u *tgbotapi.Update) Match {
		if u.Message != nil && u.Message.Text != "" {
			return Accepted()
		}
		return Rejected()
	})
}

// Command matches an exact command ("/reg"), tolerating a bot-mention suffix
// ("/reg@SomeBot") and trailing arguments ("/reg foo").
func Command(cmd string) Filter {
	return filterFunc(func(u *tgbotapi.Update) Match {
		if u.Message == nil || u.Message.Text == "" {
			return Rejected()
		}
		text := strings.TrimSpace(u.Message.Text)
		if text == cmd || strings.HasPrefix(text, cmd+"@") || strings.HasPrefix(text, cmd+" ") {
			return Accepted()
		}
		return Rejected()
	})
}

// Regexp matches message text against re, exposing named capture groups as
// extracted fields.
func Regexp(re *regexp.Regexp) Filter {
	return filterFunc(func(u *tgbotapi.Update) Match {
		if u.Message == nil || u.Message.Text == "" {
			return Rejected()
		}
		return matchNamed(re, strings.TrimSpace(u.Message.Text))
	})
}

// Callback matches an exact callback-query payload.
func Callback(data string) Filter {
	return filterFunc(func(u *tgbotapi.Update) Match {
		if u.CallbackQuery != nil && u.CallbackQuery.Data == data {
			return Accepted()
		}
		return Rejected()
	})
}

// CallbackRegexp matches callback-query payloads against re with named groups.
func CallbackRegexp(re *regexp.Regexp) Filter {
	return filterFunc(func(u *tgbotapi.Update) Match {
		if u.CallbackQuery == nil {
			return Rejected()
		}
		return matchNamed(re, u.CallbackQuery.Data)
	})
}

// MultimediaAny matches messages carrying any media payload.
func MultimediaAny() Filter {
	return filterFunc(func(u *tgbotapi.Update) Match {
		m := u.Message
		if m == nil {
			return Rejected()
		}
		if len(m.Photo) > 0 || m.Video != nil || m.Audio != nil || m.Voice != nil ||
			m.Document != nil || m.Sticker != nil {
			return Accepted()
		}
		return Rejected()
	})
}

// Private matches updates originating from a private chat.
func Private() Filter {
	return filterFunc(func(u *tgbotapi.Update) Match {
		if m := u.Message; m != nil && m.Chat != nil && m.Chat.IsPrivate() {
			return Accepted()
		}
		return Rejected()
	})
}

// Chat matches updates bound to one specific chat, resolving the chat id the
// same way the dispatcher derives conversation keys.
func Chat(chatID int64) Filter {
	return filterFunc(func(u *tgbotapi.Update) Match {
		if chatID != 0 && updateChatID(u) == chatID {
			return Accepted()
		}
		return Rejected()
	})
}

// All combines filters conjunctively: every filter must accept, extracted
// fields are merged left to right, and evaluation stops at the first reject.
func All(filters ...Filter) Filter {
	return filterFunc(func(u *tgbotapi.Update) Match {
		fields := Args{}
		for _, f := range filters {
			m := f.Test(u)
			if !m.OK {
				return Rejected()
			}
			fields.Merge(m.Fields)
		}
		if len(fields) == 0 {
			return Accepted()
		}
		return Extracted(fields)
	})
}

func matchNamed(re *regexp.Regexp, text string) Match {
	groups := re.FindStringSubmatch(text)
	if groups == nil {
		return Rejected()
	}
	fields := Args{}
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(groups) {
			fields[name] = groups[i]
		}
	}
	return Extracted(fields)
}

func updateChatID(u *tgbotapi.Update) int64 {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		return u.CallbackQuery.Message.Chat.ID
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return u.CallbackQuery.From.ID
	}
	return 0
}

func updateUserID(u *tgbotapi.Update) int64 {
	switch {
	case u.Message != nil && u.Message.From != nil:
		return u.Message.From.ID
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return u.CallbackQuery.From.ID
	}
	return 0
}
