package dispatch

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/infra/metrics"
)

// StageStore is the durable per-conversation record of which step is awaited
// next. The dispatcher is its only writer.
type StageStore interface {
	Get(key string) (stepName string, meta Args, ok bool)
	Set(key, stepName string, patch Args)
	Delete(key string)
}

// Fallback handles updates no registered step accepted. It never advances or
// clears a stage.
type Fallback func(ctx context.Context, u *tgbotapi.Update) error

type entry struct {
	step  *Step
	final bool
}

// rootKey indexes the steps that may start a conversation.
const rootKey = ""

// Dispatcher owns a forest of steps indexed by predecessor step name and
// routes every inbound update to the one step currently awaited by that
// conversation.
//
// Registration order is a contract: candidates under one predecessor are
// tried first-registered first, so broader filters (TextAny, MultimediaAny)
// must be registered after the specific commands they would otherwise starve.
type Dispatcher struct {
	tree     map[string][]entry
	known    map[string]*Step
	cancel   *Step
	fallback Fallback
	stages   StageStore
	log      *zerolog.Logger
}

func NewDispatcher(stages StageStore, logger *zerolog.Logger) *Dispatcher {
	l := logger.With().Str("component", "dispatcher").Logger()
	return &Dispatcher{
		tree:   map[string][]entry{},
		known:  map[string]*Step{},
		stages: stages,
		log:    &l,
	}
}

// SetCancelStep installs the step auto-appended after every non-final
// registration, keeping a cancel command reachable mid-dialog. Must be called
// before the first non-final Handle.
func (d *Dispatcher) SetCancelStep(s *Step) { d.cancel = s }

func (d *Dispatcher) SetFallback(f Fallback) { d.fallback = f }

type registration struct {
	after    string
	nonFinal bool
}

type Option func(*registration)

// After registers the step under the named predecessor instead of the root.
func After(prev *Step) Option {
	return func(r *registration) { r.after = prev.Name() }
}

// NonFinal marks the step as awaiting a successor: a Handled result persists
// the conversation's stage instead of clearing it.
func NonFinal() Option {
	return func(r *registration) { r.nonFinal = true }
}

// Handle adds a step to the dispatch tree. Re-registering the same step under
// the same predecessor is a no-op; registering a different step whose name
// would shadow an existing one is an error, except for the cancel step.
func (d *Dispatcher) Handle(s *Step, opts ...Option) error {
	var reg registration
	for _, o := range opts {
		o(&reg)
	}
	if reg.after != "" {
		if _, ok := d.known[reg.after]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnknownStep, reg.after)
		}
	}
	if existing, ok := d.known[s.Name()]; ok && existing != s {
		return fmt.Errorf("%w: step name %q reused", domain.ErrStepConflict, s.Name())
	}
	d.known[s.Name()] = s

	for _, e := range d.tree[reg.after] {
		if e.step.Name() == s.Name() {
			if e.step == s || s == d.cancel {
				return nil
			}
			return fmt.Errorf("%w: %s after %q", domain.ErrStepConflict, s.Name(), reg.after)
		}
	}
	d.tree[reg.after] = append(d.tree[reg.after], entry{step: s, final: !reg.nonFinal})

	if reg.nonFinal && d.cancel != nil && s != d.cancel {
		return d.Handle(d.cancel, After(s))
	}
	return nil
}

// ConversationKey derives the stage key for an update: the (user, chat) pair
// for messages, falling back to the user id for bare callback queries.
func ConversationKey(u *tgbotapi.Update) (string, error) {
	userID, chatID := updateUserID(u), updateChatID(u)
	if userID == 0 || chatID == 0 {
		return "", domain.ErrInvalidArgument
	}
	return fmt.Sprintf("%d-%d", userID, chatID), nil
}

// Dispatch routes one update. A handler error is logged and the update is
// dropped with the stage untouched, so the user can simply resend.
func (d *Dispatcher) Dispatch(ctx context.Context, u *tgbotapi.Update) {
	key, err := ConversationKey(u)
	if err != nil {
		d.log.Debug().Msg("update carries no conversation key, skipping")
		return
	}

	args := Args{}
	candidatesKey := rootKey
	if stepName, meta, ok := d.stages.Get(key); ok {
		args.Merge(meta)
		candidatesKey = stepName
	}

	for _, e := range d.tree[candidatesKey] {
		res, err := e.step.Invoke(ctx, u, args)
		if err != nil {
			d.log.Error().Err(err).
				Str("step", e.step.Name()).
				Str("conversation", key).
				Msg("handler failed, dropping update")
			metrics.IncDispatchError(e.step.Name())
			return
		}
		switch res.Kind {
		case NotApplicable:
			continue
		case Handled:
			if e.final {
				d.stages.Delete(key)
			} else {
				d.stages.Set(key, e.step.Name(), res.Fields)
			}
			metrics.IncDispatched(e.step.Name())
			return
		case HandledTerminal:
			d.stages.Delete(key)
			metrics.IncDispatched(e.step.Name())
			return
		}
	}

	metrics.IncDispatchFallthrough()
	if d.fallback != nil {
		if err := d.fallback(ctx, u); err != nil {
			d.log.Warn().Err(err).Str("conversation", key).Msg("fallback handler failed")
		}
	} else {
		d.log.Debug().Str("conversation", key).Msg("no handler matched update")
	}
}
