package dispatch

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ResultKind is the three-way outcome of a step invocation. Modelling it
// explicitly keeps the dispatcher's branching exhaustive instead of
// overloading nil/bool/map returns.
type ResultKind int

const (
	// NotApplicable means the filter rejected the update or the handler
	// declined it; dispatch falls through to the next candidate.
	NotApplicable ResultKind = iota
	// Handled means the step consumed the update. When the step is
	// registered non-final, Fields become the metadata patch persisted on
	// the conversation's stage.
	Handled
	// HandledTerminal means the step consumed the update and the dialog is
	// over regardless of how the step was registered.
	HandledTerminal
)

type Result struct {
	Kind   ResultKind
	Fields Args
}

// Declined lets a handler fall through even though its filter matched.
func Declined() Result { return Result{Kind: NotApplicable} }

// Next advances the dialog, contributing fields to the stage metadata.
func Next(fields Args) Result { return Result{Kind: Handled, Fields: fields} }

// Done ends the dialog early, whatever the registration says.
func Done() Result { return Result{Kind: HandledTerminal} }

// Handler is one workflow step's business logic. Side effects (sending
// messages, writing to storage) happen here; the Step itself performs no I/O.
type Handler func(ctx context.Context, u *tgbotapi.Update, args Args) (Result, error)

// Step binds a handler to a filter under a stable name. The name doubles as
// the step's identity in the dispatch tree and in persisted stages, so it has
// to survive process restarts.
type Step struct {
	name    string
	filter  Filter
	handler Handler
}

func NewStep(name string, filter Filter, handler Handler) *Step {
	if filter == nil {
		filter = Any()
	}
	return &Step{name: name, filter: filter, handler: handler}
}

func (s *Step) Name() string { return s.name }

// Invoke runs the filter and, if it accepts, the handler with the extracted
// fields merged into args.
func (s *Step) Invoke(ctx context.Context, u *tgbotapi.Update, args Args) (Result, error) {
	m := s.filter.Test(u)
	if !m.OK {
		return Declined(), nil
	}
	if len(m.Fields) > 0 {
		args = args.Clone()
		args.Merge(m.Fields)
	}
	return s.handler(ctx, u, args)
}
