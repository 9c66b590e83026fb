package usecase

import (
	"context"
	"fmt"
	"strings"

	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/repository"
)

// StatsUseCase aggregates per-bot moderation numbers for the /stats command.
type StatsUseCase struct {
	items repository.ItemRepository
}

func NewStatsUseCase(items repository.ItemRepository) *StatsUseCase {
	return &StatsUseCase{items: items}
}

func (uc *StatsUseCase) Counts(ctx context.Context, botID int64) (map[model.ItemState]int, error) {
	return uc.items.Stats(ctx, nil, botID)
}

// Item looks a single submission up, for handlers that need its state or the
// moderation message it is tied to.
func (uc *StatsUseCase) Item(ctx context.Context, itemID, originChatID int64) (*model.Item, error) {
	return uc.items.Find(ctx, nil, itemID, originChatID)
}

// Report renders the counts as the message sent to the moderation chat.
func (uc *StatsUseCase) Report(ctx context.Context, botID int64) (string, error) {
	counts, err := uc.Counts(ctx, botID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Moderation queue:\n")
	fmt.Fprintf(&b, "  pending: %d\n", counts[model.ItemStatePending])
	fmt.Fprintf(&b, "  approved, awaiting publish: %d\n", counts[model.ItemStateApproved])
	fmt.Fprintf(&b, "  published: %d\n", counts[model.ItemStatePublished])
	fmt.Fprintf(&b, "  rejected: %d", counts[model.ItemStateRejected])
	return b.String(), nil
}
