// Package holder runs the fleet of registered moderation bots inside one
// process and serves the curator's registration requests over the queue.
package holder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/bot/moderation"
	"telegram-channel-moderation/internal/config"
	"telegram-channel-moderation/internal/dispatch"
	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/adapter"
	"telegram-channel-moderation/internal/domain/ports/repository"
	redisinfra "telegram-channel-moderation/internal/infra/redis"
	"telegram-channel-moderation/internal/infra/sched"
	"telegram-channel-moderation/internal/infra/telegram"
	"telegram-channel-moderation/internal/stage"
	"telegram-channel-moderation/internal/usecase"
)

const (
	publishTick = time.Minute
	timeoutTick = 10 * time.Minute
	healthTick  = 10 * time.Minute

	// per-bot polling workers; moderation bots see far less traffic than the
	// curator
	botWorkers = 2
)

// Deps are the shared backends every spawned bot borrows from the process.
type Deps struct {
	TxManager repository.TransactionManager
	Bots      repository.BotRepository
	Items     repository.ItemRepository
	Votes     repository.VoteRepository
	Bans      repository.BanRepository
	Stages    repository.StageRepository
	Queue     adapter.Queue
	Locker    redisinfra.Locker
	Limiter   *redisinfra.RateLimiter
}

type Holder struct {
	cfg  *config.Config
	deps Deps
	log  zerolog.Logger

	mu      sync.Mutex
	running map[int64]context.CancelFunc
}

func New(cfg *config.Config, deps Deps, logger *zerolog.Logger) *Holder {
	return &Holder{
		cfg:     cfg,
		deps:    deps,
		log:     logger.With().Str("component", "holder").Logger(),
		running: map[int64]context.CancelFunc{},
	}
}

// Run starts every active registration and serves queue requests until ctx is
// cancelled.
func (h *Holder) Run(ctx context.Context) error {
	topics := []string{
		adapter.TopicGetBotInfo,
		adapter.TopicGetModerationGroup,
		adapter.TopicNewBot,
		adapter.TopicStopBot,
	}
	if err := h.deps.Queue.Listen(ctx, topics, func(topic string, payload []byte) ([]byte, error) {
		return h.handleQueue(ctx, topic, payload)
	}); err != nil {
		return fmt.Errorf("listen on queue: %w", err)
	}

	regs, err := h.deps.Bots.ListActive(ctx, nil)
	if err != nil {
		return fmt.Errorf("list active bots: %w", err)
	}
	h.log.Info().Int("count", len(regs)).Msg("starting registered bots")
	for _, reg := range regs {
		if err := h.startBot(ctx, reg); err != nil {
			h.log.Error().Err(err).Int64("bot", reg.ID).Msg("bot failed to start")
		}
	}

	<-ctx.Done()
	return ctx.Err()
}

func (h *Holder) startBot(ctx context.Context, reg *model.BotRegistration) error {
	h.mu.Lock()
	if _, ok := h.running[reg.ID]; ok {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	bot, err := telegram.NewBot(reg.Token, botWorkers, &h.log)
	if err != nil {
		if telegram.IsUnauthorized(err) {
			h.revoke(context.WithoutCancel(ctx), reg, "")
		}
		return fmt.Errorf("connect bot %d: %w", reg.ID, err)
	}

	store := stage.NewStore(reg.ID, h.deps.Stages, h.cfg.Stage.TTL, &h.log)
	if err := store.Restore(ctx); err != nil {
		return fmt.Errorf("restore stages for bot %d: %w", reg.ID, err)
	}

	d := dispatch.NewDispatcher(store, &h.log)
	runner := moderation.NewRunner(reg, bot, bot, h.useCases(), &h.log)
	if err := runner.Wire(d); err != nil {
		return fmt.Errorf("wire bot %d: %w", reg.ID, err)
	}

	botCtx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.running[reg.ID] = cancel
	h.mu.Unlock()

	pubUC := usecase.NewPublishUseCase(h.deps.TxManager, h.deps.Items, h.deps.Votes, h.deps.Bots, &h.log)
	publisher := sched.NewPublishWorker(publishTick, reg, pubUC, bot, h.deps.Locker, &h.log)
	timeouts := sched.NewTimeoutWorker(timeoutTick, reg, pubUC, bot, &h.log)

	go store.RunSweeper(botCtx, h.cfg.Stage.SweepInterval)
	go func() { _ = publisher.Run(botCtx) }()
	go func() { _ = timeouts.Run(botCtx) }()
	go h.watchHealth(botCtx, reg, bot)
	go bot.Poll(botCtx, d)

	h.log.Info().Int64("bot", reg.ID).Str("channel", reg.TargetChannel).Msg("bot running")
	return nil
}

func (h *Holder) useCases() moderation.UseCases {
	return moderation.UseCases{
		Voting:     usecase.NewVotingUseCase(h.deps.TxManager, h.deps.Items, h.deps.Votes, &h.log),
		Submission: usecase.NewSubmissionUseCase(h.deps.Items, h.deps.Bans, h.deps.Limiter, redisinfra.SubmissionKey, &h.log),
		Settings:   usecase.NewSettingsUseCase(h.deps.Bots, &h.log),
		Bans:       usecase.NewBanUseCase(h.deps.Bans, &h.log),
		Stats:      usecase.NewStatsUseCase(h.deps.Items),
	}
}

func (h *Holder) stopBot(botID int64) bool {
	h.mu.Lock()
	cancel, ok := h.running[botID]
	delete(h.running, botID)
	h.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// watchHealth periodically re-validates the bot's token. A revoked token is
// the one failure that never heals, so it tears the bot down for good.
func (h *Holder) watchHealth(ctx context.Context, reg *model.BotRegistration, bot *telegram.Bot) {
	ticker := time.NewTicker(healthTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := bot.Check(ctx)
			if err == nil {
				continue
			}
			if telegram.IsUnauthorized(err) {
				_, username := bot.Self()
				h.revoke(context.WithoutCancel(ctx), reg, username)
				return
			}
			h.log.Warn().Err(err).Int64("bot", reg.ID).Msg("health check failed")
		}
	}
}

// revoke deactivates a registration whose token stopped working and tells the
// curator so the owner hears about it.
func (h *Holder) revoke(ctx context.Context, reg *model.BotRegistration, username string) {
	h.stopBot(reg.ID)
	reg.Active = false
	if err := h.deps.Bots.Deactivate(ctx, nil, reg.ID); err != nil {
		h.log.Error().Err(err).Int64("bot", reg.ID).Msg("deactivation failed")
	}
	payload, _ := json.Marshal(adapter.BotRevokedEvent{
		BotID:    reg.ID,
		OwnerID:  reg.OwnerID,
		Username: username,
	})
	if err := h.deps.Queue.Send(ctx, adapter.TopicBotRevoked, payload); err != nil {
		h.log.Error().Err(err).Int64("bot", reg.ID).Msg("revocation event lost")
	}
	h.log.Warn().Int64("bot", reg.ID).Msg("bot revoked and deactivated")
}

func (h *Holder) handleQueue(ctx context.Context, topic string, payload []byte) ([]byte, error) {
	switch topic {
	case adapter.TopicGetBotInfo:
		return h.handleGetBotInfo(ctx, payload)
	case adapter.TopicGetModerationGroup:
		return h.handleGetModerationGroup(ctx, payload)
	case adapter.TopicNewBot:
		return nil, h.handleNewBot(ctx, payload)
	case adapter.TopicStopBot:
		return nil, h.handleStopBot(ctx, payload)
	}
	return nil, fmt.Errorf("%w: topic %s", domain.ErrInvalidArgument, topic)
}

func (h *Holder) handleGetBotInfo(ctx context.Context, payload []byte) ([]byte, error) {
	var req adapter.GetBotInfoRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	id, username, err := telegram.Validate(req.Token)
	if err != nil {
		return json.Marshal(adapter.GetBotInfoReply{OK: false, Error: "token rejected"})
	}

	reply := adapter.GetBotInfoReply{OK: true, BotID: id, Username: username}
	if existing, err := h.deps.Bots.Find(ctx, nil, id); err == nil && existing.Active {
		reply.AlreadyRegistered = true
	}
	return json.Marshal(reply)
}

func (h *Holder) handleGetModerationGroup(ctx context.Context, payload []byte) ([]byte, error) {
	var req adapter.GetModerationGroupRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	bot, err := telegram.NewBot(req.Token, 1, &h.log)
	if err != nil {
		return json.Marshal(adapter.GetModerationGroupReply{OK: false, Error: "token rejected"})
	}

	// slightly under the curator's wait so our reply beats its timeout
	waitCtx, cancel := context.WithTimeout(ctx, 9*time.Minute+30*time.Second)
	defer cancel()
	chat, err := bot.AwaitAttach(waitCtx, req.OwnerID)
	if err != nil {
		return json.Marshal(adapter.GetModerationGroupReply{OK: false, Error: "no /attach received"})
	}
	return json.Marshal(adapter.GetModerationGroupReply{OK: true, ChatID: chat.ID, Title: chat.Title})
}

func (h *Holder) handleNewBot(ctx context.Context, payload []byte) error {
	var req adapter.NewBotRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}

	id, _, err := telegram.Validate(req.Token)
	if err != nil {
		return fmt.Errorf("new bot token invalid: %w", err)
	}

	reg, err := model.NewBotRegistration(id, req.Token, req.OwnerID, req.ModerationChatID, req.TargetChannel, h.defaultSettings())
	if err != nil {
		return err
	}
	if err := h.deps.Bots.Save(ctx, nil, reg); err != nil {
		return fmt.Errorf("save registration %d: %w", id, err)
	}
	return h.startBot(ctx, reg)
}

func (h *Holder) handleStopBot(ctx context.Context, payload []byte) error {
	var req adapter.StopBotRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	if !h.stopBot(req.BotID) {
		return domain.ErrNotFound
	}
	if err := h.deps.Bots.Deactivate(ctx, nil, req.BotID); err != nil {
		return err
	}
	h.log.Info().Int64("bot", req.BotID).Msg("bot stopped on request")
	return nil
}

// defaultSettings seeds a new registration from the process-wide defaults.
func (h *Holder) defaultSettings() model.Settings {
	s := model.DefaultSettings()
	m := h.cfg.Moderation
	s.PublishDelay = m.PublishDelay
	s.RequiredVotes = m.RequiredVotes
	s.VoteTimeout = m.VoteTimeout
	s.TextMin = m.TextMin
	s.TextMax = m.TextMax
	return s
}
