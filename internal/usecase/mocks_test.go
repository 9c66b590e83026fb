package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/adapter"
	"telegram-channel-moderation/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memTxManager runs the callback without a real transaction. The mem repos
// below ignore the tx handle, so the use-case logic under test behaves the
// same as against Postgres minus isolation.
type memTxManager struct{}

func (memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

type itemKey struct{ id, chat int64 }

type memItemRepo struct {
	mu    sync.Mutex
	items map[itemKey]*model.Item
}

func newMemItemRepo() *memItemRepo {
	return &memItemRepo{items: map[itemKey]*model.Item{}}
}

func (m *memItemRepo) put(items ...*model.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		cp := *it
		m.items[itemKey{it.ID, it.OriginChatID}] = &cp
	}
}

func (m *memItemRepo) Insert(_ context.Context, _ repository.Tx, item *model.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := itemKey{item.ID, item.OriginChatID}
	if _, ok := m.items[k]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *item
	m.items[k] = &cp
	return nil
}

func (m *memItemRepo) Find(_ context.Context, _ repository.Tx, itemID, originChatID int64) (*model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemKey{itemID, originChatID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memItemRepo) ApproveIfPending(_ context.Context, _ repository.Tx, itemID, originChatID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemKey{itemID, originChatID}]
	if !ok || it.IsApproved || it.IsRejected || it.IsPublished {
		return false, nil
	}
	it.IsApproved = true
	return true, nil
}

func (m *memItemRepo) RejectIfPending(_ context.Context, _ repository.Tx, itemID, originChatID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemKey{itemID, originChatID}]
	if !ok || it.IsApproved || it.IsRejected || it.IsPublished {
		return false, nil
	}
	it.IsRejected = true
	return true, nil
}

func (m *memItemRepo) OldestApproved(_ context.Context, _ repository.Tx, botID int64) (*model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *model.Item
	for _, it := range m.items {
		if it.BotID != botID || !it.IsApproved || it.IsPublished {
			continue
		}
		if oldest == nil || it.CreatedAt.Before(oldest.CreatedAt) {
			oldest = it
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *oldest
	return &cp, nil
}

func (m *memItemRepo) PendingOlderThan(_ context.Context, _ repository.Tx, botID int64, cutoff time.Time) ([]*model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Item
	for _, it := range m.items {
		if it.BotID != botID || it.IsApproved || it.IsRejected || it.IsPublished {
			continue
		}
		if !it.CreatedAt.After(cutoff) {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memItemRepo) MarkPublished(_ context.Context, _ repository.Tx, itemID, originChatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemKey{itemID, originChatID}]
	if !ok {
		return domain.ErrNotFound
	}
	it.IsPublished = true
	return nil
}

func (m *memItemRepo) SetModerationMessageID(_ context.Context, _ repository.Tx, itemID, originChatID, moderationMessageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemKey{itemID, originChatID}]
	if !ok {
		return domain.ErrNotFound
	}
	it.ModerationMessageID = moderationMessageID
	return nil
}

func (m *memItemRepo) Stats(_ context.Context, _ repository.Tx, botID int64) (map[model.ItemState]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[model.ItemState]int{}
	for _, it := range m.items {
		if it.BotID == botID {
			counts[it.State()]++
		}
	}
	return counts, nil
}

type voteKey struct{ voter, item, chat int64 }

type memVoteRepo struct {
	mu    sync.Mutex
	votes map[voteKey]*model.Vote
}

func newMemVoteRepo() *memVoteRepo {
	return &memVoteRepo{votes: map[voteKey]*model.Vote{}}
}

func (m *memVoteRepo) Insert(_ context.Context, _ repository.Tx, v *model.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := voteKey{v.VoterID, v.ItemID, v.OriginChatID}
	if _, ok := m.votes[k]; ok {
		return domain.ErrAlreadyVoted
	}
	cp := *v
	m.votes[k] = &cp
	return nil
}

func (m *memVoteRepo) Switch(_ context.Context, _ repository.Tx, voterID, itemID, originChatID int64, approve bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[voteKey{voterID, itemID, originChatID}]
	if !ok || v.Approve == approve {
		return domain.ErrNotFound
	}
	v.Approve = approve
	return nil
}

func (m *memVoteRepo) Find(_ context.Context, _ repository.Tx, voterID, itemID, originChatID int64) (*model.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[voteKey{voterID, itemID, originChatID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memVoteRepo) Tally(_ context.Context, _ repository.Tx, itemID, originChatID int64) (model.Tally, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var t model.Tally
	for _, v := range m.votes {
		if v.ItemID == itemID && v.OriginChatID == originChatID {
			t.Total++
			if v.Approve {
				t.Approve++
			}
		}
	}
	return t, nil
}

type memBotRepo struct {
	mu   sync.Mutex
	regs map[int64]*model.BotRegistration
}

func newMemBotRepo() *memBotRepo {
	return &memBotRepo{regs: map[int64]*model.BotRegistration{}}
}

func (m *memBotRepo) Save(_ context.Context, _ repository.Tx, b *model.BotRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.regs[b.ID] = &cp
	return nil
}

func (m *memBotRepo) Find(_ context.Context, _ repository.Tx, id int64) (*model.BotRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.regs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBotRepo) ListActive(_ context.Context, _ repository.Tx) ([]*model.BotRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.BotRegistration
	for _, b := range m.regs {
		if b.Active {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memBotRepo) UpdateSettings(_ context.Context, _ repository.Tx, id int64, s model.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.regs[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.Settings = s
	return nil
}

func (m *memBotRepo) SetLastPublishAt(_ context.Context, _ repository.Tx, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.regs[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.LastPublishAt = &at
	return nil
}

func (m *memBotRepo) Deactivate(_ context.Context, _ repository.Tx, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.regs[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.Active = false
	return nil
}

type banKey struct{ bot, user int64 }

type memBanRepo struct {
	mu   sync.Mutex
	bans map[banKey]model.BannedUser
}

func newMemBanRepo() *memBanRepo {
	return &memBanRepo{bans: map[banKey]model.BannedUser{}}
}

func (m *memBanRepo) Ban(_ context.Context, _ repository.Tx, botID, userID int64, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := banKey{botID, userID}
	if _, ok := m.bans[k]; ok {
		return domain.ErrAlreadyExists
	}
	m.bans[k] = model.BannedUser{UserID: userID, DisplayName: displayName, CreatedAt: time.Now()}
	return nil
}

func (m *memBanRepo) Unban(_ context.Context, _ repository.Tx, botID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := banKey{botID, userID}
	if _, ok := m.bans[k]; !ok {
		return domain.ErrNotFound
	}
	delete(m.bans, k)
	return nil
}

func (m *memBanRepo) IsBanned(_ context.Context, _ repository.Tx, botID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bans[banKey{botID, userID}]
	return ok, nil
}

func (m *memBanRepo) List(_ context.Context, _ repository.Tx, botID int64) ([]model.BannedUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BannedUser
	for k, u := range m.bans {
		if k.bot == botID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// recordingSender captures outbound Telegram traffic for assertions.
type recordingSender struct {
	mu       sync.Mutex
	messages []string
	forwards []string
	fail     error
}

func (r *recordingSender) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, s)
}

func (r *recordingSender) SendMessage(_ context.Context, _ int64, text string) error {
	r.record(text)
	return nil
}

func (r *recordingSender) ReplyTo(_ context.Context, _ int64, _ int64, text string) error {
	r.record(text)
	return nil
}

func (r *recordingSender) SendButtons(_ context.Context, _ int64, text string, _ [][]adapter.InlineButton) (int64, error) {
	r.record(text)
	return 900, nil
}

func (r *recordingSender) ForwardMessage(context.Context, int64, int64, int64) error { return nil }

func (r *recordingSender) ForwardToChannel(_ context.Context, channel string, _ int64, messageID int64) error {
	if r.fail != nil {
		return r.fail
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forwards = append(r.forwards, channel)
	return nil
}

func (r *recordingSender) EditMessageText(context.Context, int64, int64, string) error { return nil }
func (r *recordingSender) AnswerCallback(context.Context, string) error                { return nil }
func (r *recordingSender) SendTyping(context.Context, int64) error                     { return nil }
