// Package stage holds the durable record of where each conversation stands
// in its multi-step dialog. The store is the write-behind cache in front of
// the stages table: reads are served from memory, mutations are written
// through to Postgres asynchronously, and a background sweep drops dialogs
// nobody has touched within the TTL.
package stage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/dispatch"
	"telegram-channel-moderation/internal/domain/model"
	"telegram-channel-moderation/internal/domain/ports/repository"
	"telegram-channel-moderation/internal/infra/metrics"
)

// Store is scoped to one bot identity. Construct one per bot and pass it
// down; instances share nothing.
//
// The durable write happens off the caller's goroutine: a crash between the
// in-memory update and the write loses at most that one mutation, which the
// user recovers from by resending their message.
type Store struct {
	botID int64
	repo  repository.StageRepository
	ttl   time.Duration
	log   *zerolog.Logger

	mu     sync.RWMutex
	stages map[string]*model.Stage

	// mutations queue up here and a single writer drains them, so a Set and
	// a Delete on the same key reach Postgres in the order they happened
	writes   chan func(ctx context.Context) error
	wg       sync.WaitGroup
	writeCtx context.Context
}

func NewStore(botID int64, repo repository.StageRepository, ttl time.Duration, logger *zerolog.Logger) *Store {
	l := logger.With().Str("component", "stage-store").Int64("bot_id", botID).Logger()
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	s := &Store{
		botID:    botID,
		repo:     repo,
		ttl:      ttl,
		log:      &l,
		stages:   map[string]*model.Stage{},
		writes:   make(chan func(ctx context.Context) error, 64),
		writeCtx: context.Background(),
	}
	go s.runWriter()
	return s
}

var _ dispatch.StageStore = (*Store)(nil)

// Restore bulk-loads all persisted stages for this bot. Call once before
// dispatching; interrupted dialogs resume exactly where they left off.
func (s *Store) Restore(ctx context.Context) error {
	loaded, err := s.repo.LoadAll(ctx, s.botID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range loaded {
		s.stages[st.Key] = st
	}
	s.log.Debug().Int("count", len(loaded)).Msg("restored stages")
	metrics.SetStagesActive(len(s.stages))
	return nil
}

func (s *Store) Get(key string) (string, dispatch.Args, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stages[key]
	if !ok {
		return "", nil, false
	}
	meta := make(dispatch.Args, len(st.Meta))
	for k, v := range st.Meta {
		meta[k] = v
	}
	return st.StepName, meta, true
}

// Set merges the metadata patch into the existing stage (fields collected two
// steps ago stay visible to the step that finally needs them) and bumps the
// timestamp.
func (s *Store) Set(key, stepName string, patch dispatch.Args) {
	s.mu.Lock()
	st, ok := s.stages[key]
	if !ok {
		st = &model.Stage{Key: key, Meta: map[string]string{}}
		s.stages[key] = st
	}
	st.StepName = stepName
	for k, v := range patch {
		st.Meta[k] = v
	}
	st.UpdatedAt = time.Now()
	cp := cloneStage(st)
	n := len(s.stages)
	s.mu.Unlock()

	metrics.SetStagesActive(n)
	s.asyncWrite(func(ctx context.Context) error { return s.repo.Upsert(ctx, s.botID, cp) })
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	_, ok := s.stages[key]
	delete(s.stages, key)
	n := len(s.stages)
	s.mu.Unlock()
	if !ok {
		return
	}

	metrics.SetStagesActive(n)
	s.asyncWrite(func(ctx context.Context) error { return s.repo.Delete(ctx, s.botID, key) })
}

// RunSweeper deletes stages older than the TTL until ctx is cancelled. The
// interval should be min(5m, ttl); callers take it from config.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()
	var expired []string
	s.mu.RLock()
	for key, st := range s.stages {
		if st.Expired(s.ttl, now) {
			expired = append(expired, key)
		}
	}
	s.mu.RUnlock()

	for _, key := range expired {
		s.log.Debug().Str("conversation", key).Msg("dropping expired stage")
		s.Delete(key)
	}
	if len(expired) > 0 {
		metrics.IncStagesExpired(len(expired))
	}
}

func (s *Store) asyncWrite(fn func(ctx context.Context) error) {
	s.wg.Add(1)
	s.writes <- fn
}

func (s *Store) runWriter() {
	for fn := range s.writes {
		ctx, cancel := context.WithTimeout(s.writeCtx, 10*time.Second)
		if err := fn(ctx); err != nil {
			s.log.Warn().Err(err).Msg("stage write-through failed")
		}
		cancel()
		s.wg.Done()
	}
}

func cloneStage(st *model.Stage) *model.Stage {
	cp := &model.Stage{Key: st.Key, StepName: st.StepName, UpdatedAt: st.UpdatedAt}
	cp.Meta = make(map[string]string, len(st.Meta))
	for k, v := range st.Meta {
		cp.Meta[k] = v
	}
	return cp
}
