package stage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/domain/model"
)

// memStageRepo records persisted stages so tests can observe write-through.
type memStageRepo struct {
	mu     sync.Mutex
	stages map[string]*model.Stage
	ops    []string
}

func newMemStageRepo() *memStageRepo {
	return &memStageRepo{stages: map[string]*model.Stage{}}
}

func (m *memStageRepo) LoadAll(_ context.Context, _ int64) ([]*model.Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Stage, 0, len(m.stages))
	for _, st := range m.stages {
		cp := *st
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStageRepo) Upsert(_ context.Context, _ int64, stage *model.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *stage
	m.stages[stage.Key] = &cp
	m.ops = append(m.ops, "upsert:"+stage.Key)
	return nil
}

func (m *memStageRepo) Delete(_ context.Context, _ int64, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stages, key)
	m.ops = append(m.ops, "delete:"+key)
	return nil
}

func (m *memStageRepo) opCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ops)
}

func (m *memStageRepo) lastOp() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ops) == 0 {
		return ""
	}
	return m.ops[len(m.ops)-1]
}

func (m *memStageRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.stages[key]
	return ok
}

func newTestStore(repo *memStageRepo, ttl time.Duration) *Store {
	logger := zerolog.Nop()
	return NewStore(42, repo, ttl, &logger)
}

// waitFor polls until cond holds or the deadline passes; async write-through
// makes repo state eventually consistent with the store.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestStoreSetGetDelete(t *testing.T) {
	repo := newMemStageRepo()
	s := newTestStore(repo, time.Hour)

	s.Set("7-7", "ask_token", map[string]string{"token": "abc"})

	step, meta, ok := s.Get("7-7")
	if !ok || step != "ask_token" || meta["token"] != "abc" {
		t.Fatalf("got %q %v %v", step, meta, ok)
	}

	t.Run("patches merge instead of replacing", func(t *testing.T) {
		s.Set("7-7", "ask_channel", map[string]string{"channel": "@c"})
		_, meta, _ := s.Get("7-7")
		if meta["token"] != "abc" || meta["channel"] != "@c" {
			t.Errorf("merge lost fields: %v", meta)
		}
	})

	t.Run("mutations reach the repository", func(t *testing.T) {
		waitFor(t, func() bool { return repo.has("7-7") })
	})

	t.Run("delete clears memory and repository", func(t *testing.T) {
		s.Delete("7-7")
		if _, _, ok := s.Get("7-7"); ok {
			t.Error("stage still readable after delete")
		}
		waitFor(t, func() bool { return !repo.has("7-7") })
	})
}

func TestStoreWriteThroughOrdering(t *testing.T) {
	repo := newMemStageRepo()
	s := newTestStore(repo, time.Hour)

	// a dialog advancing and finishing quickly must not leave a stale row
	// behind for Restore to resurrect
	const rounds = 50
	for i := 0; i < rounds; i++ {
		s.Set("3-3", "ask_token", nil)
		s.Set("3-3", "ask_channel", nil)
		s.Delete("3-3")
	}

	waitFor(t, func() bool { return repo.opCount() == 3*rounds })
	if repo.has("3-3") {
		t.Error("completed dialog still persisted")
	}
	if last := repo.lastOp(); last != "delete:3-3" {
		t.Errorf("last write was %q, want the delete", last)
	}
}

func TestStoreRestore(t *testing.T) {
	repo := newMemStageRepo()
	repo.stages["1-1"] = &model.Stage{
		Key:       "1-1",
		StepName:  "ask_channel",
		Meta:      map[string]string{"token": "t"},
		UpdatedAt: time.Now(),
	}

	s := newTestStore(repo, time.Hour)
	if err := s.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}

	step, meta, ok := s.Get("1-1")
	if !ok || step != "ask_channel" || meta["token"] != "t" {
		t.Errorf("restored stage wrong: %q %v %v", step, meta, ok)
	}
}

func TestSweepDropsExpiredStages(t *testing.T) {
	repo := newMemStageRepo()
	s := newTestStore(repo, 50*time.Millisecond)

	s.Set("1-1", "old", nil)
	time.Sleep(80 * time.Millisecond)
	s.Set("2-2", "fresh", nil)

	s.sweep()

	if _, _, ok := s.Get("1-1"); ok {
		t.Error("expired stage survived the sweep")
	}
	if _, _, ok := s.Get("2-2"); !ok {
		t.Error("fresh stage was swept")
	}
}

func TestStageExpired(t *testing.T) {
	now := time.Now()
	st := &model.Stage{UpdatedAt: now.Add(-2 * time.Hour)}
	if !st.Expired(time.Hour, now) {
		t.Error("two hour old stage should be expired with 1h ttl")
	}
	if st.Expired(3*time.Hour, now) {
		t.Error("stage inside ttl reported expired")
	}
}
