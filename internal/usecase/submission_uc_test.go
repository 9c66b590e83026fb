package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/model"
)

// stubLimiter answers a fixed verdict and records the keys it was asked about.
type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func testLimitKey(botID, userID int64) string {
	return fmt.Sprintf("submit:%d:%d", botID, userID)
}

func newSubmissionFixture(t *testing.T, limiter RateLimiter) (*SubmissionUseCase, *memItemRepo, *memBanRepo) {
	t.Helper()
	items := newMemItemRepo()
	bans := newMemBanRepo()
	return NewSubmissionUseCase(items, bans, limiter, testLimitKey, testLogger()), items, bans
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted submission is filed pending", func(t *testing.T) {
		limiter := &stubLimiter{allow: true}
		uc, items, _ := newSubmissionFixture(t, limiter)

		item, err := uc.Submit(ctx, 1, 7, -500, 42)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if item.State() != model.ItemStatePending {
			t.Errorf("state = %s, want pending", item.State())
		}
		if got, _ := items.Find(ctx, nil, 42, -500); got == nil {
			t.Error("item not persisted")
		}
		if len(limiter.keys) != 1 || limiter.keys[0] != "submit:1:7" {
			t.Errorf("limiter keys: %v", limiter.keys)
		}
	})

	t.Run("banned submitters are refused", func(t *testing.T) {
		uc, _, bans := newSubmissionFixture(t, &stubLimiter{allow: true})
		if err := bans.Ban(ctx, nil, 1, 7, "spammer"); err != nil {
			t.Fatal(err)
		}

		_, err := uc.Submit(ctx, 1, 7, -500, 42)
		if !errors.Is(err, domain.ErrUserBanned) {
			t.Errorf("got %v, want ErrUserBanned", err)
		}
	})

	t.Run("rate limit hit is reported", func(t *testing.T) {
		uc, _, _ := newSubmissionFixture(t, &stubLimiter{allow: false})
		_, err := uc.Submit(ctx, 1, 7, -500, 42)
		if !errors.Is(err, domain.ErrOperationFailed) {
			t.Errorf("got %v, want ErrOperationFailed", err)
		}
	})

	t.Run("limiter outage does not block submissions", func(t *testing.T) {
		uc, _, _ := newSubmissionFixture(t, &stubLimiter{err: errors.New("redis down")})
		if _, err := uc.Submit(ctx, 1, 7, -500, 42); err != nil {
			t.Errorf("submit during limiter outage: %v", err)
		}
	})

	t.Run("duplicate message ids conflict", func(t *testing.T) {
		uc, _, _ := newSubmissionFixture(t, &stubLimiter{allow: true})
		if _, err := uc.Submit(ctx, 1, 7, -500, 42); err != nil {
			t.Fatal(err)
		}
		_, err := uc.Submit(ctx, 1, 7, -500, 42)
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("got %v, want ErrAlreadyExists", err)
		}
	})
}

func TestAttachModerationMessage(t *testing.T) {
	ctx := context.Background()
	uc, items, _ := newSubmissionFixture(t, &stubLimiter{allow: true})

	if _, err := uc.Submit(ctx, 1, 7, -500, 42); err != nil {
		t.Fatal(err)
	}
	if err := uc.AttachModerationMessage(ctx, 42, -500, 777); err != nil {
		t.Fatalf("attach: %v", err)
	}
	it, _ := items.Find(ctx, nil, 42, -500)
	if it.ModerationMessageID != 777 {
		t.Errorf("moderation message id = %d, want 777", it.ModerationMessageID)
	}
}

func TestValidateText(t *testing.T) {
	s := model.DefaultSettings()
	s.TextMin = 5
	s.TextMax = 10

	cases := []struct {
		name string
		text string
		ok   bool
	}{
		{"inside bounds", "hello!", true},
		{"too short", "hi", false},
		{"too long", strings.Repeat("a", 11), false},
		{"at the min", "12345", true},
		{"at the max", "1234567890", true},
		{"runes counted, not bytes", "пять букв!", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateText(c.text, s)
			if c.ok && err != nil {
				t.Errorf("ValidateText(%q) = %v, want nil", c.text, err)
			}
			if !c.ok && !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("ValidateText(%q) = %v, want ErrInvalidArgument", c.text, err)
			}
		})
	}
}
