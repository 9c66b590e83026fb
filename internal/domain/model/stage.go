package model

import "time"

// Stage records which dispatch step a conversation is currently awaiting,
// plus the metadata accumulated by every step in the chain so far. A stage
// exists for a conversation key iff a non-terminal step is pending there.
type Stage struct {
	Key       string // "<user_id>-<chat_id>"
	StepName  string
	Meta      map[string]string
	UpdatedAt time.Time
}

func (s *Stage) Expired(ttl time.Duration, now time.Time) bool {
	return s.UpdatedAt.Add(ttl).Before(now)
}
