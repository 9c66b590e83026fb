package model

import "time"

// BannedUser is one entry of a bot's ban list.
type BannedUser struct {
	UserID      int64
	DisplayName string
	CreatedAt   time.Time
}
