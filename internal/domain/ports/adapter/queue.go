package adapter

import (
	"context"
	"time"
)

// Queue is the orchestration transport between the curator and the holder.
// The two processes share no memory; everything crosses this boundary as an
// opaque payload on a named topic.
type Queue interface {
	Send(ctx context.Context, topic string, payload []byte) error
	// Listen subscribes to the topics and invokes handler for every message
	// until ctx is cancelled. A non-nil reply is sent back to the requester
	// when the message carries a reply subject.
	Listen(ctx context.Context, topics []string, handler func(topic string, payload []byte) (reply []byte, err error)) error
	// Request sends payload with a unique reply subject, waits for exactly one
	// reply, and returns domain.ErrQueueTimeout when none arrives in time.
	Request(ctx context.Context, topic string, payload []byte, timeout time.Duration) ([]byte, error)
}

// Topic names shared by the curator and the holder.
const (
	TopicNewBot             = "holder.new_bot"
	TopicGetBotInfo         = "holder.get_bot_info"
	TopicGetModerationGroup = "holder.get_moderation_group"
	TopicStopBot            = "holder.stop_bot"
	TopicBotRevoked         = "curator.bot_revoked"
)
