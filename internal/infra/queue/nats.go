package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/ports/adapter"
	"telegram-channel-moderation/internal/infra/metrics"
)

var _ adapter.Queue = (*NATSQueue)(nil)

// NATSQueue carries curator/holder traffic over core NATS subjects. Requests
// use the built-in reply-inbox mechanism; no JetStream, lost messages are
// retried at the dialog level by the requester timing out.
type NATSQueue struct {
	nc  *nats.Conn
	log zerolog.Logger
}

func New(url string, log *zerolog.Logger) (*NATSQueue, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSQueue{nc: nc, log: log.With().Str("component", "queue").Logger()}, nil
}

func (q *NATSQueue) Send(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.nc.Publish(topic, payload)
}

func (q *NATSQueue) Listen(ctx context.Context, topics []string, handler func(topic string, payload []byte) ([]byte, error)) error {
	subs := make([]*nats.Subscription, 0, len(topics))
	for _, topic := range topics {
		topic := topic
		sub, err := q.nc.Subscribe(topic, func(msg *nats.Msg) {
			reply, err := handler(topic, msg.Data)
			if err != nil {
				q.log.Error().Err(err).Str("topic", topic).Msg("queue handler failed")
				return
			}
			if reply != nil && msg.Reply != "" {
				if err := msg.Respond(reply); err != nil {
					q.log.Error().Err(err).Str("topic", topic).Msg("queue reply failed")
				}
			}
		})
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		subs = append(subs, sub)
	}

	go func() {
		<-ctx.Done()
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
	}()
	return nil
}

func (q *NATSQueue) Request(ctx context.Context, topic string, payload []byte, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := q.nc.RequestWithContext(reqCtx, topic, payload)
	if err != nil {
		metrics.IncQueueRequest(topic, false)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
			return nil, domain.ErrQueueTimeout
		}
		return nil, err
	}
	metrics.IncQueueRequest(topic, true)
	return msg.Data, nil
}

func (q *NATSQueue) Close() { q.nc.Close() }
