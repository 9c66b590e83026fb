package curator

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-channel-moderation/internal/dispatch"
	"telegram-channel-moderation/internal/domain"
	"telegram-channel-moderation/internal/domain/ports/adapter"
)

type memStages struct {
	steps map[string]string
	meta  map[string]dispatch.Args
}

func newMemStages() *memStages {
	return &memStages{steps: map[string]string{}, meta: map[string]dispatch.Args{}}
}

func (m *memStages) Get(key string) (string, dispatch.Args, bool) {
	step, ok := m.steps[key]
	if !ok {
		return "", nil, false
	}
	return step, m.meta[key].Clone(), true
}

func (m *memStages) Set(key, stepName string, patch dispatch.Args) {
	m.steps[key] = stepName
	if m.meta[key] == nil {
		m.meta[key] = dispatch.Args{}
	}
	m.meta[key].Merge(patch)
}

func (m *memStages) Delete(key string) {
	delete(m.steps, key)
	delete(m.meta, key)
}

type sentMessage struct {
	chatID int64
	text   string
}

type recordingSender struct {
	sent []sentMessage
}

func (r *recordingSender) SendMessage(_ context.Context, chatID int64, text string) error {
	r.sent = append(r.sent, sentMessage{chatID, text})
	return nil
}

func (r *recordingSender) ReplyTo(_ context.Context, chatID int64, _ int64, text string) error {
	r.sent = append(r.sent, sentMessage{chatID, text})
	return nil
}

func (r *recordingSender) SendButtons(_ context.Context, chatID int64, text string, _ [][]adapter.InlineButton) (int64, error) {
	r.sent = append(r.sent, sentMessage{chatID, text})
	return 1, nil
}

func (r *recordingSender) ForwardMessage(context.Context, int64, int64, int64) error    { return nil }
func (r *recordingSender) ForwardToChannel(context.Context, string, int64, int64) error { return nil }
func (r *recordingSender) EditMessageText(context.Context, int64, int64, string) error  { return nil }
func (r *recordingSender) AnswerCallback(context.Context, string) error                 { return nil }
func (r *recordingSender) SendTyping(context.Context, int64) error                      { return nil }

func (r *recordingSender) lastText(t *testing.T) string {
	t.Helper()
	if len(r.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return r.sent[len(r.sent)-1].text
}

// scriptedQueue answers Request from canned replies per topic and records
// everything published with Send.
type scriptedQueue struct {
	replies    map[string][]byte
	requestErr map[string]error
	published  map[string][][]byte
}

func newScriptedQueue() *scriptedQueue {
	return &scriptedQueue{
		replies:    map[string][]byte{},
		requestErr: map[string]error{},
		published:  map[string][][]byte{},
	}
}

func (q *scriptedQueue) reply(topic string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	q.replies[topic] = raw
}

func (q *scriptedQueue) Send(_ context.Context, topic string, payload []byte) error {
	q.published[topic] = append(q.published[topic], payload)
	return nil
}

func (q *scriptedQueue) Listen(ctx context.Context, _ []string, _ func(string, []byte) ([]byte, error)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (q *scriptedQueue) Request(_ context.Context, topic string, _ []byte, _ time.Duration) ([]byte, error) {
	if err := q.requestErr[topic]; err != nil {
		return nil, err
	}
	raw, ok := q.replies[topic]
	if !ok {
		return nil, domain.ErrQueueTimeout
	}
	return raw, nil
}

func privateText(userID int64, text string) *tgbotapi.Update {
	return &tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		From:      &tgbotapi.User{ID: userID},
	}}
}

func newTestCurator(t *testing.T, q adapter.Queue) (*dispatch.Dispatcher, *recordingSender, *memStages) {
	t.Helper()
	logger := zerolog.Nop()
	sender := &recordingSender{}
	stages := newMemStages()
	d := dispatch.NewDispatcher(stages, &logger)
	if err := New(sender, q, &logger).Wire(d); err != nil {
		t.Fatalf("wire: %v", err)
	}
	return d, sender, stages
}

const testToken = "123456:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"

func happyQueue() *scriptedQueue {
	q := newScriptedQueue()
	q.reply(adapter.TopicGetBotInfo, adapter.GetBotInfoReply{OK: true, BotID: 123456, Username: "mod_bot"})
	q.reply(adapter.TopicGetModerationGroup, adapter.GetModerationGroupReply{OK: true, ChatID: -100200, Title: "mods"})
	return q
}

func TestRegistrationFlow(t *testing.T) {
	ctx := context.Background()
	q := happyQueue()
	d, sender, stages := newTestCurator(t, q)

	d.Dispatch(ctx, privateText(7, "/reg"))
	if !strings.Contains(sender.lastText(t), "token") {
		t.Fatalf("expected token prompt, got %q", sender.lastText(t))
	}

	d.Dispatch(ctx, privateText(7, testToken))
	if !strings.Contains(sender.lastText(t), "channel name") {
		t.Fatalf("expected channel prompt, got %q", sender.lastText(t))
	}

	d.Dispatch(ctx, privateText(7, "@mychannel"))
	if !strings.Contains(sender.lastText(t), "All set") {
		t.Fatalf("expected completion, got %q", sender.lastText(t))
	}

	if len(stages.steps) != 0 {
		t.Errorf("dialog finished but stage remains: %v", stages.steps)
	}

	published := q.published[adapter.TopicNewBot]
	if len(published) != 1 {
		t.Fatalf("expected one new_bot message, got %d", len(published))
	}
	var req adapter.NewBotRequest
	if err := json.Unmarshal(published[0], &req); err != nil {
		t.Fatal(err)
	}
	if req.Token != testToken || req.OwnerID != 7 || req.ModerationChatID != -100200 || req.TargetChannel != "@mychannel" {
		t.Errorf("new_bot request: %+v", req)
	}
}

func TestRegistrationRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed token re-prompts and keeps the dialog", func(t *testing.T) {
		d, sender, _ := newTestCurator(t, happyQueue())

		d.Dispatch(ctx, privateText(7, "/reg"))
		d.Dispatch(ctx, privateText(7, "not a token"))
		if !strings.Contains(sender.lastText(t), "doesn't look like a bot token") {
			t.Fatalf("got %q", sender.lastText(t))
		}

		// the dialog is still alive; a real token now advances it
		d.Dispatch(ctx, privateText(7, testToken))
		if !strings.Contains(sender.lastText(t), "channel name") {
			t.Errorf("retry did not advance: %q", sender.lastText(t))
		}
	})

	t.Run("malformed channel re-prompts", func(t *testing.T) {
		q := happyQueue()
		d, sender, _ := newTestCurator(t, q)

		d.Dispatch(ctx, privateText(7, "/reg"))
		d.Dispatch(ctx, privateText(7, testToken))
		d.Dispatch(ctx, privateText(7, "mychannel"))
		if !strings.Contains(sender.lastText(t), "start with @") {
			t.Fatalf("got %q", sender.lastText(t))
		}

		d.Dispatch(ctx, privateText(7, "@mychannel"))
		if !strings.Contains(sender.lastText(t), "All set") {
			t.Errorf("retry did not advance: %q", sender.lastText(t))
		}
		if len(q.published[adapter.TopicNewBot]) != 1 {
			t.Error("registration was not handed to the holder")
		}
	})

	t.Run("cancel aborts mid-dialog", func(t *testing.T) {
		q := happyQueue()
		d, sender, stages := newTestCurator(t, q)

		d.Dispatch(ctx, privateText(7, "/reg"))
		d.Dispatch(ctx, privateText(7, "/cancel"))
		if !strings.Contains(sender.lastText(t), "cancelled") {
			t.Fatalf("got %q", sender.lastText(t))
		}
		if len(stages.steps) != 0 {
			t.Errorf("stage survived cancel: %v", stages.steps)
		}
	})
}

func TestRegistrationFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("holder timeout during token check", func(t *testing.T) {
		q := newScriptedQueue()
		q.requestErr[adapter.TopicGetBotInfo] = domain.ErrQueueTimeout
		d, sender, stages := newTestCurator(t, q)

		d.Dispatch(ctx, privateText(7, "/reg"))
		d.Dispatch(ctx, privateText(7, testToken))
		if !strings.Contains(sender.lastText(t), "try again later") {
			t.Fatalf("got %q", sender.lastText(t))
		}
		if len(stages.steps) != 0 {
			t.Errorf("failed dialog should end: %v", stages.steps)
		}
	})

	t.Run("rejected token ends the dialog", func(t *testing.T) {
		q := newScriptedQueue()
		q.reply(adapter.TopicGetBotInfo, adapter.GetBotInfoReply{OK: false, Error: "unauthorized"})
		d, sender, _ := newTestCurator(t, q)

		d.Dispatch(ctx, privateText(7, "/reg"))
		d.Dispatch(ctx, privateText(7, testToken))
		if !strings.Contains(sender.lastText(t), "rejected that token") {
			t.Fatalf("got %q", sender.lastText(t))
		}
	})

	t.Run("already registered token is reported", func(t *testing.T) {
		q := newScriptedQueue()
		q.reply(adapter.TopicGetBotInfo, adapter.GetBotInfoReply{OK: true, BotID: 123456, Username: "mod_bot", AlreadyRegistered: true})
		d, sender, _ := newTestCurator(t, q)

		d.Dispatch(ctx, privateText(7, "/reg"))
		d.Dispatch(ctx, privateText(7, testToken))
		if !strings.Contains(sender.lastText(t), "already registered") {
			t.Fatalf("got %q", sender.lastText(t))
		}
	})

	t.Run("no attach in time", func(t *testing.T) {
		q := newScriptedQueue()
		q.reply(adapter.TopicGetBotInfo, adapter.GetBotInfoReply{OK: true, BotID: 123456, Username: "mod_bot"})
		q.requestErr[adapter.TopicGetModerationGroup] = domain.ErrQueueTimeout
		d, sender, _ := newTestCurator(t, q)

		d.Dispatch(ctx, privateText(7, "/reg"))
		d.Dispatch(ctx, privateText(7, testToken))
		if !strings.Contains(sender.lastText(t), "No /attach arrived") {
			t.Fatalf("got %q", sender.lastText(t))
		}
	})
}
