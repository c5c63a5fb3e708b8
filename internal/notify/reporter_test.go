package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

type recordingSink struct {
	events []domain.Event
	err    error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Accept(_ context.Context, ev domain.Event) error {
	s.events = append(s.events, ev)
	return s.err
}

type recordingSender struct {
	titles []string
	bodies []string
}

func (s *recordingSender) Name() string { return "chat" }

func (s *recordingSender) Send(_ context.Context, title, body string) error {
	s.titles = append(s.titles, title)
	s.bodies = append(s.bodies, body)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReporterStampsAndFansOut(t *testing.T) {
	sink := &recordingSink{}
	chat := &recordingSender{}
	r := NewReporter([]Sink{sink}, []Sender{chat}, []string{"error", " EXECUTED"}, nil, testLogger())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	r.Report(context.Background(), domain.Event{Type: domain.EventOpportunity, Account: "0xabc", Strategy: "SwapAndRepay"})
	r.Report(context.Background(), domain.Event{Type: domain.EventError, Account: "0xabc", Error: "boom"})
	assert.Empty(t, chat.titles, "chat is delivered by Run")

	// A cancelled Run still flushes the queue.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)

	require.Len(t, sink.events, 2)
	assert.NotEmpty(t, sink.events[0].ID)
	assert.NotEqual(t, sink.events[0].ID, sink.events[1].ID)
	assert.Equal(t, fixed, sink.events[0].At)

	// OPPORTUNITY is filtered from chat.
	require.Len(t, chat.titles, 1)
	assert.Equal(t, "liquidation bot: ERROR", chat.titles[0])
	assert.Contains(t, chat.bodies[0], "error: boom")
}

type blockingSender struct {
	release chan struct{}
	sent    chan string
}

func (s *blockingSender) Name() string { return "slow" }

func (s *blockingSender) Send(ctx context.Context, title, _ string) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.sent <- title
	return nil
}

func TestReporterDoesNotWaitForChat(t *testing.T) {
	slow := &blockingSender{release: make(chan struct{}), sent: make(chan string, chatQueueSize+1)}
	r := NewReporter(nil, []Sender{slow}, nil, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	returned := make(chan struct{})
	go func() {
		for range chatQueueSize * 2 {
			r.Report(ctx, domain.Event{Type: domain.EventInfo, Account: "0xabc"})
		}
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Report blocked on a slow sender")
	}

	close(slow.release)
	select {
	case title := <-slow.sent:
		assert.Equal(t, "liquidation bot: INFO", title)
	case <-time.After(2 * time.Second):
		t.Fatal("queued message never delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.LessOrEqual(t, len(slow.sent), chatQueueSize+1)
}

func TestReporterKeepsGoingWhenSinkFails(t *testing.T) {
	bad := &recordingSink{err: errors.New("down")}
	good := &recordingSink{}
	r := NewReporter([]Sink{bad, good}, nil, nil, nil, testLogger())

	r.Report(context.Background(), domain.Event{ID: "fixed", Type: domain.EventInfo})

	require.Len(t, good.events, 1)
	assert.Equal(t, "fixed", good.events[0].ID)
}

func TestRender(t *testing.T) {
	title, body := Render(domain.Event{Type: domain.EventExecuted, Account: "0x1", Strategy: "s"})
	assert.Equal(t, "liquidation bot: EXECUTED", title)
	assert.Equal(t, "account: 0x1\ns", body)
}

type memBus struct {
	published map[string][][]byte
	streams   map[string][][]byte
}

func (b *memBus) Publish(_ context.Context, ch string, p []byte) error {
	b.published[ch] = append(b.published[ch], p)
	return nil
}

func (b *memBus) StreamAppend(_ context.Context, s string, p []byte) error {
	b.streams[s] = append(b.streams[s], p)
	return nil
}

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func TestStreamSink(t *testing.T) {
	bus := &memBus{published: map[string][][]byte{}, streams: map[string][][]byte{}}
	s := NewStreamSink(bus, "liqbot:events")
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Accept(context.Background(), domain.Event{ID: "1", Type: domain.EventExecuted, Account: "0x1", At: at}))

	require.Len(t, bus.streams["liqbot:events"], 1)
	require.Len(t, bus.published["liqbot:events"], 1)
	var rec EventRecord
	require.NoError(t, json.Unmarshal(bus.streams["liqbot:events"][0], &rec))
	assert.Equal(t, "EXECUTED", rec.Type)
	assert.Equal(t, "2026-03-01T00:00:00.000Z", rec.At)
}

func TestDiscordSenderPostsContent(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "t", "m"))
	assert.Equal(t, "**t**\n```\nm\n```", got["content"])
}

func TestTelegramSenderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		http.Error(w, "bad chat", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.baseURL = srv.URL
	err := s.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
}
