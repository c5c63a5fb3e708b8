// Package notify fans liquidation events out to the log, to durable sinks
// (stream, database, archive) and to chat channels. Reporting never fails
// the caller: sink errors are logged and counted. Chat delivery happens on
// the Run goroutine so a slow webhook never holds up a search.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
	"github.com/alanyoungcy/liquidationbot/internal/metrics"
)

const (
	chatQueueSize = 64
	chatTimeout   = 10 * time.Second
)

type chatMessage struct {
	eventID     string
	title, body string
}

// Sink stores or forwards structured events.
type Sink interface {
	Accept(ctx context.Context, ev domain.Event) error
	Name() string
}

// Reporter implements domain.Reporter.
type Reporter struct {
	sinks   []Sink
	senders []Sender
	events  map[domain.EventType]bool
	chat    chan chatMessage
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewReporter creates a Reporter. Chat senders only receive the event types
// listed in events; an empty list forwards everything. Sinks receive all
// events.
func NewReporter(sinks []Sink, senders []Sender, events []string, m *metrics.Metrics, logger *slog.Logger) *Reporter {
	allowed := make(map[domain.EventType]bool, len(events))
	for _, e := range events {
		allowed[domain.EventType(strings.ToUpper(strings.TrimSpace(e)))] = true
	}
	return &Reporter{
		sinks:   sinks,
		senders: senders,
		events:  allowed,
		chat:    make(chan chatMessage, chatQueueSize),
		metrics: m,
		logger:  logger.With(slog.String("component", "reporter")),
		now:     time.Now,
	}
}

// Report stamps ev with an ID and time when missing, logs it, delivers it to
// every sink and queues it for matching senders. A full chat queue drops the
// message.
func (r *Reporter) Report(ctx context.Context, ev domain.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = r.now().UTC()
	}
	r.log(ctx, ev)

	for _, s := range r.sinks {
		if err := s.Accept(ctx, ev); err != nil {
			r.metrics.ReportFailed(s.Name())
			r.logger.WarnContext(ctx, "sink failed",
				slog.String("sink", s.Name()),
				slog.String("event_id", ev.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(r.senders) == 0 || (len(r.events) > 0 && !r.events[ev.Type]) {
		return
	}
	title, body := Render(ev)
	select {
	case r.chat <- chatMessage{eventID: ev.ID, title: title, body: body}:
	default:
		r.metrics.ReportFailed("chat")
		r.logger.WarnContext(ctx, "chat queue full, dropping message", slog.String("event_id", ev.ID))
	}
}

// Run delivers queued chat messages until ctx ends, then flushes whatever
// is still queued with a bounded deadline and returns ctx.Err().
func (r *Reporter) Run(ctx context.Context) error {
	for {
		select {
		case m := <-r.chat:
			r.deliver(ctx, m)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), chatTimeout)
			defer cancel()
			for {
				select {
				case m := <-r.chat:
					r.deliver(flushCtx, m)
				default:
					return ctx.Err()
				}
			}
		}
	}
}

func (r *Reporter) deliver(ctx context.Context, m chatMessage) {
	for _, s := range r.senders {
		sendCtx, cancel := context.WithTimeout(ctx, chatTimeout)
		err := s.Send(sendCtx, m.title, m.body)
		cancel()
		if err != nil {
			r.metrics.ReportFailed(s.Name())
			r.logger.WarnContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event_id", m.eventID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (r *Reporter) log(ctx context.Context, ev domain.Event) {
	attrs := []any{
		slog.String("event_id", ev.ID),
		slog.String("type", string(ev.Type)),
		slog.String("account", ev.Account),
	}
	if ev.Strategy != "" {
		attrs = append(attrs, slog.String("strategy", ev.Strategy))
	}
	if ev.Type == domain.EventError {
		r.logger.ErrorContext(ctx, ev.Error, attrs...)
		return
	}
	r.logger.InfoContext(ctx, "event", attrs...)
}

// Render formats an event for chat channels.
func Render(ev domain.Event) (title, body string) {
	title = fmt.Sprintf("liquidation bot: %s", ev.Type)
	var b strings.Builder
	fmt.Fprintf(&b, "account: %s", ev.Account)
	if ev.Strategy != "" {
		fmt.Fprintf(&b, "\n%s", ev.Strategy)
	}
	if ev.Error != "" {
		fmt.Fprintf(&b, "\nerror: %s", ev.Error)
	}
	return title, b.String()
}

var _ domain.Reporter = (*Reporter)(nil)
