package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

// EventRecord is the wire and archive shape of an event.
type EventRecord struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Account  string `json:"account"`
	Error    string `json:"error,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	At       string `json:"at"`
}

// NewEventRecord converts ev for serialisation.
func NewEventRecord(ev domain.Event) EventRecord {
	return EventRecord{
		ID:       ev.ID,
		Type:     string(ev.Type),
		Account:  ev.Account,
		Error:    ev.Error,
		Strategy: ev.Strategy,
		At:       ev.At.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// StreamSink appends events to a stream and publishes them on a channel of
// the same name, so other processes can either replay or follow live.
type StreamSink struct {
	bus    domain.EventBus
	stream string
}

func NewStreamSink(bus domain.EventBus, stream string) *StreamSink {
	return &StreamSink{bus: bus, stream: stream}
}

func (s *StreamSink) Name() string { return "stream" }

func (s *StreamSink) Accept(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(NewEventRecord(ev))
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	if err := s.bus.StreamAppend(ctx, s.stream, payload); err != nil {
		return err
	}
	return s.bus.Publish(ctx, s.stream, payload)
}

// StoreSink writes events to the audit store.
type StoreSink struct {
	store domain.EventStore
}

func NewStoreSink(store domain.EventStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Accept(ctx context.Context, ev domain.Event) error {
	return s.store.Append(ctx, ev)
}
