package domain

import (
	"context"
	"io"
	"time"
)

// Infrastructure the reporting path depends on. Each is optional at runtime;
// the app only wires the ones that are configured.

// LockManager serialises submissions from processes sharing one signer.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage is one entry read back from an event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// EventBus fans reported events out to other processes and keeps a capped
// stream of them for late readers.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// ListOpts pages through stored events, newest first. A zero Limit returns every
// match.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// EventStore is the append-only event log behind /api/events.
type EventStore interface {
	Append(ctx context.Context, ev Event) error
	List(ctx context.Context, opts ListOpts) ([]Event, error)
}

// BlobWriter uploads report archives to object storage.
type BlobWriter interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, key string, data io.Reader, partSize int64) error
}
