package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
	"github.com/alanyoungcy/liquidationbot/internal/notify"
)

// ReportArchiver buffers reported events and uploads them as one JSONL
// object per interval. It implements notify.Sink.
type ReportArchiver struct {
	writer   domain.BlobWriter
	prefix   string
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending []notify.EventRecord
	since   time.Time
	now     func() time.Time
}

// NewReportArchiver creates an archiver writing under prefix. Call Run to
// start the periodic flush.
func NewReportArchiver(writer domain.BlobWriter, prefix string, interval time.Duration, logger *slog.Logger) *ReportArchiver {
	a := &ReportArchiver{
		writer:   writer,
		prefix:   prefix,
		interval: interval,
		logger:   logger.With(slog.String("component", "report_archiver")),
		now:      time.Now,
	}
	a.since = a.now().UTC()
	return a
}

func (a *ReportArchiver) Name() string { return "archive" }

// Accept queues ev for the next flush.
func (a *ReportArchiver) Accept(_ context.Context, ev domain.Event) error {
	a.mu.Lock()
	a.pending = append(a.pending, notify.NewEventRecord(ev))
	a.mu.Unlock()
	return nil
}

// Run flushes every interval until ctx ends, then makes a final flush.
func (a *ReportArchiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := a.Flush(flushCtx); err != nil {
				a.logger.Error("final report flush failed", slog.String("error", err.Error()))
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.Flush(ctx); err != nil {
				a.logger.ErrorContext(ctx, "report flush failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Flush uploads the pending events and returns the object key, or "" when
// nothing was pending. On upload failure the events stay queued.
func (a *ReportArchiver) Flush(ctx context.Context) (string, error) {
	a.mu.Lock()
	batch := a.pending
	from := a.since
	a.pending = nil
	to := a.now().UTC()
	a.since = to
	a.mu.Unlock()

	if len(batch) == 0 {
		return "", nil
	}

	buf, err := marshalJSONL(batch)
	if err != nil {
		a.requeue(batch, from)
		return "", fmt.Errorf("s3blob: marshal report: %w", err)
	}

	key := reportPath(a.prefix, from, to)
	if int64(len(buf)) > minPartSize {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		a.requeue(batch, from)
		return "", err
	}
	a.logger.InfoContext(ctx, "report archived",
		slog.String("key", key),
		slog.Int("events", len(batch)),
	)
	return key, nil
}

func (a *ReportArchiver) requeue(batch []notify.EventRecord, from time.Time) {
	a.mu.Lock()
	a.pending = append(batch, a.pending...)
	a.since = from
	a.mu.Unlock()
}

// reportPath partitions reports by day:
//
//	reports/2026-01-02/20260102T030405Z-20260102T040405Z.jsonl
func reportPath(prefix string, from, to time.Time) string {
	const stamp = "20060102T150405Z"
	return fmt.Sprintf("%s/%s/%s-%s.jsonl", prefix, from.Format("2006-01-02"), from.Format(stamp), to.Format(stamp))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ notify.Sink = (*ReportArchiver)(nil)
