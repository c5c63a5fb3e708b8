package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

// EventStore implements domain.EventStore on the liquidation_events table.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts ev. Re-delivering an event with a known ID is a no-op.
func (s *EventStore) Append(ctx context.Context, ev domain.Event) error {
	const query = `
		INSERT INTO liquidation_events (id, event_type, account, error, strategy, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query, ev.ID, string(ev.Type), ev.Account, ev.Error, ev.Strategy, ev.At)
	if err != nil {
		return fmt.Errorf("postgres: append event %s: %w", ev.ID, err)
	}
	return nil
}

// List returns events newest first, with pagination and optional time
// filtering.
func (s *EventStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	query, args := listQuery(opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Event, error) {
		var (
			ev  domain.Event
			typ string
		)
		err := row.Scan(&ev.ID, &typ, &ev.Account, &ev.Error, &ev.Strategy, &ev.At)
		ev.Type = domain.EventType(typ)
		return ev, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan events: %w", err)
	}
	return events, nil
}

func listQuery(opts domain.ListOpts) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id::text, event_type, account, error, strategy, occurred_at FROM liquidation_events WHERE 1=1`)
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Since != nil {
		b.WriteString(" AND occurred_at >= " + arg(*opts.Since))
	}
	if opts.Until != nil {
		b.WriteString(" AND occurred_at <= " + arg(*opts.Until))
	}
	b.WriteString(" ORDER BY occurred_at DESC")
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + arg(opts.Limit))
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET " + arg(opts.Offset))
	}
	return b.String(), args
}

var _ domain.EventStore = (*EventStore)(nil)
