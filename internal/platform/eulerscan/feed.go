// Package eulerscan subscribes to an indexer that pushes borrower accounts
// ordered by health score, and turns its patch stream into domain.Account
// updates.
package eulerscan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
	subscriptionID    = 1

	// healthScale is the indexer's fixed-point unit: a score of 1000000
	// is a health ratio of 1.0.
	healthScale = 1e6
)

// Query selects which accounts the indexer streams. HealthMax is in the
// indexer's units (millionths of a health ratio).
type Query struct {
	HealthMax float64
	Limit     int
}

type subCommand struct {
	Cmd   string   `json:"cmd"`
	ID    int      `json:"id"`
	Query subQuery `json:"query"`
}

type subQuery struct {
	Topic     string  `json:"topic"`
	By        string  `json:"by"`
	HealthMax float64 `json:"healthMax"`
	Limit     int     `json:"limit"`
}

type patchMessage struct {
	ID     int       `json:"id"`
	Result []patchOp `json:"result"`
	Error  *string   `json:"error,omitempty"`
}

type patchOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

// accountValue is the indexer's account document.
type accountValue struct {
	Account         common.Address   `json:"account"`
	HealthScore     number           `json:"healthScore"`
	CollateralValue number           `json:"collateralValue"`
	LiabilityValue  number           `json:"liabilityValue"`
	Liabilities     []common.Address `json:"liabilities"`
	Collaterals     []common.Address `json:"collaterals"`
}

// number decodes a JSON number or a numeric string.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("eulerscan: number %s: %w", b, err)
	}
	*n = number(f)
	return nil
}

func (v accountValue) toDomain() domain.Account {
	return domain.Account{
		Address:         v.Account,
		HealthScore:     float64(v.HealthScore) / healthScale,
		CollateralValue: float64(v.CollateralValue),
		LiabilityValue:  float64(v.LiabilityValue),
		Liabilities:     v.Liabilities,
		Collaterals:     v.Collaterals,
	}
}

// Feed is a reconnecting websocket subscription. It implements
// domain.PositionFeed.
type Feed struct {
	wsURL  string
	query  Query
	logger *slog.Logger

	mu       sync.Mutex
	accounts map[string]accountValue
}

// New creates a Feed.
func New(wsURL string, q Query, logger *slog.Logger) *Feed {
	if q.Limit <= 0 {
		q.Limit = 500
	}
	if q.HealthMax <= 0 {
		q.HealthMax = healthScale
	}
	return &Feed{
		wsURL:    wsURL,
		query:    q,
		logger:   logger.With(slog.String("component", "eulerscan")),
		accounts: make(map[string]accountValue),
	}
}

// Subscribe connects and streams every added or changed account until ctx
// ends. The channel is closed on return. Disconnects are retried with
// exponential backoff; the first dial error is returned directly.
func (f *Feed) Subscribe(ctx context.Context) (<-chan domain.Account, error) {
	conn, err := f.connect(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.Account, 64)
	go func() {
		defer close(out)
		delay := reconnectDelay
		for {
			err := f.serve(ctx, conn, out)
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("feed disconnected", slog.String("error", err.Error()))

			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
				if conn, err = f.connect(ctx); err == nil {
					delay = reconnectDelay
					break
				}
				f.logger.Warn("feed reconnect failed", slog.String("error", err.Error()))
				delay = min(delay*2, maxReconnectDelay)
			}
		}
	}()
	return out, nil
}

func (f *Feed) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("eulerscan: connect: %w", err)
	}

	cmd := subCommand{
		Cmd: "sub",
		ID:  subscriptionID,
		Query: subQuery{
			Topic:     "accounts",
			By:        "healthScore",
			HealthMax: f.query.HealthMax,
			Limit:     f.query.Limit,
		},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(cmd); err != nil {
		conn.Close()
		return nil, fmt.Errorf("eulerscan: subscribe: %w", err)
	}

	// A fresh subscription replays the full set.
	f.mu.Lock()
	f.accounts = make(map[string]accountValue)
	f.mu.Unlock()

	f.logger.Info("feed subscribed", slog.String("url", f.wsURL), slog.Float64("health_max", f.query.HealthMax))
	return conn, nil
}

// serve reads until the connection fails or ctx ends.
func (f *Feed) serve(ctx context.Context, conn *websocket.Conn, out chan<- domain.Account) error {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrWSDisconnect, err)
		}
		for _, acct := range f.apply(raw) {
			select {
			case out <- acct:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// apply folds one patch message into the account cache and returns the
// accounts it touched, in patch order.
func (f *Feed) apply(raw []byte) []domain.Account {
	var msg patchMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		f.logger.Debug("dropping unparseable message", slog.String("error", err.Error()))
		return nil
	}
	if msg.Error != nil {
		f.logger.Warn("indexer error", slog.String("error", *msg.Error))
		return nil
	}
	if msg.ID != subscriptionID {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var touched []domain.Account
	for _, op := range msg.Result {
		parts := strings.Split(strings.TrimPrefix(op.Path, "/"), "/")
		if len(parts) == 0 || parts[0] == "" {
			continue
		}
		key := strings.ToLower(parts[0])

		switch op.Op {
		case "remove":
			if len(parts) == 1 {
				delete(f.accounts, key)
			}
			continue
		case "add", "replace":
		default:
			continue
		}

		acct, ok := f.accounts[key]
		if len(parts) == 1 {
			var v accountValue
			if err := json.Unmarshal(op.Value, &v); err != nil {
				f.logger.Warn("dropping malformed account", slog.String("path", op.Path), slog.String("error", err.Error()))
				continue
			}
			if v.Account == (common.Address{}) && common.IsHexAddress(parts[0]) {
				v.Account = common.HexToAddress(parts[0])
			}
			acct = v
		} else {
			if !ok || !setField(&acct, parts[1], op.Value) {
				continue
			}
		}
		f.accounts[key] = acct
		touched = append(touched, acct.toDomain())
	}
	return touched
}

// setField applies a single-field patch.
func setField(v *accountValue, field string, raw json.RawMessage) bool {
	var target any
	switch field {
	case "healthScore":
		target = &v.HealthScore
	case "collateralValue":
		target = &v.CollateralValue
	case "liabilityValue":
		target = &v.LiabilityValue
	case "liabilities":
		target = &v.Liabilities
	case "collaterals":
		target = &v.Collaterals
	default:
		return false
	}
	return json.Unmarshal(raw, target) == nil
}

var _ domain.PositionFeed = (*Feed)(nil)
