// Package flashbots talks JSON-RPC to a Flashbots-compatible private relay.
package flashbots

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

// DefaultURL is the mainnet relay.
const DefaultURL = "https://relay.flashbots.net"

// Authenticator signs request bodies for the X-Flashbots-Signature header.
type Authenticator interface {
	Header(body []byte) (string, error)
}

// Client is a relay client. It implements executor.Relay.
type Client struct {
	url        string
	auth       Authenticator
	httpClient *http.Client
	nextID     atomic.Int64
}

// New creates a Client. An empty url selects DefaultURL.
func New(url string, auth Authenticator) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url:        url,
		auth:       auth,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type callBundleParams struct {
	Txs              []string `json:"txs"`
	BlockNumber      string   `json:"blockNumber"`
	StateBlockNumber string   `json:"stateBlockNumber"`
}

type callBundleResult struct {
	BundleHash string `json:"bundleHash"`
	Results    []struct {
		TxHash string `json:"txHash"`
		Error  string `json:"error"`
		Revert string `json:"revert"`
	} `json:"results"`
}

type privateTxParams struct {
	Tx             string `json:"tx"`
	MaxBlockNumber string `json:"maxBlockNumber,omitempty"`
	Preferences    struct {
		Fast bool `json:"fast"`
	} `json:"preferences"`
}

// CallBundle simulates rawTxs on top of the latest state as if mined in
// blockNumber. It fails on the first transaction that errors or reverts.
func (c *Client) CallBundle(ctx context.Context, rawTxs [][]byte, blockNumber uint64) error {
	params := callBundleParams{
		Txs:              make([]string, len(rawTxs)),
		BlockNumber:      hexutil.EncodeUint64(blockNumber),
		StateBlockNumber: "latest",
	}
	for i, raw := range rawTxs {
		params.Txs[i] = hexutil.Encode(raw)
	}

	var res callBundleResult
	if err := c.call(ctx, "eth_callBundle", params, &res); err != nil {
		return err
	}
	for _, r := range res.Results {
		switch {
		case r.Error != "":
			return fmt.Errorf("flashbots: tx %s: %s", r.TxHash, r.Error)
		case r.Revert != "":
			return fmt.Errorf("flashbots: tx %s reverted: %s", r.TxHash, r.Revert)
		}
	}
	return nil
}

// SendPrivateTransaction submits rawTx for private inclusion up to maxBlock
// (0 for the relay's default window).
func (c *Client) SendPrivateTransaction(ctx context.Context, rawTx []byte, maxBlock uint64) (common.Hash, error) {
	params := privateTxParams{Tx: hexutil.Encode(rawTx)}
	params.Preferences.Fast = true
	if maxBlock > 0 {
		params.MaxBlockNumber = hexutil.EncodeUint64(maxBlock)
	}

	var hash common.Hash
	if err := c.call(ctx, "eth_sendPrivateTransaction", params, &hash); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  []any{params},
	})
	if err != nil {
		return fmt.Errorf("flashbots: marshal %s: %w", method, err)
	}
	sig, err := c.auth.Header(body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("flashbots: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Flashbots-Signature", sig)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("flashbots: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("flashbots: read %s: %w", method, err)
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("flashbots: %s: %w: %s", method, domain.ErrUnauthorized, raw)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fmt.Errorf("flashbots: %s: HTTP %d: %s", method, resp.StatusCode, raw)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("flashbots: %s: %w", method, rpcResp.Error)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return fmt.Errorf("flashbots: %s: %w", method, errors.New("empty result"))
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("flashbots: decode %s: %w", method, err)
	}
	return nil
}
