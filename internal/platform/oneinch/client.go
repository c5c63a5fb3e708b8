// Package oneinch is a minimal client for the 1inch swap API, used to price
// and pre-build aggregator swaps of seized collateral.
package oneinch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

// maxSlippage is sent on every request. The quote only has to be executable
// inside the batch; the batch itself is simulated before sending.
const maxSlippage = "50"

// Client queries the swap endpoint.
type Client struct {
	apiURL     string
	fromAddr   common.Address
	httpClient *http.Client
}

// New creates a Client. apiURL is the full swap endpoint, e.g.
// "https://api.1inch.io/v4.0/1/swap". fromAddr is the account the swap will
// be executed from, which for batched swaps is the protocol itself.
func New(apiURL string, fromAddr common.Address, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiURL:     apiURL,
		fromAddr:   fromAddr,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type swapResponse struct {
	FromTokenAmount string `json:"fromTokenAmount"`
	ToTokenAmount   string `json:"toTokenAmount"`
	Tx              struct {
		Data string `json:"data"`
	} `json:"tx"`
}

// Quote prices selling amount of from for to, and returns the calldata of
// the matching swap.
func (c *Client) Quote(ctx context.Context, from, to common.Address, amount *big.Int) (domain.SourceQuote, error) {
	params := url.Values{}
	params.Set("fromTokenAddress", from.Hex())
	params.Set("toTokenAddress", to.Hex())
	params.Set("amount", amount.String())
	params.Set("disableEstimate", "true")
	params.Set("fromAddress", c.fromAddr.Hex())
	params.Set("allowPartialFill", "false")
	params.Set("slippage", maxSlippage)

	body, err := c.doGet(ctx, params)
	if err != nil {
		return domain.SourceQuote{}, fmt.Errorf("oneinch: quote %s: %w", amount, err)
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.SourceQuote{}, fmt.Errorf("oneinch: decode quote: %w", err)
	}

	out := domain.SourceQuote{}
	var ok bool
	if out.ToAmount, ok = new(big.Int).SetString(resp.ToTokenAmount, 10); !ok {
		return domain.SourceQuote{}, fmt.Errorf("oneinch: bad toTokenAmount %q", resp.ToTokenAmount)
	}
	if resp.FromTokenAmount != "" {
		if out.FromAmount, ok = new(big.Int).SetString(resp.FromTokenAmount, 10); !ok {
			return domain.SourceQuote{}, fmt.Errorf("oneinch: bad fromTokenAmount %q", resp.FromTokenAmount)
		}
	}
	if resp.Tx.Data != "" {
		if out.Payload, err = hexutil.Decode(resp.Tx.Data); err != nil {
			return domain.SourceQuote{}, fmt.Errorf("oneinch: bad tx data: %w", err)
		}
	}
	return out, nil
}

func (c *Client) doGet(ctx context.Context, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

var _ domain.QuoteSource = (*Client)(nil)
