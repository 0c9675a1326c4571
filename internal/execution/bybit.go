package execution

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/valyala/fastjson"
)

const (
	defaultBybitBaseURL = "https://api.bybit.com"
	orderCreatePath     = "/v5/order/create"
	recvWindowMs        = "5000"
)

// BybitOptions configures a live spot executor.
type BybitOptions struct {
	APIKey    string
	APISecret string
	Symbol    string
	// QtyStep is the exchange lot size step, e.g. "0.000001".
	// Quantities are floored to it before submission.
	QtyStep string
	// BaseURL overrides the production endpoint (testnet, tests).
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// BybitExecutor places real market orders on Bybit spot via the v5
// REST API with HMAC-SHA256 request signing.
type BybitExecutor struct {
	apiKey    string
	apiSecret string
	symbol    string
	qtyStep   string
	baseURL   string
	client    *http.Client
	logger    *log.Logger
	parsers   fastjson.ParserPool
}

// NewBybitExecutor builds a live executor. Key, secret and symbol are
// required; QtyStep defaults to a whole-unit step when empty.
func NewBybitExecutor(opts BybitOptions) (*BybitExecutor, error) {
	if opts.APIKey == "" || opts.APISecret == "" {
		return nil, fmt.Errorf("bybit executor: api credentials are required")
	}
	if opts.Symbol == "" {
		return nil, fmt.Errorf("bybit executor: symbol is required")
	}
	step := opts.QtyStep
	if step == "" {
		step = "1"
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBybitBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &BybitExecutor{
		apiKey:    opts.APIKey,
		apiSecret: opts.APISecret,
		symbol:    opts.Symbol,
		qtyStep:   step,
		baseURL:   baseURL,
		client:    client,
		logger:    logger,
	}, nil
}

type orderRequest struct {
	Category  string `json:"category"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	OrderType string `json:"orderType"`
	Qty       string `json:"qty"`
	// MarketUnit pins market order qty to the base coin so buys and
	// sells are sized in the same unit.
	MarketUnit string `json:"marketUnit"`
}

// Execute places a market order and waits for the HTTP-level ack.
// The quantity is floored to the lot step before submission; an order
// that floors to zero is rejected locally.
func (b *BybitExecutor) Execute(ctx context.Context, side OrderSide, quantity, _ float64) (*Fill, error) {
	if side != Buy && side != Sell {
		return nil, execErrorf("unknown order side %q", side)
	}
	qty, err := QuantizeQty(quantity, b.qtyStep)
	if err != nil {
		return nil, execErrorf("quantize qty %v: %v", quantity, err)
	}
	if qty == "0" {
		return nil, execErrorf("qty %v floors to zero at step %s", quantity, b.qtyStep)
	}

	body, err := json.Marshal(orderRequest{
		Category:   "spot",
		Symbol:     b.symbol,
		Side:       string(side),
		OrderType:  "Market",
		Qty:        qty,
		MarketUnit: "baseCoin",
	})
	if err != nil {
		return nil, execErrorf("marshal order: %v", err)
	}

	raw, err := b.post(ctx, orderCreatePath, body)
	if err != nil {
		return nil, err
	}

	parser := b.parsers.Get()
	defer b.parsers.Put(parser)
	v, err := parser.ParseBytes(raw)
	if err != nil {
		return nil, execErrorf("parse order response: %v", err)
	}
	if code := v.GetInt("retCode"); code != 0 {
		return nil, execErrorf("order rejected: retCode=%d retMsg=%q", code, v.GetStringBytes("retMsg"))
	}
	orderID := string(v.GetStringBytes("result", "orderId"))
	b.logger.Printf("bybit order accepted: %s %s qty=%s orderId=%s", side, b.symbol, qty, orderID)

	filled, err := strconv.ParseFloat(qty, 64)
	if err != nil {
		return nil, execErrorf("parse filled qty %q: %v", qty, err)
	}
	avg := parseOptionalFloat(v, "result", "avgPrice")
	return &Fill{FilledQty: filled, AvgPrice: avg}, nil
}

func (b *BybitExecutor) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, execErrorf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BAPI-API-KEY", b.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindowMs)
	req.Header.Set("X-BAPI-SIGN", b.sign(ts, body))

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, execErrorf("post %s: %v", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, execErrorf("read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, execErrorf("post %s: status %d: %s", path, resp.StatusCode, raw)
	}
	return raw, nil
}

// sign computes the v5 signature: HMAC-SHA256 over
// timestamp + apiKey + recvWindow + body, hex-encoded.
func (b *BybitExecutor) sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(b.apiSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(b.apiKey))
	mac.Write([]byte(recvWindowMs))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseOptionalFloat(v *fastjson.Value, keys ...string) float64 {
	raw := v.GetStringBytes(keys...)
	if len(raw) == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0
	}
	return f
}
