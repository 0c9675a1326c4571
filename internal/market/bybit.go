package market

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/valyala/fastjson"

	"spot-trader/internal/domain"
)

const (
	defaultBybitBaseURL = "https://api.bybit.com"
	klinePath           = "/v5/market/kline"
	tickersPath         = "/v5/market/tickers"
	// maxKlineLimit is the per-request cap of the kline endpoint.
	maxKlineLimit = 1000
)

// BybitOptions configures a BybitProvider.
type BybitOptions struct {
	// BaseURL overrides the production endpoint (testnet, tests).
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// BybitProvider fetches spot klines from the Bybit v5 REST API.
type BybitProvider struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
	parsers fastjson.ParserPool
}

// NewBybitProvider builds a REST candle provider.
func NewBybitProvider(opts BybitOptions) *BybitProvider {
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
	return &BybitProvider{baseURL: baseURL, client: client, logger: logger}
}

// FetchWindow fetches the most recent candles, oldest first. The
// exchange returns the in-progress candle as the newest entry; it is
// dropped so only closed candles reach the strategy.
func (p *BybitProvider) FetchWindow(ctx context.Context, symbol, interval string, minLength int) ([]domain.Candle, error) {
	if minLength <= 0 {
		return nil, fmt.Errorf("%w: non-positive min length %d", ErrFetch, minLength)
	}
	// One extra for the dropped in-progress candle.
	limit := minLength + 1
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}

	q := url.Values{}
	q.Set("category", "spot")
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	raw, err := p.get(ctx, klinePath+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	candles, err := p.parseKlines(raw)
	if err != nil {
		return nil, err
	}
	if len(candles) < minLength {
		return nil, fmt.Errorf("%w: %s/%s: have %d closed candles, need %d",
			ErrInsufficientData, symbol, interval, len(candles), minLength)
	}
	return candles, nil
}

// LastPrice fetches the current traded price for the symbol.
func (p *BybitProvider) LastPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("category", "spot")
	q.Set("symbol", symbol)

	raw, err := p.get(ctx, tickersPath+"?"+q.Encode())
	if err != nil {
		return 0, err
	}

	parser := p.parsers.Get()
	defer p.parsers.Put(parser)

	v, err := parser.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: parse response: %v", ErrFetch, err)
	}
	if code := v.GetInt("retCode"); code != 0 {
		return 0, fmt.Errorf("%w: retCode=%d retMsg=%q", ErrFetch, code, v.GetStringBytes("retMsg"))
	}
	rows := v.GetArray("result", "list")
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: no ticker for %s", ErrFetch, symbol)
	}
	price, err := strconv.ParseFloat(string(rows[0].GetStringBytes("lastPrice")), 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: bad lastPrice for %s", ErrFetch, symbol)
	}
	return price, nil
}

func (p *BybitProvider) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrFetch, resp.StatusCode, raw)
	}
	return raw, nil
}

// parseKlines decodes the v5 kline payload. Entries arrive newest
// first as string arrays: [startMs, open, high, low, close, volume,
// turnover]. The newest entry is the in-progress candle and is
// dropped; the rest are sorted ascending and deduplicated by
// timestamp.
func (p *BybitProvider) parseKlines(raw []byte) ([]domain.Candle, error) {
	parser := p.parsers.Get()
	defer p.parsers.Put(parser)

	v, err := parser.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrFetch, err)
	}
	if code := v.GetInt("retCode"); code != 0 {
		return nil, fmt.Errorf("%w: retCode=%d retMsg=%q", ErrFetch, code, v.GetStringBytes("retMsg"))
	}

	rows := v.GetArray("result", "list")
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty kline list", ErrInsufficientData)
	}

	candles := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		fields := row.GetArray()
		if len(fields) < 6 {
			return nil, fmt.Errorf("%w: kline row has %d fields", ErrFetch, len(fields))
		}
		c, err := parseKlineRow(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		candles = append(candles, c)
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].TimestampMs < candles[j].TimestampMs })

	deduped := candles[:0]
	for i, c := range candles {
		if i > 0 && c.TimestampMs == candles[i-1].TimestampMs {
			continue
		}
		deduped = append(deduped, c)
	}

	// Newest candle is still forming.
	return deduped[:len(deduped)-1], nil
}

func parseKlineRow(fields []*fastjson.Value) (domain.Candle, error) {
	ts, err := strconv.ParseInt(string(fields[0].GetStringBytes()), 10, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parse timestamp: %v", err)
	}
	var vals [5]float64
	for i := 0; i < 5; i++ {
		f, err := strconv.ParseFloat(string(fields[i+1].GetStringBytes()), 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("parse field %d: %v", i+1, err)
		}
		vals[i] = f
	}
	return domain.Candle{
		TimestampMs: ts,
		Open:        vals[0],
		High:        vals[1],
		Low:         vals[2],
		Close:       vals[3],
		Volume:      vals[4],
	}, nil
}
