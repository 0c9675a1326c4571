package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// klineResponse renders a v5 kline payload from rows given oldest
// first; the exchange returns them newest first.
func klineResponse(rows [][7]string) string {
	var b strings.Builder
	b.WriteString(`{"retCode":0,"retMsg":"OK","result":{"category":"spot","symbol":"BTCUSDT","list":[`)
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		fmt.Fprintf(&b, `["%s","%s","%s","%s","%s","%s","%s"]`, r[0], r[1], r[2], r[3], r[4], r[5], r[6])
		if i > 0 {
			b.WriteString(",")
		}
	}
	b.WriteString(`]}}`)
	return b.String()
}

func testRows(n int) [][7]string {
	rows := make([][7]string, n)
	for i := range rows {
		ts := fmt.Sprintf("%d", 1_700_000_000_000+int64(i)*3_600_000)
		px := fmt.Sprintf("%d", 100+i)
		rows[i] = [7]string{ts, px, px, px, px, "10", "1000"}
	}
	return rows
}

func newKlineServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != klinePath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("category"); got != "spot" {
			t.Errorf("category = %q, want spot", got)
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchWindowDropsFormingCandle(t *testing.T) {
	srv := newKlineServer(t, klineResponse(testRows(6)), http.StatusOK)
	p := NewBybitProvider(BybitOptions{BaseURL: srv.URL})

	candles, err := p.FetchWindow(context.Background(), "BTCUSDT", "60", 5)
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if len(candles) != 5 {
		t.Fatalf("len = %d, want 5 (newest candle dropped)", len(candles))
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].TimestampMs <= candles[i-1].TimestampMs {
			t.Fatalf("candles not ascending at %d: %v <= %v", i, candles[i].TimestampMs, candles[i-1].TimestampMs)
		}
	}
	// Oldest row survives, the newest (close 105) does not.
	if candles[0].Close != 100 {
		t.Errorf("oldest close = %v, want 100", candles[0].Close)
	}
	if candles[len(candles)-1].Close != 104 {
		t.Errorf("newest retained close = %v, want 104", candles[len(candles)-1].Close)
	}
}

func TestFetchWindowDeduplicatesTimestamps(t *testing.T) {
	rows := testRows(5)
	rows = append(rows, rows[4]) // duplicate of the newest closed row
	srv := newKlineServer(t, klineResponse(rows), http.StatusOK)
	p := NewBybitProvider(BybitOptions{BaseURL: srv.URL})

	candles, err := p.FetchWindow(context.Background(), "BTCUSDT", "60", 4)
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	seen := map[int64]bool{}
	for _, c := range candles {
		if seen[c.TimestampMs] {
			t.Fatalf("duplicate timestamp %d survived", c.TimestampMs)
		}
		seen[c.TimestampMs] = true
	}
}

func TestFetchWindowInsufficientData(t *testing.T) {
	srv := newKlineServer(t, klineResponse(testRows(3)), http.StatusOK)
	p := NewBybitProvider(BybitOptions{BaseURL: srv.URL})

	_, err := p.FetchWindow(context.Background(), "BTCUSDT", "60", 31)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestFetchWindowExchangeError(t *testing.T) {
	srv := newKlineServer(t, `{"retCode":10001,"retMsg":"params error","result":{}}`, http.StatusOK)
	p := NewBybitProvider(BybitOptions{BaseURL: srv.URL})

	_, err := p.FetchWindow(context.Background(), "BTCUSDT", "60", 5)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("err = %v, want ErrFetch", err)
	}
}

func TestFetchWindowHTTPError(t *testing.T) {
	srv := newKlineServer(t, "unavailable", http.StatusBadGateway)
	p := NewBybitProvider(BybitOptions{BaseURL: srv.URL})

	_, err := p.FetchWindow(context.Background(), "BTCUSDT", "60", 5)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("err = %v, want ErrFetch", err)
	}
}

func TestLastPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != tickersPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %q, want BTCUSDT", got)
		}
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[{"symbol":"BTCUSDT","lastPrice":"43250.5"}]}}`)
	}))
	t.Cleanup(srv.Close)
	p := NewBybitProvider(BybitOptions{BaseURL: srv.URL})

	price, err := p.LastPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("LastPrice: %v", err)
	}
	if price != 43250.5 {
		t.Errorf("price = %v, want 43250.5", price)
	}
}

func TestLastPriceMissingTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[]}}`)
	}))
	t.Cleanup(srv.Close)
	p := NewBybitProvider(BybitOptions{BaseURL: srv.URL})

	if _, err := p.LastPrice(context.Background(), "NOPEUSDT"); !errors.Is(err, ErrFetch) {
		t.Fatalf("err = %v, want ErrFetch", err)
	}
}

func TestSliceProvider(t *testing.T) {
	p := &SliceProvider{Candles: candlesOf(100, 101, 102)}

	candles, err := p.FetchWindow(context.Background(), "BTCUSDT", "60", 3)
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("len = %d, want 3", len(candles))
	}

	if _, err := p.FetchWindow(context.Background(), "BTCUSDT", "60", 4); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}
