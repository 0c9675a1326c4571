package market

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/valyala/fastjson"
)

// Tick is a single last-price update from the public ticker stream.
type Tick struct {
	Symbol      string
	Price       float64
	TimestampMs int64
}

// TickerConfig configures stream reconnect and keepalive behavior.
type TickerConfig struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// DefaultTickerConfig returns the stock stream settings.
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      20 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// TickerStream maintains a public WebSocket subscription to the spot
// ticker of one symbol, reconnecting with exponential backoff and
// resubscribing after each reconnect.
type TickerStream struct {
	endpoint string
	symbol   string
	config   TickerConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	ticks chan Tick
	done  chan struct{}
	wg    sync.WaitGroup

	parsers fastjson.ParserPool
}

// NewTickerStream connects, subscribes and starts the read and ping
// loops. Ticks arrive on the channel returned by Ticks until Close.
func NewTickerStream(ctx context.Context, endpoint, symbol string, config *TickerConfig, logger *log.Logger) (*TickerStream, error) {
	cfg := DefaultTickerConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &TickerStream{
		endpoint: endpoint,
		symbol:   symbol,
		config:   cfg,
		logger:   logger,
		ticks:    make(chan Tick, 1024),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	if err := s.subscribe(); err != nil {
		s.closeConn()
		return nil, err
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()

	return s, nil
}

// Ticks returns the stream of last-price updates. The channel closes
// when the stream is closed.
func (s *TickerStream) Ticks() <-chan Tick {
	return s.ticks
}

// Close shuts the stream down and closes the tick channel.
func (s *TickerStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.ticks)
	return nil
}

func (s *TickerStream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: websocket dial: %v", ErrFetch, err)
	}
	s.conn = conn
	return nil
}

func (s *TickerStream) subscribe() error {
	req := map[string]interface{}{
		"op":   "subscribe",
		"args": []string{"tickers." + s.symbol},
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("%w: not connected", ErrFetch)
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("%w: write subscribe: %v", ErrFetch, err)
	}
	return nil
}

func (s *TickerStream) closeConn() {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
}

func (s *TickerStream) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.logger.Printf("ticker read error, reconnecting in %v: %v", reconnectDelay, err)
			s.closeConn()

			select {
			case <-s.done:
				return
			case <-time.After(reconnectDelay):
			}
			reconnectDelay *= 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			if err := s.connect(context.Background()); err != nil {
				s.logger.Printf("ticker reconnect failed: %v", err)
				continue
			}
			if err := s.subscribe(); err != nil {
				s.logger.Printf("ticker resubscribe failed: %v", err)
				s.closeConn()
				continue
			}
			reconnectDelay = s.config.ReconnectDelay
			continue
		}

		if tick, ok := s.parseTick(msg); ok {
			select {
			case s.ticks <- tick:
			case <-s.done:
				return
			}
		}
	}
}

func (s *TickerStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				// Bybit public streams expect an application-level ping.
				if err := s.conn.WriteJSON(map[string]string{"op": "ping"}); err != nil {
					s.logger.Printf("ticker ping failed: %v", err)
				}
			}
			s.connMu.Unlock()
		}
	}
}

// parseTick extracts the last price from a tickers.<symbol> push.
// Subscription acks, pongs and snapshots without a price are skipped.
func (s *TickerStream) parseTick(msg []byte) (Tick, bool) {
	parser := s.parsers.Get()
	defer s.parsers.Put(parser)

	v, err := parser.ParseBytes(msg)
	if err != nil {
		return Tick{}, false
	}
	topic := string(v.GetStringBytes("topic"))
	if topic != "tickers."+s.symbol {
		return Tick{}, false
	}
	raw := v.GetStringBytes("data", "lastPrice")
	if len(raw) == 0 {
		return Tick{}, false
	}
	price, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return Tick{}, false
	}
	return Tick{
		Symbol:      s.symbol,
		Price:       price,
		TimestampMs: v.GetInt64("ts"),
	}, true
}
