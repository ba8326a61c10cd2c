package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WatcherConfig configures WalletWatcher behavior.
type WatcherConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// SignatureNotification is a confirmed transaction mentioning a watched
// wallet, used to trigger an incremental fetch.
type SignatureNotification struct {
	Signature string
	Slot      int64
	Err       interface{}
}

// WalletWatcher subscribes to logs mentioning the watched wallets and
// emits transaction signatures as they confirm. The connection reconnects
// and resubscribes on failure.
type WalletWatcher struct {
	endpoint string
	wallets  []string
	config   WatcherConfig
	logger   *log.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	out  chan SignatureNotification
	done chan struct{}
	wg   sync.WaitGroup
}

// NewWalletWatcher connects, subscribes to the wallets, and starts
// delivering notifications.
func NewWalletWatcher(ctx context.Context, endpoint string, wallets []string, config *WatcherConfig, logger *log.Logger) (*WalletWatcher, error) {
	if len(wallets) == 0 {
		return nil, fmt.Errorf("no wallets to watch")
	}
	cfg := DefaultWatcherConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	w := &WalletWatcher{
		endpoint: endpoint,
		wallets:  wallets,
		config:   cfg,
		logger:   logger,
		// Buffer absorbs bursts; the read loop blocks rather than drop.
		out:  make(chan SignatureNotification, 10000),
		done: make(chan struct{}),
	}

	if err := w.connectAndSubscribe(ctx); err != nil {
		return nil, err
	}

	w.wg.Add(2)
	go w.readLoop()
	go w.pingLoop()

	return w, nil
}

// Notifications returns the channel of confirmed signatures. Closed when
// the watcher shuts down.
func (w *WalletWatcher) Notifications() <-chan SignatureNotification {
	return w.out
}

// Close closes the connection and stops delivery.
func (w *WalletWatcher) Close() error {
	if w.closed.Swap(true) {
		return nil
	}

	close(w.done)

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.conn.Close()
	}
	w.connMu.Unlock()

	w.wg.Wait()
	close(w.out)
	return nil
}

// connectAndSubscribe dials the endpoint and performs the logsSubscribe
// handshake. Called only when no read loop is consuming the connection.
func (w *WalletWatcher) connectAndSubscribe(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	reqID := w.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentions": w.wallets},
			map[string]string{"commitment": "confirmed"},
		},
	}

	conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return fmt.Errorf("write subscribe: %w", err)
	}

	// Read until the subscription is confirmed. Notifications cannot
	// arrive before confirmation on a fresh connection.
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return fmt.Errorf("read subscribe response: %w", err)
		}

		var resp wsSubscribeResponse
		if err := json.Unmarshal(message, &resp); err == nil && resp.ID == reqID {
			if resp.Error != nil {
				conn.Close()
				return fmt.Errorf("subscribe rejected: %s", resp.Error.Message)
			}
			break
		}
	}

	w.connMu.Lock()
	w.conn = conn
	w.connMu.Unlock()
	return nil
}

// readLoop reads notifications and reconnects on failure.
func (w *WalletWatcher) readLoop() {
	defer w.wg.Done()

	reconnectDelay := w.config.ReconnectDelay

	for !w.closed.Load() {
		w.connMu.Lock()
		conn := w.conn
		w.connMu.Unlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(w.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if w.closed.Load() {
				return
			}

			w.logger.Printf("solana: watcher read error, reconnecting: %v", err)

			w.connMu.Lock()
			if w.conn != nil {
				w.conn.Close()
				w.conn = nil
			}
			w.connMu.Unlock()

			for !w.closed.Load() {
				select {
				case <-w.done:
					return
				case <-time.After(reconnectDelay):
				}
				reconnectDelay *= 2
				if reconnectDelay > w.config.MaxReconnectDelay {
					reconnectDelay = w.config.MaxReconnectDelay
				}

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				err := w.connectAndSubscribe(ctx)
				cancel()
				if err == nil {
					break
				}
				w.logger.Printf("solana: watcher reconnect failed: %v", err)
			}
			continue
		}

		reconnectDelay = w.config.ReconnectDelay
		w.handleMessage(message)
	}
}

// handleMessage dispatches a logs notification to the output channel.
func (w *WalletWatcher) handleMessage(message []byte) {
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "logsNotification" || notif.Params == nil {
		return
	}

	value := notif.Params.Result.Value
	out := SignatureNotification{
		Signature: value.Signature,
		Err:       value.Err,
	}
	if notif.Params.Result.Context != nil {
		out.Slot = notif.Params.Result.Context.Slot
	}

	// Block rather than drop; incremental fetch relies on completeness.
	select {
	case w.out <- out:
	case <-w.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (w *WalletWatcher) pingLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.connMu.Lock()
			if w.conn != nil {
				w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
				// Write errors surface in the read loop.
				w.conn.WriteMessage(websocket.PingMessage, nil)
			}
			w.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string   `json:"jsonrpc"`
	ID      uint64   `json:"id"`
	Result  int64    `json:"result"` // subscription ID
	Error   *wsError `json:"error,omitempty"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
