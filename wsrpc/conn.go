package wsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/broady/bifrost"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

// ErrClosed is returned by calls on a closed connection.
var ErrClosed = bifrost.NewError(bifrost.CodeUnavailable, "websocket connection closed")

type dialConfig struct {
	dialer       *websocket.Dialer
	header       http.Header
	writeTimeout time.Duration
	logger       *slog.Logger
}

// DialOption configures Dial.
type DialOption func(*dialConfig)

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) DialOption {
	return func(c *dialConfig) { c.dialer = d }
}

// WithHeader adds a header to the handshake request.
func WithHeader(key, value string) DialOption {
	return func(c *dialConfig) { c.header.Add(key, value) }
}

// WithWriteTimeout bounds each frame write. Default is 10 seconds.
func WithWriteTimeout(d time.Duration) DialOption {
	return func(c *dialConfig) { c.writeTimeout = d }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) DialOption {
	return func(c *dialConfig) { c.logger = l }
}

// Conn is a client connection. Use Transport to send bifrost calls over it.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	logger       *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan responseFrame
	err     error

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to a Handler at url (ws:// or wss://).
func Dial(ctx context.Context, url string, opts ...DialOption) (*Conn, error) {
	cfg := &dialConfig{
		dialer:       websocket.DefaultDialer,
		header:       make(http.Header),
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	ws, _, err := cfg.dialer.DialContext(ctx, url, cfg.header)
	if err != nil {
		return nil, fmt.Errorf("wsrpc: dial %s: %w", url, err)
	}
	ws.SetReadLimit(maxMessageSize)

	c := &Conn{
		ws:           ws,
		writeTimeout: cfg.writeTimeout,
		logger:       cfg.logger,
		pending:      make(map[string]chan responseFrame),
		done:         make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Transport returns a bifrost.Transport sending calls over c. Results are
// the raw JSON of the result, as with bifrost.NewHTTPTransport.
func (c *Conn) Transport() bifrost.Transport {
	return c.call
}

func (c *Conn) call(ctx context.Context, req *bifrost.Request) (any, error) {
	frame := requestFrame{ID: ulid.Make().String(), Path: req.Path}
	if arg := req.Argument; arg != nil && !bifrost.IsNoArgument(arg) {
		data, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("wsrpc: encode argument for %s: %w", req.Path, err)
		}
		frame.Argument = data
	}

	ch := make(chan responseFrame, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[frame.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, frame.ID)
		c.mu.Unlock()
	}()

	if err := c.write(frame); err != nil {
		c.fail(err)
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	case res := <-ch:
		if res.Error != nil {
			return nil, res.Error
		}
		if len(res.Result) == 0 {
			return nil, nil
		}
		return res.Result, nil
	}
}

func (c *Conn) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteJSON(v)
}

func (c *Conn) readLoop() {
	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		var res responseFrame
		if err := json.Unmarshal(message, &res); err != nil {
			c.logger.Warn("wsrpc: dropping malformed frame", slog.Any("error", err))
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[res.ID]
		c.mu.Unlock()
		if !ok {
			// The caller gave up on it.
			continue
		}
		select {
		case ch <- res:
		default:
		}
	}
}

// fail records the first error and wakes every pending call.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, net.ErrClosed) {
		c.logger.Debug("wsrpc: connection closed", slog.Any("error", err))
	}
}

// Close sends a close frame and closes the connection. Pending calls fail
// with ErrClosed.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	err := c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.fail(ErrClosed)
	return err
}

// Done is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}
