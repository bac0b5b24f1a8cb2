package wsrpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/broady/bifrost"
	"github.com/gorilla/websocket"
)

type handler struct {
	routes       map[string]bifrost.Endpoint
	upgrader     websocket.Upgrader
	interceptors []bifrost.UnaryInterceptor
	transformer  bifrost.ErrorTransformer
	writeTimeout time.Duration
	logger       *slog.Logger
}

// HandlerOption configures Handler.
type HandlerOption func(*handler)

// WithCheckOrigin sets the origin policy of the upgrade. The default
// accepts same-origin requests only.
func WithCheckOrigin(fn func(r *http.Request) bool) HandlerOption {
	return func(h *handler) { h.upgrader.CheckOrigin = fn }
}

// WithInterceptor adds an interceptor around every call.
func WithInterceptor(i bifrost.UnaryInterceptor) HandlerOption {
	return func(h *handler) { h.interceptors = append(h.interceptors, i) }
}

// WithErrorTransformer maps endpoint errors before they are sent.
func WithErrorTransformer(fn bifrost.ErrorTransformer) HandlerOption {
	return func(h *handler) { h.transformer = fn }
}

// WithServerLogger sets the logger. Default is slog.Default().
func WithServerLogger(l *slog.Logger) HandlerOption {
	return func(h *handler) { h.logger = l }
}

// Handler serves the endpoints of t over WebSocket connections.
//
//	http.Handle("/ws", wsrpc.Handler(tree))
func Handler(t bifrost.Tree, opts ...HandlerOption) http.Handler {
	h := &handler{
		routes:       make(map[string]bifrost.Endpoint),
		writeTimeout: 10 * time.Second,
	}
	for _, ep := range bifrost.Flatten(t) {
		h.routes[bifrost.Key(ep.Path).String()] = ep
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.logger.DebugContext(r.Context(), "wsrpc: upgrade failed", slog.Any("error", err))
		return
	}
	defer ws.Close()
	ws.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var (
		wg      sync.WaitGroup
		writeMu sync.Mutex
	)
	send := func(res responseFrame) {
		writeMu.Lock()
		defer writeMu.Unlock()
		ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := ws.WriteJSON(res); err != nil {
			h.logger.DebugContext(ctx, "wsrpc: write failed", slog.String("id", res.ID), slog.Any("error", err))
			cancel()
		}
	}

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.DebugContext(ctx, "wsrpc: read failed", slog.Any("error", err))
			}
			break
		}
		var req requestFrame
		if err := json.Unmarshal(message, &req); err != nil {
			send(responseFrame{Error: bifrost.Errorf(bifrost.CodeInvalidArgument, "malformed frame: %v", err)})
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			send(h.dispatch(ctx, req))
		}()
	}

	cancel()
	wg.Wait()
}

func (h *handler) dispatch(ctx context.Context, req requestFrame) (res responseFrame) {
	res.ID = req.ID
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.ErrorContext(ctx, "PANIC recovered", slog.Any("panic", rec), slog.String("endpoint", req.Path.String()))
			res = responseFrame{ID: req.ID, Error: bifrost.Errorf(bifrost.CodeInternal, "internal server error (panic): %v", rec)}
		}
	}()

	ep, ok := h.routes[bifrost.Key(req.Path).String()]
	if !ok {
		res.Error = bifrost.Errorf(bifrost.CodeNotFound, "route %s not found", req.Path.Route())
		return res
	}

	out, err := ep.Leaf.Serve(bifrost.NewContext(ctx, ep.Path, h.interceptors...), req.Argument)
	if err != nil {
		res.Error = h.transform(err)
		return res
	}
	data, err := json.Marshal(out)
	if err != nil {
		res.Error = bifrost.Errorf(bifrost.CodeInternal, "failed to encode result: %v", err)
		return res
	}
	res.Result = data
	return res
}

func (h *handler) transform(err error) *bifrost.Error {
	var svcErr *bifrost.Error
	if h.transformer != nil {
		svcErr = h.transformer(err)
	}
	if svcErr == nil {
		svcErr = bifrost.DefaultErrorTransformer(err)
	}
	return svcErr
}
