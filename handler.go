package bifrost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

var (
	validate      = validator.New()
	schemaDecoder = schema.NewDecoder()
)

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
}

// defaultMaxRequestBodySize applies when the app does not override it.
const defaultMaxRequestBodySize = 1 << 20

// Serve decodes arg into the argument type of the leaf, validates it and
// calls the leaf through the interceptors of the call Context in ctx, if any.
//
// Struct arguments are validated with their `validate` tags. A failed
// validation is an invalid_argument error and the leaf is not called.
func (l *Leaf) Serve(ctx context.Context, arg any) (any, error) {
	decoded, err := l.decode(arg)
	if err != nil {
		return nil, err
	}
	final := func(ctx context.Context, arg any) (any, error) {
		return l.fn(ctx, arg)
	}

	c, ok := ctx.Value(callContextKey).(*callContext)
	if !ok || c.interceptor == nil {
		return final(ctx, decoded)
	}
	var callCtx Context = c
	if ctx != context.Context(c) {
		callCtx = rebase(c, ctx)
	}
	return c.interceptor(callCtx, decoded, final)
}

func (l *Leaf) decode(arg any) (any, error) {
	v, err := coerce(arg, l.argType)
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "failed to decode argument: %v", err)
	}
	if err := validateArgument(v); err != nil {
		return nil, DefaultErrorTransformer(err)
	}
	return v.Interface(), nil
}

func validateArgument(v reflect.Value) error {
	t := v.Type()
	if t.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(v.Interface())
}

// queryable reports whether the leaf can be invoked with a GET query string.
func (l *Leaf) queryable() bool {
	if l == nil {
		return false
	}
	t := l.argType
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// routeConfig is the HTTP behavior shared by App and the plain mux adapters.
type routeConfig struct {
	leaf               *Leaf
	logger             *slog.Logger
	errorTransformer   ErrorTransformer
	maskInternalErrors bool
	maxRequestBodySize uint64
}

func defaultRouteConfig(leaf *Leaf) *routeConfig {
	return &routeConfig{
		leaf:               leaf,
		logger:             slog.Default(),
		maxRequestBodySize: defaultMaxRequestBodySize,
	}
}

// serveRoute parses the request into a RouteRequest, runs h and writes
// whatever it sends or the error it returns.
func serveRoute(ctx context.Context, w http.ResponseWriter, r *http.Request, path Path, h RouteHandler, cfg *routeConfig) {
	env, err := cfg.readEnvelope(w, r)
	if err != nil {
		cfg.handleError(ctx, w, err)
		return
	}

	res := &httpResponder{w: w, logger: cfg.logger}
	err = h(ctx, &RouteRequest{Path: path, Body: env, HTTP: r}, res)
	if err != nil {
		if res.written {
			cfg.logger.ErrorContext(ctx, "route failed after sending a response",
				slog.String("endpoint", path.String()),
				slog.Any("error", err))
			return
		}
		cfg.handleError(ctx, w, err)
		return
	}
	if !res.written {
		w.WriteHeader(http.StatusNoContent)
	}
}

// readEnvelope returns the parsed body, or nil when the request has none.
// GET requests on struct-argument leaves are read from the query string.
func (cfg *routeConfig) readEnvelope(w http.ResponseWriter, r *http.Request) (*Envelope, error) {
	if r.Method == http.MethodGet && cfg.leaf.queryable() {
		return queryEnvelope(r, cfg.leaf)
	}
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	body := r.Body
	if cfg.maxRequestBodySize > 0 {
		body = http.MaxBytesReader(w, r.Body, int64(cfg.maxRequestBodySize))
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, Errorf(CodeResourceExhausted, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, Errorf(CodeInvalidArgument, "failed to read body: %v", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, Errorf(CodeInvalidArgument, "failed to decode body: %v", err)
	}
	return &env, nil
}

func queryEnvelope(r *http.Request, leaf *Leaf) (*Envelope, error) {
	t := leaf.argType
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	dst := reflect.New(t)
	if err := schemaDecoder.Decode(dst.Interface(), r.URL.Query()); err != nil {
		return nil, Errorf(CodeInvalidArgument, "failed to decode query: %v", err)
	}
	data, err := json.Marshal(dst.Interface())
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "failed to encode query: %v", err)
	}
	return &Envelope{Argument: data}, nil
}

func (cfg *routeConfig) handleError(ctx context.Context, w http.ResponseWriter, err error) {
	var svcErr *Error
	if cfg.errorTransformer != nil {
		svcErr = cfg.errorTransformer(err)
	}
	if svcErr == nil {
		svcErr = DefaultErrorTransformer(err)
	}
	if svcErr.Code == CodeInternal {
		cfg.logger.ErrorContext(ctx, "internal error", slog.Any("error", err))
		if cfg.maskInternalErrors {
			svcErr = NewError(CodeInternal, "internal server error")
		}
	}
	writeError(w, svcErr, cfg.logger)
}

// httpResponder is the Sender handed to route handlers served over HTTP.
type httpResponder struct {
	w       http.ResponseWriter
	logger  *slog.Logger
	written bool
}

func (r *httpResponder) Send(v any) error {
	if r.written {
		return NewError(CodeInternal, "response already sent")
	}
	r.written = true
	r.w.Header().Set("Content-Type", "application/json")
	r.w.WriteHeader(http.StatusOK)
	if err := encodeResponse(r.w, v); err != nil {
		// Headers already sent, nothing we can do. Log for debugging.
		r.logger.Error("failed to encode response", slog.Any("error", err))
	}
	return nil
}
