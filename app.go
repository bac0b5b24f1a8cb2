package bifrost

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
)

// App serves endpoint trees over HTTP.
// It manages route registration, middleware, interceptors, and error handling.
// Use Handler() to get an http.Handler for use with http.ListenAndServe.
type App struct {
	mu                 sync.RWMutex
	routes             map[string]*appRoute
	order              []string
	errorTransformer   ErrorTransformer
	maskInternalErrors bool
	interceptors       []UnaryInterceptor
	middlewares        []func(http.Handler) http.Handler
	logger             *slog.Logger
	maxRequestBodySize uint64
}

type appRoute struct {
	path    Path
	handler RouteHandler
	leaf    *Leaf // nil for routes registered directly with Post
}

// RouteInfo describes a registered route.
type RouteInfo struct {
	Route    string `json:"route"`
	Path     Path   `json:"path"`
	Argument string `json:"argument,omitempty"`
	Result   string `json:"result,omitempty"`

	// Query reports whether the route also accepts GET with a query string.
	Query bool `json:"query,omitempty"`
}

// NewApp creates a new app with no routes and the default request body
// limit.
func NewApp() *App {
	return &App{
		routes:             make(map[string]*appRoute),
		maxRequestBodySize: defaultMaxRequestBodySize,
	}
}

// WithErrorTransformer adds a custom error transformer.
// It returns the app for chaining.
func (a *App) WithErrorTransformer(fn ErrorTransformer) *App {
	a.errorTransformer = fn
	return a
}

// WithMaskInternalErrors enables masking of internal error messages.
// This is useful in production to avoid leaking sensitive information.
// The original error is still available to interceptors and logging.
func (a *App) WithMaskInternalErrors() *App {
	a.maskInternalErrors = true
	return a
}

// WithUnaryInterceptor adds an interceptor around every endpoint.
// Interceptors execute in the order they were added.
func (a *App) WithUnaryInterceptor(i UnaryInterceptor) *App {
	a.interceptors = append(a.interceptors, i)
	return a
}

// WithMiddleware adds an HTTP middleware to wrap the app.
// Middleware is applied in the order added (first added is outermost).
func (a *App) WithMiddleware(mw func(http.Handler) http.Handler) *App {
	a.middlewares = append(a.middlewares, mw)
	return a
}

// WithLogger sets a custom logger for the app.
// If not set, slog.Default() will be used.
func (a *App) WithLogger(logger *slog.Logger) *App {
	a.logger = logger
	return a
}

// WithMaxRequestBodySize sets the maximum request body size.
// A value of 0 means no limit. Default is 1MB (1 << 20).
func (a *App) WithMaxRequestBodySize(size uint64) *App {
	a.maxRequestBodySize = size
	return a
}

func (a *App) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

// Mount registers every endpoint of t. See the package-level Mount.
func (a *App) Mount(t Tree) *App {
	Mount(a, t)
	return a
}

// Post registers h at the URL route path, split into segments on "/" only.
// If a route is already registered at path it is replaced and a warning is
// logged.
func (a *App) Post(path string, h RouteHandler) {
	p := parseRoute(path)
	route := p.Route()

	a.mu.Lock()
	defer a.mu.Unlock()

	if rt, exists := a.routes[route]; exists {
		if rt.handler != nil {
			a.log().Warn("duplicate route registration", slog.String("route", route))
		}
		rt.handler = h
		return
	}
	a.routes[route] = &appRoute{path: p, handler: h}
	a.order = append(a.order, route)
}

func (a *App) describeRoute(route string, ep Endpoint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rt, exists := a.routes[route]
	if !exists {
		rt = &appRoute{path: ep.Path.Clone()}
		a.routes[route] = rt
		a.order = append(a.order, route)
	}
	rt.leaf = ep.Leaf
}

// Routes lists the registered routes in registration order.
func (a *App) Routes() []RouteInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]RouteInfo, 0, len(a.order))
	for _, route := range a.order {
		rt := a.routes[route]
		info := RouteInfo{Route: route, Path: rt.path.Clone()}
		if rt.leaf != nil {
			if t := rt.leaf.ArgumentType(); t != nil {
				info.Argument = t.String()
			}
			if t := rt.leaf.ResultType(); t != nil {
				info.Result = t.String()
			}
			info.Query = rt.leaf.queryable()
		}
		out = append(out, info)
	}
	return out
}

// Handler returns an http.Handler for use with http.ListenAndServe or other
// HTTP servers. The returned handler includes all configured middleware.
//
// Example:
//
//	app := bifrost.NewApp().WithMiddleware(cors).Mount(tree)
//	http.ListenAndServe(":8080", app.Handler())
func (a *App) Handler() http.Handler {
	var h http.Handler = http.HandlerFunc(a.serveHTTP)
	// Apply middleware in reverse order so first added is outermost
	for i := len(a.middlewares) - 1; i >= 0; i-- {
		h = a.middlewares[i](h)
	}
	return h
}

func (a *App) serveHTTP(w http.ResponseWriter, req *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			a.log().Error("PANIC recovered",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			writeError(w, NewError(CodeInternal, fmt.Sprintf("internal server error (panic): %v", rec)), a.logger)
		}
	}()

	route := PathSeparator + strings.Trim(req.URL.Path, PathSeparator)

	a.mu.RLock()
	rt, ok := a.routes[route]
	a.mu.RUnlock()

	if !ok || rt.handler == nil {
		writeError(w, Errorf(CodeNotFound, "route %s not found", route), a.logger)
		return
	}

	switch {
	case req.Method == http.MethodPost:
	case req.Method == http.MethodGet && rt.leaf.queryable():
	default:
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, Errorf(CodeMethodNotAllowed, "method %s not allowed, expected POST", req.Method), a.logger)
		return
	}

	ctx := newContext(req.Context(), rt.path, w, req)
	ctx.interceptor = chainInterceptors(a.interceptors)

	serveRoute(ctx, w, req, rt.path, rt.handler, &routeConfig{
		leaf:               rt.leaf,
		logger:             a.log(),
		errorTransformer:   a.errorTransformer,
		maskInternalErrors: a.maskInternalErrors,
		maxRequestBodySize: a.maxRequestBodySize,
	})
}
