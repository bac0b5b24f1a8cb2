package bifrost

import (
	"context"
	"net/http"
)

// Context is the server-side context of a single call. It is passed to
// interceptors and, as a context.Context, to the endpoint itself.
//
// Use FromContext to recover it inside an endpoint:
//
//	func getAccount(ctx context.Context, req GetAccount) (*Account, error) {
//	    if c, ok := bifrost.FromContext(ctx); ok {
//	        c.HTTPWriter().Header().Set("Cache-Control", "no-store")
//	    }
//	    ...
//	}
type Context interface {
	context.Context

	// Path is the endpoint path being served.
	Path() Path

	// EndpointID is the path joined with "/", used in logs.
	EndpointID() string

	// HTTPRequest returns the request being served, or nil when the call
	// did not arrive over HTTP.
	HTTPRequest() *http.Request

	// HTTPWriter returns the response writer, or nil when the call did not
	// arrive over HTTP.
	HTTPWriter() http.ResponseWriter
}

type contextKey struct {
	name string
}

var callContextKey = &contextKey{"call"}

type callContext struct {
	context.Context
	path        Path
	writer      http.ResponseWriter
	req         *http.Request
	interceptor UnaryInterceptor
}

func (c *callContext) Path() Path                      { return c.path.Clone() }
func (c *callContext) EndpointID() string              { return c.path.String() }
func (c *callContext) HTTPRequest() *http.Request      { return c.req }
func (c *callContext) HTTPWriter() http.ResponseWriter { return c.writer }

func (c *callContext) Value(key any) any {
	if key == callContextKey {
		return c
	}
	return c.Context.Value(key)
}

// NewContext returns a Context for a call to path that did not arrive over
// HTTP, such as one served by package wsrpc. Leaf.Serve runs the given
// interceptors around the endpoint.
func NewContext(parent context.Context, path Path, interceptors ...UnaryInterceptor) Context {
	c := newContext(parent, path, nil, nil)
	c.interceptor = chainInterceptors(interceptors)
	return c
}

func newContext(parent context.Context, path Path, w http.ResponseWriter, r *http.Request) *callContext {
	if parent == nil {
		parent = context.Background()
	}
	return &callContext{Context: parent, path: path.Clone(), writer: w, req: r}
}

// FromContext returns the call Context that ctx derives from.
func FromContext(ctx context.Context) (Context, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(callContextKey).(*callContext)
	if !ok {
		return nil, false
	}
	return c, true
}

// SetHeader sets a response header on the HTTP response of the current
// call. It does nothing outside of an HTTP call.
func SetHeader(ctx context.Context, key, value string) {
	if c, ok := FromContext(ctx); ok && c.HTTPWriter() != nil {
		c.HTTPWriter().Header().Set(key, value)
	}
}
