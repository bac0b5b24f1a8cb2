package bifrost

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// RouteRequest is a parsed request as seen by a RouteHandler.
type RouteRequest struct {
	// Path is the endpoint path the route serves.
	Path Path

	// Body is the parsed request body. A nil Body means the framework did
	// not parse one, which is a server configuration error.
	Body *Envelope

	// HTTP is the underlying request when there is one.
	HTTP *http.Request
}

// RouteHandler serves one mounted endpoint. res is the framework's response
// object; it must implement Sender or JSONResponder.
type RouteHandler func(ctx context.Context, req *RouteRequest, res any) error

// Poster is a server framework that can register POST routes.
// *App implements it; adapters for other frameworks can too.
type Poster interface {
	Post(path string, h RouteHandler)
}

// Sender is a response object that can emit a value.
type Sender interface {
	Send(v any) error
}

// JSONResponder is a response object that can emit a value as JSON.
type JSONResponder interface {
	JSON(v any) error
}

// routeDescriber is implemented by registrars that want the leaf behind a
// route, for listing and query-string invocation.
type routeDescriber interface {
	describeRoute(route string, ep Endpoint)
}

// Mount registers one POST route per endpoint of t, at "/" followed by the
// endpoint path joined with "/".
//
// app may be a Poster (such as *App), an *http.ServeMux or a gorilla
// *mux.Router. Anything else cannot serve the tree and Mount panics.
//
//	mux := http.NewServeMux()
//	bifrost.Mount(mux, tree) // POST /accounts/get, POST /posts/list, ...
func Mount(app any, t Tree) {
	endpoints := Flatten(t)

	switch a := app.(type) {
	case Poster:
		d, describes := a.(routeDescriber)
		for _, ep := range endpoints {
			route := ep.Path.Route()
			if describes {
				d.describeRoute(route, ep)
			}
			a.Post(route, NewRouteHandler(ep.Leaf))
		}
	case *http.ServeMux:
		for _, ep := range endpoints {
			a.Handle(http.MethodPost+" "+ep.Path.Route(), endpointHTTPHandler(ep))
		}
	case *mux.Router:
		for _, ep := range endpoints {
			a.Handle(ep.Path.Route(), endpointHTTPHandler(ep)).Methods(http.MethodPost)
		}
	default:
		panic(fmt.Sprintf("bifrost: cannot mount endpoints on %T: it does not register POST routes", app))
	}
}

// NewRouteHandler returns the RouteHandler serving leaf: it reads the
// argument from the request body, calls the leaf and sends the result.
func NewRouteHandler(leaf *Leaf) RouteHandler {
	return func(ctx context.Context, req *RouteRequest, res any) error {
		if req == nil || req.Body == nil {
			return ErrNoRequestBody
		}
		out, err := leaf.Serve(ctx, req.Body.Argument)
		if err != nil {
			return err
		}
		return respond(res, out)
	}
}

func respond(res any, v any) error {
	switch r := res.(type) {
	case Sender:
		return r.Send(v)
	case JSONResponder:
		return r.JSON(v)
	}
	return ErrNoResponder
}

// endpointHTTPHandler serves ep on a plain router, with default settings.
func endpointHTTPHandler(ep Endpoint) http.Handler {
	cfg := defaultRouteConfig(ep.Leaf)
	h := NewRouteHandler(ep.Leaf)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := newContext(r.Context(), ep.Path, w, r)
		serveRoute(ctx, w, r, ep.Path, h, cfg)
	})
}
