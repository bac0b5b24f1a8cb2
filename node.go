package bifrost

import (
	"context"
	"maps"
)

// Dispatcher is the terminal behavior of a Node tree. Build a tree with
// different dispatchers to get an invoker, a prefetcher, a key deriver or a
// query hook; the path accumulation is identical in every case.
type Dispatcher func(ctx context.Context, req *Request) (any, error)

// Request is a single call as seen by a Dispatcher or a Transport.
type Request struct {
	// Path is the accumulated field path, root first.
	Path Path

	// Argument is the value passed to the terminal call, or NoArgument.
	Argument any

	// Key is the cache key the call is stored under. It is only set when the
	// call originates from a query or mutation fetch closure.
	Key Key

	// PageParam is the continuation value supplied by an infinite query.
	// It is opaque to bifrost.
	PageParam any

	// Meta carries caller-supplied values (see WithMeta) and collaborator
	// metadata. It is opaque to bifrost.
	Meta map[string]any

	options []CallOption
}

// Options returns the call options the terminal call was made with.
func (r *Request) Options() []CallOption {
	return r.options
}

// clone returns a shallow copy of r with an independent Meta map.
func (r *Request) clone() *Request {
	out := *r
	out.Path = r.Path.Clone()
	if r.Meta != nil {
		out.Meta = maps.Clone(r.Meta)
	}
	return &out
}

// CallOption configures a single terminal call.
type CallOption func(*callConfig)

type callConfig struct {
	meta     map[string]any
	query    []func(*QueryOptions)
	infinite []func(*InfiniteQueryOptions)
	mutation []func(*MutationOptions)
}

func newCallConfig(opts []CallOption) *callConfig {
	cfg := &callConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithMeta attaches an opaque key/value to the call. Transports and query
// collaborators see it in Request.Meta.
func WithMeta(key string, value any) CallOption {
	return func(c *callConfig) {
		if c.meta == nil {
			c.meta = make(map[string]any)
		}
		c.meta[key] = value
	}
}

// WithQueryOptions adjusts the options handed to QueryClient.Query.
// Mutators run after the derived defaults, so anything they set wins.
func WithQueryOptions(fn func(*QueryOptions)) CallOption {
	return func(c *callConfig) {
		c.query = append(c.query, fn)
	}
}

// WithInfiniteQueryOptions adjusts the options handed to
// QueryClient.InfiniteQuery. Mutators run after the derived defaults.
func WithInfiniteQueryOptions(fn func(*InfiniteQueryOptions)) CallOption {
	return func(c *callConfig) {
		c.infinite = append(c.infinite, fn)
	}
}

// WithMutationOptions adjusts the options handed to QueryClient.Mutation.
// Mutators run after the derived defaults.
func WithMutationOptions(fn func(*MutationOptions)) CallOption {
	return func(c *callConfig) {
		c.mutation = append(c.mutation, fn)
	}
}

// Node is a virtual position in an endpoint tree. It holds the path
// accumulated so far and the dispatcher of the tree it was built from.
//
// Nodes are values: Field never mutates its receiver, and any name is
// accepted. Whether the path exists is decided by whoever finally handles the
// call (typically the server, answering not_found).
//
//	root := bifrost.Build(bifrost.Invoke(transport))
//	res, err := root.Field("accounts").Field("get").Call(ctx, GetAccount{ID: 1})
type Node struct {
	path     Path
	dispatch Dispatcher
}

// Build returns the root node of a virtual tree whose terminal calls are
// handled by d.
func Build(d Dispatcher) Node {
	return Node{path: Path{}, dispatch: d}
}

// Field returns the child node name.
func (n Node) Field(name string) Node {
	return Node{path: n.path.Append(name), dispatch: n.dispatch}
}

// At returns the node reached by following each segment of p in order.
func (n Node) At(p Path) Node {
	return Node{path: n.path.Append(p...), dispatch: n.dispatch}
}

// Path returns a copy of the accumulated path.
func (n Node) Path() Path {
	return n.path.Clone()
}

// Call invokes the dispatcher exactly once with the accumulated path and
// argument. What comes back depends entirely on the dispatcher.
func (n Node) Call(ctx context.Context, argument any, opts ...CallOption) (any, error) {
	if n.dispatch == nil {
		return nil, ErrNoDispatcher
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := newCallConfig(opts)
	req := &Request{
		Path:     n.path.Clone(),
		Argument: argument,
		Meta:     cfg.meta,
		options:  opts,
	}
	return n.dispatch(ctx, req)
}
