package bifrost

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var optionsValidator = validator.New()

// Options configures a Client.
type Options struct {
	// BaseURL is where the server mounted its endpoints. It is required
	// unless Transport is set.
	BaseURL string `validate:"omitempty,url"`

	// Transport replaces the default HTTP transport.
	Transport Transport `validate:"-"`

	// HTTPClient is used by the default transport.
	HTTPClient *http.Client `validate:"-"`

	// Header is added to every request of the default transport.
	Header http.Header `validate:"-"`

	// QueryClient backs the hook-style roots. It also serves as the Cache
	// when Cache is nil.
	QueryClient QueryClient `validate:"-"`

	// Cache receives the results of Fetch and Prefetch calls.
	Cache Cache `validate:"-"`

	// Logger reports configuration problems. Default is slog.Default().
	Logger *slog.Logger `validate:"-"`
}

// Client is one SDK instance. It owns its transport and its collaborators;
// two clients never share state.
//
//	client, err := bifrost.NewClient(bifrost.Options{BaseURL: "http://localhost:8000"})
//	var api demo.Client
//	if err := client.Bind(&api); err != nil { ... }
//	res, err := api.Accounts.SomeCoolAccountsFn(ctx, demo.FooParam{Foo: "x"})
type Client struct {
	transport Transport
	cache     Cache
	queries   QueryClient
	logger    *slog.Logger
}

// NewClient validates opts and returns a Client.
func NewClient(opts Options) (*Client, error) {
	if err := optionsValidator.Struct(opts); err != nil {
		return nil, DefaultErrorTransformer(err)
	}
	if opts.Transport == nil && opts.BaseURL == "" {
		return nil, ErrNoTransport
	}

	c := &Client{
		transport: opts.Transport,
		cache:     opts.Cache,
		queries:   opts.QueryClient,
		logger:    opts.Logger,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.cache == nil && c.queries != nil {
		c.cache = c.queries
	}
	if c.transport == nil {
		httpOpts := []HTTPTransportOption{WithHTTPClient(opts.HTTPClient)}
		for k, vs := range opts.Header {
			for _, v := range vs {
				httpOpts = append(httpOpts, WithHeader(k, v))
			}
		}
		c.transport = NewHTTPTransport(opts.BaseURL, httpOpts...)
	}
	return c, nil
}

// Transport returns the transport calls are sent through.
func (c *Client) Transport() Transport {
	return c.transport
}

// Fetch returns the root for direct calls. Results are also written to the
// cache when one is configured.
func (c *Client) Fetch() Node {
	return Build(Fetch(c.transport, c.cache))
}

// Invoke returns the root for direct calls that never touch the cache.
func (c *Client) Invoke() Node {
	return Build(Invoke(c.transport))
}

// Prefetch returns the root for calls whose only purpose is to fill the
// cache.
func (c *Client) Prefetch() Node {
	return Build(Prefetch(c.transport, c.cache, c.logger))
}

// Keys returns the root for cache-key derivation.
func (c *Client) Keys() Node {
	return Build(Keys())
}

// UseQuery returns the root for query hooks.
func (c *Client) UseQuery() Node {
	return Build(Query(c.transport, c.queries, c.logger))
}

// UseInfiniteQuery returns the root for paginated query hooks.
func (c *Client) UseInfiniteQuery() Node {
	return Build(InfiniteQuery(c.transport, c.queries, c.logger))
}

// UseMutation returns the root for mutation hooks.
func (c *Client) UseMutation() Node {
	return Build(Mutation(c.transport, c.queries, c.logger))
}

// Bind fills the func fields of shape so they call through Fetch.
// See the package-level Bind.
func (c *Client) Bind(shape any) error {
	return Bind(shape, c.Fetch())
}
