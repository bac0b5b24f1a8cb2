// Package querycache is an in-memory query collaborator for bifrost
// clients. It caches call results by key, serves fresh entries without
// refetching, paginates infinite queries and runs mutations with key
// invalidation.
//
//	qc, err := querycache.New(querycache.Options{StaleTime: time.Minute})
//	client, err := bifrost.NewClient(bifrost.Options{BaseURL: url, QueryClient: qc})
//	res, err := bifrost.CallAs[*querycache.QueryResult](ctx,
//		client.UseQuery().Field("accounts").Field("get"), req)
package querycache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/broady/bifrost"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

var validate = validator.New()

// Options configures a Client.
type Options struct {
	// Size bounds the number of entries. Zero means unbounded.
	Size int `validate:"gte=0"`

	// StaleTime is how long an entry is served without refetching, unless
	// a query sets its own. Zero means entries are always refetched.
	StaleTime time.Duration `validate:"gte=0"`

	// GCTime is how long an entry is kept at all. Zero keeps entries until
	// they are evicted by Size or invalidated.
	GCTime time.Duration `validate:"gte=0"`

	Logger *slog.Logger `validate:"-"`
}

// Client is a bifrost.QueryClient. It is safe for concurrent use. Concurrent
// fetches of the same key are not merged; the last one to complete wins.
type Client struct {
	entries   *expirable.LRU[string, *entry]
	staleTime time.Duration
	logger    *slog.Logger
}

var _ bifrost.QueryClient = (*Client)(nil)

type entry struct {
	key       bifrost.Key
	data      any
	updatedAt time.Time
}

// New returns a Client configured by opts.
func New(opts Options) (*Client, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, bifrost.DefaultErrorTransformer(err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		entries:   expirable.NewLRU[string, *entry](opts.Size, nil, opts.GCTime),
		staleTime: opts.StaleTime,
		logger:    logger,
	}, nil
}

// Write stores value under key.
func (c *Client) Write(key bifrost.Key, value any) {
	c.entries.Add(key.String(), &entry{key: key, data: value, updatedAt: time.Now()})
}

// Read returns the value stored under key.
func (c *Client) Read(key bifrost.Key) (any, bool) {
	e, ok := c.entries.Get(key.String())
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Invalidate removes every entry whose key starts with prefix and returns
// how many were removed. Keys derived with bifrost.NoArgument are prefixes
// of every key under their path.
func (c *Client) Invalidate(prefix bifrost.Key) int {
	n := 0
	for _, k := range c.entries.Keys() {
		e, ok := c.entries.Peek(k)
		if ok && e.key.HasPrefix(prefix) && c.entries.Remove(k) {
			n++
		}
	}
	if n > 0 {
		c.logger.Debug("invalidated cache entries", slog.String("prefix", prefix.String()), slog.Int("count", n))
	}
	return n
}

// Len returns the number of cached entries.
func (c *Client) Len() int {
	return c.entries.Len()
}

func (c *Client) lookup(key bifrost.Key) (*entry, bool) {
	return c.entries.Get(key.String())
}

func (c *Client) fresh(e *entry, staleTime time.Duration) bool {
	if staleTime == 0 {
		staleTime = c.staleTime
	}
	return staleTime > 0 && time.Since(e.updatedAt) < staleTime
}

// Status is the state of a query or mutation.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// QueryResult is the state of a query after Client.Query.
type QueryResult struct {
	Status Status
	Data   any
	Err    error

	// Stale is set when Data came from the cache without a successful
	// refetch.
	Stale     bool
	UpdatedAt time.Time
}

// Query serves opts.Key from the cache while it is fresh and fetches it
// otherwise. A failed fetch keeps any previously cached data in the result.
// The returned value is a *QueryResult.
func (c *Client) Query(ctx context.Context, opts bifrost.QueryOptions) any {
	cached, ok := c.lookup(opts.Key)
	if ok && c.fresh(cached, opts.StaleTime) {
		return &QueryResult{Status: StatusSuccess, Data: cached.data, UpdatedAt: cached.updatedAt}
	}

	res := &QueryResult{Status: StatusIdle}
	if ok {
		res.Status, res.Data, res.Stale, res.UpdatedAt = StatusSuccess, cached.data, true, cached.updatedAt
	}
	if opts.Disabled {
		return res
	}
	if opts.Fetch == nil {
		res.Status, res.Err = StatusError, bifrost.NewError(bifrost.CodeFailedPrecondition, "query has no fetch function")
		return res
	}

	data, err := opts.Fetch(ctx, bifrost.QueryContext{Key: opts.Key, Meta: opts.Meta})
	if err != nil {
		c.logger.DebugContext(ctx, "query failed", slog.String("key", opts.Key.String()), slog.Any("error", err))
		res.Status, res.Err = StatusError, err
		return res
	}
	c.Write(opts.Key, data)
	return &QueryResult{Status: StatusSuccess, Data: data, UpdatedAt: time.Now()}
}

// DataAs converts query data to T. Raw JSON as returned by the default HTTP
// transport is decoded; other values take a JSON round trip unless they
// already are a T.
func DataAs[T any](data any) (T, error) {
	var out T
	switch v := data.(type) {
	case nil:
		return out, nil
	case T:
		return v, nil
	case json.RawMessage:
		err := json.Unmarshal(v, &out)
		return out, err
	}
	b, err := json.Marshal(data)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}
