package bifrost

import (
	"context"
	"time"
)

// Cache is the minimal cache collaborator: the prefetch and fetch variants
// write call results into it under the derived Key.
type Cache interface {
	Write(key Key, value any)
}

// QueryClient is the reactive-query collaborator used by the hook-style
// variants. Its results are opaque to bifrost; the querycache package
// provides an implementation.
type QueryClient interface {
	Cache

	// Query returns the state of the query identified by opts.Key, fetching
	// with opts.Fetch when the collaborator decides to.
	Query(ctx context.Context, opts QueryOptions) any

	// InfiniteQuery is Query for paginated endpoints.
	InfiniteQuery(ctx context.Context, opts InfiniteQueryOptions) any

	// Mutation returns a handle that runs opts.Fetch when triggered.
	Mutation(ctx context.Context, opts MutationOptions) any
}

// QueryOptions describes a single query.
type QueryOptions struct {
	// Key identifies the cache entry.
	Key Key

	// Fetch loads the value. It receives the key and metadata the
	// collaborator is querying with.
	Fetch func(ctx context.Context, qc QueryContext) (any, error)

	// StaleTime is how long a fetched value counts as fresh. Zero uses the
	// collaborator's default.
	StaleTime time.Duration

	// Disabled stops the collaborator from fetching; only cached data is
	// returned.
	Disabled bool

	// Meta is passed through to Fetch.
	Meta map[string]any
}

// QueryContext is what a collaborator hands back to a fetch closure.
type QueryContext struct {
	Key       Key
	PageParam any
	Meta      map[string]any
}

// InfiniteQueryOptions describes a paginated query.
type InfiniteQueryOptions struct {
	Key   Key
	Fetch func(ctx context.Context, qc QueryContext) (any, error)

	// InitialPageParam is the page param of the first page.
	InitialPageParam any

	// NextPageParam derives the param of the page after lastPage. Returning
	// false means there are no more pages.
	NextPageParam func(lastPage any, allPages []any) (any, bool)

	StaleTime time.Duration
	Disabled  bool
	Meta      map[string]any
}

// MutationOptions describes a deferred, side-effecting call.
type MutationOptions struct {
	Key Key

	// Fetch runs the mutation. The argument was captured when the mutation
	// was created.
	Fetch func(ctx context.Context) (any, error)

	// OnSuccess runs after Fetch succeeds.
	OnSuccess func(result any)

	// OnError runs after Fetch fails.
	OnError func(err error)

	// Invalidates lists key prefixes dropped from the cache after success.
	Invalidates []Key

	Meta map[string]any
}
