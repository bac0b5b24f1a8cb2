package querycache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/broady/bifrost"
)

// Pages is what an infinite query stores under its key.
type Pages struct {
	Pages      []any
	PageParams []any
}

// InfiniteQueryResult is the state of a paginated query. FetchNextPage
// loads further pages and updates the cache entry.
type InfiniteQueryResult struct {
	client *Client
	opts   bifrost.InfiniteQueryOptions

	mu          sync.Mutex
	status      Status
	pages       Pages
	err         error
	hasNextPage bool
	nextParam   any
}

// InfiniteQuery serves the pages stored under opts.Key while they are fresh
// and fetches the first page otherwise. The returned value is an
// *InfiniteQueryResult.
func (c *Client) InfiniteQuery(ctx context.Context, opts bifrost.InfiniteQueryOptions) any {
	r := &InfiniteQueryResult{client: c, opts: opts, status: StatusIdle}

	if cached, ok := c.lookup(opts.Key); ok {
		if pages, ok := cached.data.(Pages); ok {
			r.status, r.pages = StatusSuccess, pages
			r.updateNext()
			if c.fresh(cached, opts.StaleTime) || opts.Disabled {
				return r
			}
		}
	}
	if opts.Disabled {
		return r
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = Pages{}
	r.fetchLocked(ctx, opts.InitialPageParam)
	return r
}

// FetchNextPage loads the page after the last one. It does nothing when
// there is no next page.
func (r *InfiniteQueryResult) FetchNextPage(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasNextPage {
		return nil
	}
	return r.fetchLocked(ctx, r.nextParam)
}

func (r *InfiniteQueryResult) fetchLocked(ctx context.Context, param any) error {
	if r.opts.Fetch == nil {
		r.status, r.err = StatusError, bifrost.NewError(bifrost.CodeFailedPrecondition, "query has no fetch function")
		return r.err
	}
	page, err := r.opts.Fetch(ctx, bifrost.QueryContext{Key: r.opts.Key, PageParam: param, Meta: r.opts.Meta})
	if err != nil {
		r.status, r.err = StatusError, err
		return err
	}
	r.status, r.err = StatusSuccess, nil
	r.pages = Pages{
		Pages:      append(slices.Clip(r.pages.Pages), page),
		PageParams: append(slices.Clip(r.pages.PageParams), param),
	}
	r.updateNext()
	r.client.entries.Add(r.opts.Key.String(), &entry{key: r.opts.Key, data: r.pages, updatedAt: time.Now()})
	return nil
}

func (r *InfiniteQueryResult) updateNext() {
	r.hasNextPage, r.nextParam = false, nil
	if r.opts.NextPageParam == nil || len(r.pages.Pages) == 0 {
		return
	}
	last := r.pages.Pages[len(r.pages.Pages)-1]
	r.nextParam, r.hasNextPage = r.opts.NextPageParam(last, slices.Clone(r.pages.Pages))
}

// Status returns the state of the last fetch.
func (r *InfiniteQueryResult) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Err returns the error of the last fetch.
func (r *InfiniteQueryResult) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Pages returns a copy of the pages loaded so far and their params.
func (r *InfiniteQueryResult) Pages() Pages {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Pages{
		Pages:      slices.Clone(r.pages.Pages),
		PageParams: slices.Clone(r.pages.PageParams),
	}
}

// HasNextPage reports whether FetchNextPage would load another page.
func (r *InfiniteQueryResult) HasNextPage() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasNextPage
}
