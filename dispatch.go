package bifrost

import (
	"context"
	"log/slog"
	"maps"
)

// Invoke returns a dispatcher that forwards every call to t and returns its
// result and error unchanged.
func Invoke(t Transport) Dispatcher {
	return func(ctx context.Context, req *Request) (any, error) {
		if t == nil {
			return nil, ErrNoTransport
		}
		return t(ctx, req)
	}
}

// Fetch is Invoke that also writes successful results into cache when one is
// configured. A nil cache simply disables the write.
func Fetch(t Transport, cache Cache) Dispatcher {
	invoke := Invoke(t)
	return func(ctx context.Context, req *Request) (any, error) {
		res, err := invoke(ctx, req)
		if err == nil && cache != nil {
			cache.Write(DeriveKey(req.Path, req.Argument), res)
		}
		return res, err
	}
}

// Prefetch returns a dispatcher that calls t and writes the result into
// cache under the derived key.
//
// Without a cache the call is pointless: ErrNoCache is logged and an empty
// result is returned without touching the transport.
func Prefetch(t Transport, cache Cache, logger *slog.Logger) Dispatcher {
	invoke := Invoke(t)
	return func(ctx context.Context, req *Request) (any, error) {
		if cache == nil {
			reportMissingCache(ctx, logger, "prefetch", req.Path)
			return nil, nil
		}
		res, err := invoke(ctx, req)
		if err != nil {
			return nil, err
		}
		cache.Write(DeriveKey(req.Path, req.Argument), res)
		return res, nil
	}
}

// Keys returns a dispatcher that never touches the network. Calls return
// the Key derived from the path and argument.
func Keys() Dispatcher {
	return func(_ context.Context, req *Request) (any, error) {
		return DeriveKey(req.Path, req.Argument), nil
	}
}

// Query returns a dispatcher that hands each call to qc.Query, with the
// derived key as identity and a fetch closure over the call.
// WithQueryOptions mutators are applied last.
func Query(t Transport, qc QueryClient, logger *slog.Logger) Dispatcher {
	return func(ctx context.Context, req *Request) (any, error) {
		if qc == nil {
			reportMissingCache(ctx, logger, "query", req.Path)
			return nil, nil
		}
		cfg := newCallConfig(req.options)
		opts := QueryOptions{
			Key:   DeriveKey(req.Path, req.Argument),
			Fetch: fetchClosure(t, req),
			Meta:  maps.Clone(req.Meta),
		}
		for _, fn := range cfg.query {
			fn(&opts)
		}
		return qc.Query(ctx, opts), nil
	}
}

// InfiniteQuery is Query for paginated endpoints. The page param chosen by
// the collaborator reaches the transport as Request.PageParam.
func InfiniteQuery(t Transport, qc QueryClient, logger *slog.Logger) Dispatcher {
	return func(ctx context.Context, req *Request) (any, error) {
		if qc == nil {
			reportMissingCache(ctx, logger, "infinite query", req.Path)
			return nil, nil
		}
		cfg := newCallConfig(req.options)
		opts := InfiniteQueryOptions{
			Key:   DeriveKey(req.Path, req.Argument),
			Fetch: fetchClosure(t, req),
			Meta:  maps.Clone(req.Meta),
		}
		for _, fn := range cfg.infinite {
			fn(&opts)
		}
		return qc.InfiniteQuery(ctx, opts), nil
	}
}

// Mutation returns a dispatcher that hands each call to qc.Mutation. The
// fetch closure captures the argument of this call; the mutation itself only
// runs when the collaborator's handle is triggered.
func Mutation(t Transport, qc QueryClient, logger *slog.Logger) Dispatcher {
	return func(ctx context.Context, req *Request) (any, error) {
		if qc == nil {
			reportMissingCache(ctx, logger, "mutation", req.Path)
			return nil, nil
		}
		cfg := newCallConfig(req.options)
		key := DeriveKey(req.Path, req.Argument)
		invoke := Invoke(t)
		opts := MutationOptions{
			Key: key,
			Fetch: func(ctx context.Context) (any, error) {
				call := req.clone()
				call.Key = key
				return invoke(ctx, call)
			},
			Meta: maps.Clone(req.Meta),
		}
		for _, fn := range cfg.mutation {
			fn(&opts)
		}
		return qc.Mutation(ctx, opts), nil
	}
}

// fetchClosure returns the on-demand fetch a query collaborator calls.
// Everything the collaborator supplies is forwarded opaquely.
func fetchClosure(t Transport, req *Request) func(context.Context, QueryContext) (any, error) {
	invoke := Invoke(t)
	return func(ctx context.Context, qc QueryContext) (any, error) {
		call := req.clone()
		call.Key = qc.Key
		call.PageParam = qc.PageParam
		if len(qc.Meta) > 0 {
			if call.Meta == nil {
				call.Meta = make(map[string]any, len(qc.Meta))
			}
			maps.Copy(call.Meta, qc.Meta)
		}
		return invoke(ctx, call)
	}
}

func reportMissingCache(ctx context.Context, logger *slog.Logger, variant string, path Path) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(ctx, "cache-dependent call without a query client",
		slog.String("variant", variant),
		slog.String("path", path.String()),
		slog.Any("error", ErrNoCache))
}
