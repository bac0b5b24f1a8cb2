package querycache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/broady/bifrost"
)

// MutationHandle runs a deferred call. Nothing is sent until Mutate.
type MutationHandle struct {
	client *Client
	opts   bifrost.MutationOptions

	mu     sync.Mutex
	status Status
	data   any
	err    error
}

// Mutation returns a *MutationHandle for opts.
func (c *Client) Mutation(ctx context.Context, opts bifrost.MutationOptions) any {
	return &MutationHandle{client: c, opts: opts, status: StatusIdle}
}

// Mutate runs the mutation. On success the keys listed in
// MutationOptions.Invalidates are dropped from the cache before OnSuccess
// runs.
func (m *MutationHandle) Mutate(ctx context.Context) (any, error) {
	if m.opts.Fetch == nil {
		return nil, bifrost.NewError(bifrost.CodeFailedPrecondition, "mutation has no fetch function")
	}
	data, err := m.opts.Fetch(ctx)

	m.mu.Lock()
	if err != nil {
		m.status, m.data, m.err = StatusError, nil, err
	} else {
		m.status, m.data, m.err = StatusSuccess, data, nil
	}
	m.mu.Unlock()

	if err != nil {
		m.client.logger.DebugContext(ctx, "mutation failed", slog.String("key", m.opts.Key.String()), slog.Any("error", err))
		if m.opts.OnError != nil {
			m.opts.OnError(err)
		}
		return nil, err
	}
	for _, prefix := range m.opts.Invalidates {
		m.client.Invalidate(prefix)
	}
	if m.opts.OnSuccess != nil {
		m.opts.OnSuccess(data)
	}
	return data, nil
}

// Key is the key of the call the mutation was created from.
func (m *MutationHandle) Key() bifrost.Key {
	return m.opts.Key
}

// State returns the outcome of the last Mutate.
func (m *MutationHandle) State() (Status, any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.data, m.err
}
