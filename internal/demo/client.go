package demo

import (
	"context"

	"github.com/broady/bifrost"
)

// Client mirrors API for use with bifrost.Bind.
type Client struct {
	Accounts struct {
		SomeCoolAccountsFn    func(ctx context.Context, req FooParam, opts ...bifrost.CallOption) (SomeValue, error)
		AnotherCoolAccountsFn func(ctx context.Context, req BlahParam, opts ...bifrost.CallOption) (Waddup, error)
	}
	Posts struct {
		SomeCoolPostsFn    func(ctx context.Context, opts ...bifrost.CallOption) error
		AnotherCoolPostsFn func(ctx context.Context, opts ...bifrost.CallOption) error
	}
}

// Keys mirrors API for cache-key derivation.
type Keys struct {
	Accounts struct {
		SomeCoolAccountsFn    func(req FooParam) (bifrost.Key, error)
		AnotherCoolAccountsFn func(req BlahParam) (bifrost.Key, error)
	}
	Posts struct {
		SomeCoolPostsFn    func() (bifrost.Key, error)
		AnotherCoolPostsFn func() (bifrost.Key, error)
	}
}
