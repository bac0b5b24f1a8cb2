// Package demo is a small accounts and posts API used by the bifrost CLI
// and by end-to-end tests.
package demo

import (
	"context"
	"log/slog"
)

type FooParam struct {
	Foo string `json:"foo" schema:"foo" validate:"required"`
}

type SomeValue struct {
	SomeValue bool `json:"someValue"`
}

type BlahParam struct {
	Blah string `json:"blah" schema:"blah"`
	Bar  int    `json:"bar" schema:"bar" validate:"gte=0"`
}

type Waddup struct {
	Waddup string `json:"waddup"`
}

// Accounts is the accounts branch of the API.
type Accounts struct {
	SomeCoolAccountsFn    func(ctx context.Context, req FooParam) (SomeValue, error)
	AnotherCoolAccountsFn func(ctx context.Context, req BlahParam) (Waddup, error)
}

// Posts is the posts branch of the API. Its operations take no argument and
// return nothing.
type Posts struct {
	SomeCoolPostsFn    func(ctx context.Context) error
	AnotherCoolPostsFn func(ctx context.Context) error
}

// API is the server-side endpoint tree.
type API struct {
	Version  string `bifrost:"-"`
	Accounts Accounts
	Posts    Posts
}

// New returns the API implementation. Post operations log through logger.
func New(logger *slog.Logger) API {
	if logger == nil {
		logger = slog.Default()
	}
	return API{
		Version: "1",
		Accounts: Accounts{
			SomeCoolAccountsFn: func(ctx context.Context, req FooParam) (SomeValue, error) {
				return SomeValue{SomeValue: true}, nil
			},
			AnotherCoolAccountsFn: func(ctx context.Context, req BlahParam) (Waddup, error) {
				return Waddup{Waddup: "dawg"}, nil
			},
		},
		Posts: Posts{
			SomeCoolPostsFn: func(ctx context.Context) error {
				logger.InfoContext(ctx, "some super secret something")
				return nil
			},
			AnotherCoolPostsFn: func(ctx context.Context) error {
				logger.InfoContext(ctx, "another super secret something")
				return nil
			},
		},
	}
}
