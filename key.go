package bifrost

import (
	"encoding/json"

	"github.com/broady/bifrost/internal/canonical"
)

// Key identifies a cache entry: the endpoint path followed by the canonical
// serialization of the call argument.
type Key []string

type noArgument struct{}

// NoArgument marks a call made without an argument. Keys derived for it
// carry only the path, which makes them prefixes of every key under that
// path:
//
//	keys := bifrost.Build(bifrost.Keys())
//	keys.Field("accounts").Call(ctx, bifrost.NoArgument) // Key{"accounts"}
var NoArgument any = noArgument{}

// IsNoArgument reports whether v is the NoArgument sentinel.
func IsNoArgument(v any) bool {
	_, ok := v.(noArgument)
	return ok
}

// Empty is the argument or result of an operation that has nothing to say.
// It encodes as {}.
//
// Example:
//
//	func ListPosts(ctx context.Context, _ bifrost.Empty) ([]*Post, error)
type Empty struct{}

// DeriveKey returns the cache key for a call to path with argument.
//
// Arguments that are structurally equal produce equal keys whatever the
// order their map keys were inserted in. Cyclic values are rendered with a
// fixed marker instead of recursing.
func DeriveKey(path Path, argument any) Key {
	key := make(Key, len(path), len(path)+1)
	copy(key, path)
	if IsNoArgument(argument) {
		return key
	}
	return append(key, canonical.Stringify(argument))
}

// Equal reports whether k and other hold the same elements in order.
func (k Key) Equal(other Key) bool {
	return Path(k).Equal(Path(other))
}

// HasPrefix reports whether prefix is a leading subsequence of k.
func (k Key) HasPrefix(prefix Key) bool {
	return Path(k).HasPrefix(Path(prefix))
}

// String returns an unambiguous single-string form of k, suitable as a map key.
func (k Key) String() string {
	b, _ := json.Marshal([]string(k))
	return string(b)
}
