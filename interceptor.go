package bifrost

import (
	"context"
)

// HandlerFunc represents the next handler in an interceptor chain.
// It is passed to [UnaryInterceptor] functions to invoke the next interceptor
// or the endpoint itself.
type HandlerFunc func(ctx context.Context, arg any) (res any, err error)

// UnaryInterceptor wraps the execution of an endpoint.
//
//	func timing(ctx bifrost.Context, arg any, next bifrost.HandlerFunc) (any, error) {
//	    start := time.Now()
//	    res, err := next(ctx, arg)
//	    log.Printf("%s took %v", ctx.EndpointID(), time.Since(start))
//	    return res, err
//	}
//
// Interceptors can:
//   - inspect or replace the argument before calling next
//   - inspect or replace the result after calling next
//   - short-circuit by returning an error without calling next
//   - derive the context with context.WithValue before calling next
//
// arg is the decoded argument of the endpoint.
type UnaryInterceptor func(ctx Context, arg any, next HandlerFunc) (res any, err error)

// chainInterceptors combines multiple interceptors into a single one.
// The first interceptor in the slice is the outer-most one (runs first).
func chainInterceptors(interceptors []UnaryInterceptor) UnaryInterceptor {
	if len(interceptors) == 0 {
		return nil
	}
	if len(interceptors) == 1 {
		return interceptors[0]
	}
	return func(ctx Context, arg any, handler HandlerFunc) (any, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			current := interceptors[i]
			next := chain
			chain = func(c context.Context, arg any) (any, error) {
				// An interceptor may hand a derived context.Context to next.
				callCtx, ok := c.(Context)
				if !ok {
					if found, ok := FromContext(c); ok {
						callCtx = rebase(found, c)
					} else {
						callCtx = NewContext(c, ctx.Path())
					}
				}
				return current(callCtx, arg, next)
			}
		}
		return chain(ctx, arg)
	}
}

// rebase returns a Context with the call metadata of c and the values and
// deadline of parent.
func rebase(c Context, parent context.Context) Context {
	return newContext(parent, c.Path(), c.HTTPWriter(), c.HTTPRequest())
}
