package wsrpc

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/broady/bifrost"
)

type echoArg struct {
	N     int           `json:"n"`
	Delay time.Duration `json:"delay"`
}

func newTestServer(t *testing.T) *Conn {
	t.Helper()
	tree := bifrost.NewBranch().
		Add("math", bifrost.NewBranch().
			Add("double", bifrost.Handle(func(ctx context.Context, req echoArg) (int, error) {
				time.Sleep(req.Delay)
				return req.N * 2, nil
			})).
			Add("fail", bifrost.Handle(func(ctx context.Context, _ bifrost.Empty) (int, error) {
				return 0, bifrost.NewError(bifrost.CodeConflict, "nope")
			})))

	srv := httptest.NewServer(Handler(tree))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRoundTrip_Concurrent(t *testing.T) {
	conn := newTestServer(t)
	root := bifrost.Build(bifrost.Invoke(conn.Transport()))
	double := root.Field("math").Field("double")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Earlier calls sleep longer, so replies arrive out of order.
			arg := echoArg{N: i, Delay: time.Duration(10-i) * 5 * time.Millisecond}
			got, err := bifrost.CallAs[int](context.Background(), double, arg)
			if err != nil {
				errs <- err
				return
			}
			if got != i*2 {
				errs <- fmt.Errorf("double(%d) = %d", i, got)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestRoundTrip_Errors(t *testing.T) {
	conn := newTestServer(t)
	root := bifrost.Build(bifrost.Invoke(conn.Transport()))

	tests := []struct {
		name string
		path bifrost.Path
		code bifrost.ErrorCode
	}{
		{"endpoint error", bifrost.Path{"math", "fail"}, bifrost.CodeConflict},
		{"unknown path", bifrost.Path{"math", "triple"}, bifrost.CodeNotFound},
		{"branch path", bifrost.Path{"math"}, bifrost.CodeNotFound},
		{"joined segment", bifrost.Path{"math/double"}, bifrost.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := root.At(tt.path).Call(context.Background(), bifrost.NoArgument)
			var svcErr *bifrost.Error
			if !errors.As(err, &svcErr) || svcErr.Code != tt.code {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestCall_AfterClose(t *testing.T) {
	conn := newTestServer(t)
	conn.Close()
	<-conn.Done()

	_, err := conn.Transport()(context.Background(), &bifrost.Request{Path: bifrost.Path{"math", "double"}})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestCall_ContextCanceled(t *testing.T) {
	conn := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := conn.Transport()(ctx, &bifrost.Request{
		Path:     bifrost.Path{"math", "double"},
		Argument: echoArg{N: 1, Delay: time.Second},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
