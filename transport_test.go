package bifrost

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHTTPTransport_Request(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotBody   map[string]any
		gotHeader string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotHeader = r.Header.Get("X-Api-Key")
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	transport := NewHTTPTransport(srv.URL+"/", WithHeader("X-Api-Key", "k"))
	res, err := transport(context.Background(), &Request{
		Path:     Path{"accounts", "get"},
		Argument: map[string]any{"id": 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	if gotMethod != http.MethodPost || gotPath != "/accounts/get" {
		t.Errorf("got %s %s", gotMethod, gotPath)
	}
	if gotHeader != "k" {
		t.Errorf("expected header to be sent, got %q", gotHeader)
	}
	if diff := cmp.Diff(map[string]any{"argument": map[string]any{"id": float64(1)}}, gotBody); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	raw, ok := res.(json.RawMessage)
	if !ok || string(raw) != `{"ok":true}` {
		t.Errorf("expected raw JSON result, got %#v", res)
	}
}

func TestHTTPTransport_NoArgument(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	res, err := NewHTTPTransport(srv.URL)(context.Background(), &Request{Path: Path{"posts", "list"}, Argument: NoArgument})
	if err != nil || res != nil {
		t.Errorf("expected an empty result, got %v, %v", res, err)
	}
	if body != "{}" {
		t.Errorf("expected an empty envelope, got %q", body)
	}
}

func TestHTTPTransport_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, NewError(CodeNotFound, "account not found").WithDetail("id", "7"), nil)
	}))
	defer srv.Close()

	_, err := NewHTTPTransport(srv.URL)(context.Background(), &Request{Path: Path{"accounts", "get"}})
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	want := &Error{Code: CodeNotFound, Message: "account not found", Details: map[string]any{"id": "7"}}
	if diff := cmp.Diff(want, svcErr); diff != "" {
		t.Errorf("error mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTPTransport_StatusFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPTransport(srv.URL)(context.Background(), &Request{Path: Path{"x"}})
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if svcErr.Code != CodeUnavailable || svcErr.Message != "upstream exploded" {
		t.Errorf("unexpected error %v", svcErr)
	}
	if svcErr.Details["status"] != http.StatusBadGateway {
		t.Errorf("expected the status in details, got %v", svcErr.Details)
	}
}

func TestHTTPTransport_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPTransport(srv.URL)(ctx, &Request{Path: Path{"x"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLocalTransport(t *testing.T) {
	tree := NewBranch().Add("math", NewBranch().
		Add("double", Handle(func(ctx context.Context, n int) (int, error) { return n * 2, nil })))
	transport := LocalTransport(tree)

	res, err := transport(context.Background(), &Request{Path: Path{"math", "double"}, Argument: 21})
	if err != nil || res != 42 {
		t.Errorf("got %v, %v", res, err)
	}

	_, err = transport(context.Background(), &Request{Path: Path{"math", "triple"}, Argument: 1})
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != CodeNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestLocalTransport_Validates(t *testing.T) {
	type named struct {
		Name string `json:"name" validate:"required"`
	}
	called := false
	transport := LocalTransport(NewBranch().Add("hello", Handle(func(ctx context.Context, req named) (string, error) {
		called = true
		return "hi " + req.Name, nil
	})))

	_, err := transport(context.Background(), &Request{Path: Path{"hello"}, Argument: map[string]any{}})
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != CodeInvalidArgument {
		t.Errorf("expected invalid_argument, got %v", err)
	}
	if called {
		t.Error("endpoint must not run with an invalid argument")
	}
}

func TestHTTPTransport_DottedSegment(t *testing.T) {
	tree := NewBranch().Add("v1.2", NewBranch().
		Add("get", Handle(func(ctx context.Context, id int) (string, error) { return "ok", nil })))
	app := NewApp().WithLogger(slog.New(slog.DiscardHandler)).Mount(tree)
	server := httptest.NewServer(app.Handler())
	defer server.Close()

	var got string
	res, err := NewHTTPTransport(server.URL)(context.Background(), &Request{Path: Path{"v1.2", "get"}, Argument: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := json.Unmarshal(res.(json.RawMessage), &got); err != nil || got != "ok" {
		t.Errorf("expected \"ok\", got %s (%v)", res, err)
	}

	want := []RouteInfo{{Route: "/v1.2/get", Path: Path{"v1.2", "get"}, Argument: "int", Result: "string"}}
	if diff := cmp.Diff(want, app.Routes()); diff != "" {
		t.Errorf("routes mismatch (-want +got):\n%s", diff)
	}
}

func TestLocalTransport_SegmentsWithSlash(t *testing.T) {
	tree := NewBranch().
		Add("a/b", Handle(func(ctx context.Context, _ Empty) (string, error) { return "joined", nil })).
		Add("a", NewBranch().Add("b", Handle(func(ctx context.Context, _ Empty) (string, error) { return "nested", nil })))
	transport := LocalTransport(tree)

	for want, path := range map[string]Path{"joined": {"a/b"}, "nested": {"a", "b"}} {
		res, err := transport(context.Background(), &Request{Path: path, Argument: NoArgument})
		if err != nil || res != want {
			t.Errorf("%q: expected %q, got %v, %v", path, want, res, err)
		}
	}
}
