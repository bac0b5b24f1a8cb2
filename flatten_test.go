package bifrost

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func endpointPaths(eps []Endpoint) []string {
	out := make([]string, len(eps))
	for i, ep := range eps {
		out[i] = ep.Path.String()
	}
	return out
}

func TestFlatten_InsertionOrder(t *testing.T) {
	get := Handle(func(ctx context.Context, req Empty) (string, error) { return "get", nil })
	list := Handle(func(ctx context.Context, req Empty) (string, error) { return "list", nil })

	tree := NewBranch().
		Add("accounts", NewBranch().Add("get", get)).
		Add("posts", NewBranch().Add("list", list))

	eps := Flatten(tree)
	if diff := cmp.Diff([]string{"accounts/get", "posts/list"}, endpointPaths(eps)); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	if eps[0].Leaf != get || eps[1].Leaf != list {
		t.Error("endpoints must carry the original leaves")
	}
}

func TestFlatten_Empty(t *testing.T) {
	if eps := Flatten(NewBranch()); len(eps) != 0 {
		t.Errorf("expected no endpoints, got %v", endpointPaths(eps))
	}
	if eps := Flatten(nil); len(eps) != 0 {
		t.Errorf("expected no endpoints for nil, got %v", endpointPaths(eps))
	}
}

func TestBranch_AddReplaceKeepsPosition(t *testing.T) {
	a := Handle(func(ctx context.Context, req Empty) (int, error) { return 1, nil })
	b := Handle(func(ctx context.Context, req Empty) (int, error) { return 2, nil })
	br := NewBranch().Add("x", a).Add("y", a).Add("x", b)

	if diff := cmp.Diff([]string{"x", "y"}, br.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if got, _ := br.Get("x"); got != b {
		t.Error("expected x to be replaced")
	}
}

type accountsAPI struct {
	Get     func(ctx context.Context, req struct{ ID int }) (string, error)
	Archive func(ctx context.Context) error `bifrost:"archiveAll"`
	Hidden  func(ctx context.Context) error `bifrost:"-"`
	Limit   int
	private func(ctx context.Context) error
}

type rootAPI struct {
	Version  string
	Accounts accountsAPI
	Posts    map[string]func(context.Context) (int, error)
	Extra    Tree
	Nothing  *accountsAPI
}

func TestFromStruct(t *testing.T) {
	noop := func(ctx context.Context) error { return nil }
	api := rootAPI{
		Version: "v1",
		Accounts: accountsAPI{
			Get:     func(ctx context.Context, req struct{ ID int }) (string, error) { return "acct", nil },
			Archive: noop,
			Hidden:  noop,
			Limit:   10,
			private: noop,
		},
		Posts: map[string]func(context.Context) (int, error){
			"list":  func(context.Context) (int, error) { return 0, nil },
			"count": func(context.Context) (int, error) { return 0, nil },
		},
		Extra: NewBranch().Add("ping", Handle(func(ctx context.Context, _ Empty) (bool, error) { return true, nil })),
	}

	tree, err := FromStruct(api)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"accounts/get",
		"accounts/archiveAll",
		"posts/count",
		"posts/list",
		"extra/ping",
	}
	if diff := cmp.Diff(want, endpointPaths(Flatten(tree))); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestFromStruct_Slice(t *testing.T) {
	fns := []func(context.Context) (int, error){
		func(context.Context) (int, error) { return 0, nil },
		func(context.Context) (int, error) { return 1, nil },
	}
	tree, err := FromStruct(map[string]any{"steps": fns})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"steps/0", "steps/1"}, endpointPaths(Flatten(tree))); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestFromStruct_RejectsBadSignatures(t *testing.T) {
	tests := []struct {
		name string
		v    any
	}{
		{"two arguments", struct{ F func(a, b int) error }{F: func(a, b int) error { return nil }}},
		{"no results", struct{ F func(ctx context.Context) }{F: func(ctx context.Context) {}}},
		{"second result not error", struct{ F func() (int, int) }{F: func() (int, int) { return 0, 0 }}},
		{"variadic", struct{ F func(...int) error }{F: func(...int) error { return nil }}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromStruct(tt.v)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), `"f"`) {
				t.Errorf("error should name the endpoint path: %v", err)
			}
		})
	}
}

type loopAPI struct {
	Ping func(ctx context.Context, _ Empty) (string, error)
	Self *loopAPI
}

func TestFromStruct_RejectsCycles(t *testing.T) {
	ping := func(ctx context.Context, _ Empty) (string, error) { return "pong", nil }

	api := &loopAPI{Ping: ping}
	api.Self = api
	loop := map[string]any{"ping": ping}
	loop["again"] = loop

	tests := []struct {
		name string
		v    any
		want string
	}{
		{"pointer", api, `at "self"`},
		{"map", loop, `at "again"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromStruct(tt.v)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestFromStruct_SharedSubtree(t *testing.T) {
	shared := &loopAPI{Ping: func(ctx context.Context, _ Empty) (string, error) { return "pong", nil }}
	tree, err := FromStruct(map[string]*loopAPI{"a": shared, "b": shared})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a/ping", "b/ping"}, endpointPaths(Flatten(tree))); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestFromStruct_NotATree(t *testing.T) {
	if _, err := FromStruct(42); err == nil {
		t.Error("expected an error for a non-tree value")
	}
}

func TestLeaf_CallCoercesArgument(t *testing.T) {
	type req struct {
		ID int `json:"id"`
	}
	leaf := Handle(func(ctx context.Context, r req) (int, error) { return r.ID * 10, nil })

	tests := []struct {
		name string
		arg  any
		want int
	}{
		{"typed", req{ID: 1}, 10},
		{"raw json", []byte(`{"id":2}`), 20},
		{"generic map", map[string]any{"id": 3}, 30},
		{"nil", nil, 0},
		{"no argument", NoArgument, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := leaf.Call(context.Background(), tt.arg)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Call() = %v, want %d", got, tt.want)
			}
		})
	}

	_, err := leaf.Call(context.Background(), []byte(`{"id":"nope"}`))
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != CodeInvalidArgument {
		t.Errorf("expected invalid_argument, got %v", err)
	}
}
