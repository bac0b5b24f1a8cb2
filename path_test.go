package bifrost

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPath_AppendDoesNotAlias(t *testing.T) {
	parent := make(Path, 1, 8)
	parent[0] = "accounts"

	a := parent.Append("get")
	b := parent.Append("list")
	if diff := cmp.Diff(Path{"accounts", "get"}, a); diff != "" {
		t.Errorf("a mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Path{"accounts", "list"}, b); diff != "" {
		t.Errorf("b mismatch (-want +got):\n%s", diff)
	}
}

func TestPath_Route(t *testing.T) {
	tests := []struct {
		path Path
		want string
	}{
		{Path{"accounts", "get"}, "/accounts/get"},
		{Path{"ping"}, "/ping"},
		{Path{}, "/"},
	}
	for _, tt := range tests {
		if got := tt.path.Route(); got != tt.want {
			t.Errorf("%v.Route() = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		in   string
		want Path
	}{
		{"/accounts/get", Path{"accounts", "get"}},
		{"accounts.get", Path{"accounts", "get"}},
		{"accounts/get/", Path{"accounts", "get"}},
		{"", Path{}},
		{"/", Path{}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, ParsePath(tt.in)); diff != "" {
			t.Errorf("ParsePath(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestPath_HasPrefix(t *testing.T) {
	p := Path{"accounts", "get"}
	if !p.HasPrefix(Path{"accounts"}) || !p.HasPrefix(Path{}) || !p.HasPrefix(p) {
		t.Error("expected prefixes to match")
	}
	if p.HasPrefix(Path{"posts"}) || p.HasPrefix(Path{"accounts", "get", "x"}) {
		t.Error("expected non-prefixes to not match")
	}
}
