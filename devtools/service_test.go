package devtools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/broady/bifrost"
	"github.com/google/go-cmp/cmp"
)

func TestTree_Paths(t *testing.T) {
	app := bifrost.NewApp()
	var got []string
	for _, ep := range bifrost.Flatten(New(app, 8000).Tree()) {
		got = append(got, ep.Path.String())
	}
	if diff := cmp.Diff([]string{"ping", "info", "routes"}, got); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestRoutes_ListsMountedEndpoints(t *testing.T) {
	app := bifrost.NewApp()
	app.Mount(bifrost.NewBranch().
		Add("greet", bifrost.Handle(func(ctx context.Context, req struct{ Name string }) (string, error) {
			return "hello " + req.Name, nil
		})).
		Add("devtools", New(app, 8000).Tree()))

	req := httptest.NewRequest(http.MethodPost, "/devtools/routes", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	app.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res RoutesResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	var routes []string
	for _, r := range res.Routes {
		routes = append(routes, r.Route)
	}
	want := []string{"/greet", "/devtools/ping", "/devtools/info", "/devtools/routes"}
	if diff := cmp.Diff(want, routes); diff != "" {
		t.Errorf("routes mismatch (-want +got):\n%s", diff)
	}
	if res.Port != 8000 {
		t.Errorf("port = %d, want 8000", res.Port)
	}
}

func TestPing(t *testing.T) {
	res, err := New(nil, 0).Ping(context.Background(), bifrost.Empty{})
	if err != nil || !res.OK {
		t.Errorf("Ping() = %+v, %v", res, err)
	}
}
