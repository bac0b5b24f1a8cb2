package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/broady/bifrost"
	"github.com/broady/bifrost/devtools"
	"github.com/broady/bifrost/internal/demo"
	"github.com/broady/bifrost/middleware"
	"github.com/broady/bifrost/testutil"
	"github.com/broady/bifrost/wsrpc"
)

func newTestServer(t *testing.T, cfg *Config) http.Handler {
	t.Helper()
	h, err := newServer(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestServe_DemoAPI(t *testing.T) {
	h := newTestServer(t, defaultConfig())

	w := testutil.NewRequest().POST("/accounts/someCoolAccountsFn").WithArgument(demo.FooParam{Foo: "x"}).Do(h)
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, demo.SomeValue{SomeValue: true})
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected a request id")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS headers")
	}

	w = testutil.NewRequest().GET("/accounts/anotherCoolAccountsFn").WithQuery("blah", "b").Do(h)
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, demo.Waddup{Waddup: "dawg"})
}

func TestServe_Devtools(t *testing.T) {
	h := newTestServer(t, defaultConfig())

	w := testutil.NewRequest().POST("/devtools/routes").WithArgument(nil).Do(h)
	testutil.AssertStatus(t, w, http.StatusOK)

	var routes devtools.RoutesResponse
	testutil.DecodeJSON(t, w, &routes)
	if routes.Port != 8000 {
		t.Errorf("expected port 8000, got %d", routes.Port)
	}
	var found bool
	for _, r := range routes.Routes {
		if r.Route == "/posts/someCoolPostsFn" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the demo routes to be listed, got %+v", routes.Routes)
	}
}

func TestServe_WebSocket(t *testing.T) {
	cfg := defaultConfig()
	cfg.WebSocket = true
	srv := httptest.NewServer(newTestServer(t, cfg))
	defer srv.Close()

	conn, err := wsrpc.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	client, err := bifrost.NewClient(bifrost.Options{Transport: conn.Transport()})
	if err != nil {
		t.Fatal(err)
	}
	var api demo.Client
	if err := client.Bind(&api); err != nil {
		t.Fatal(err)
	}
	w, err := api.Accounts.AnotherCoolAccountsFn(context.Background(), demo.BlahParam{Blah: "b"})
	if err != nil || w.Waddup != "dawg" {
		t.Errorf("got %+v, %v", w, err)
	}

	// Plain HTTP still works next to /ws.
	resp, err := http.Post(srv.URL+"/posts/someCoolPostsFn", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServe_MaxRequestBodySize(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxRequestBodySize = 8
	h := newTestServer(t, cfg)

	w := testutil.NewRequest().POST("/accounts/someCoolAccountsFn").WithArgument(demo.FooParam{Foo: "long enough"}).Do(h)
	testutil.AssertStatus(t, w, http.StatusTooManyRequests)
}
