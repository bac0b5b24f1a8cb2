package bifrost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Transport carries a call to wherever the endpoint lives and returns its
// result. Errors are propagated to the caller unchanged.
//
// Any function with this signature can replace the default HTTP transport,
// for example to call a Tree in-process (see LocalTransport) or to
// multiplex over a WebSocket (see package wsrpc).
type Transport func(ctx context.Context, req *Request) (any, error)

// maxResponseSize bounds the body NewHTTPTransport will read.
const maxResponseSize = 32 << 20

type httpTransport struct {
	baseURL string
	client  *http.Client
	header  http.Header
}

// HTTPTransportOption configures NewHTTPTransport.
type HTTPTransportOption func(*httpTransport)

// WithHTTPClient sets the client used to issue requests.
// Default is http.DefaultClient.
func WithHTTPClient(c *http.Client) HTTPTransportOption {
	return func(t *httpTransport) {
		if c != nil {
			t.client = c
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPTransportOption {
	return func(t *httpTransport) {
		t.header.Add(key, value)
	}
}

// NewHTTPTransport returns the default transport. Each call is one POST to
// baseURL followed by the path joined with "/", with body
// {"argument": <json>}. The result is the raw JSON response body as a
// json.RawMessage.
//
// Non-2xx responses become an *Error, decoded from the error envelope when
// the server sent one.
func NewHTTPTransport(baseURL string, opts ...HTTPTransportOption) Transport {
	t := &httpTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
		header:  make(http.Header),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t.roundTrip
}

func (t *httpTransport) roundTrip(ctx context.Context, req *Request) (any, error) {
	arg := req.Argument
	if IsNoArgument(arg) {
		arg = nil
	}
	body, err := json.Marshal(outgoingEnvelope{Argument: arg})
	if err != nil {
		return nil, fmt.Errorf("bifrost: encode argument for %s: %w", req.Path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+req.Path.Route(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vs := range t.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if svcErr := decodeErrorResponse(data); svcErr != nil {
			return nil, svcErr
		}
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return nil, NewError(codeFromHTTPStatus(resp.StatusCode), msg).
			WithDetail("status", resp.StatusCode)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

// LocalTransport calls the endpoints of t in-process, without any
// serialization. Arguments are validated and unknown paths fail with
// not_found, as they would over HTTP.
func LocalTransport(t Tree) Transport {
	routes := make(map[string]*Leaf)
	for _, ep := range Flatten(t) {
		routes[Key(ep.Path).String()] = ep.Leaf
	}
	return func(ctx context.Context, req *Request) (any, error) {
		leaf, ok := routes[Key(req.Path).String()]
		if !ok {
			return nil, Errorf(CodeNotFound, "route %s not found", req.Path.Route())
		}
		return leaf.Serve(ctx, req.Argument)
	}
}
