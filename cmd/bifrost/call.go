package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"

	"github.com/broady/bifrost"
)

var printOptions = ojg.Options{Indent: 2, Sort: true}

type CallCmd struct {
	BaseURL  string            `arg:"" name:"base-url" help:"Where the server mounted its endpoints."`
	Path     string            `arg:"" help:"Endpoint path, such as accounts/get or accounts.get."`
	Argument string            `arg:"" optional:"" name:"json-arg" help:"Call argument as JSON. Omit for a call without argument."`
	Header   map[string]string `help:"Header to send with the request (key=value)." short:"H"`
	Timeout  time.Duration     `help:"Call timeout." default:"30s"`
}

func (c *CallCmd) Run() error {
	arg, err := parseArgument(c.Argument)
	if err != nil {
		return err
	}

	header := make(http.Header)
	for k, v := range c.Header {
		header.Set(k, v)
	}
	client, err := bifrost.NewClient(bifrost.Options{BaseURL: c.BaseURL, Header: header})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	res, err := client.Invoke().At(bifrost.ParsePath(c.Path)).Call(ctx, arg)
	if err != nil {
		return err
	}
	return printResult(os.Stdout, res)
}

type KeyCmd struct {
	Path     string `arg:"" help:"Endpoint path, such as accounts/get or accounts.get."`
	Argument string `arg:"" optional:"" name:"json-arg" help:"Call argument as JSON. Omit for the path prefix key."`
}

func (c *KeyCmd) Run() error {
	arg, err := parseArgument(c.Argument)
	if err != nil {
		return err
	}
	key, err := bifrost.CallAs[bifrost.Key](context.Background(), bifrost.Build(bifrost.Keys()).At(bifrost.ParsePath(c.Path)), arg)
	if err != nil {
		return err
	}
	out := make([]any, len(key))
	for i, seg := range key {
		out[i] = seg
	}
	return printResult(os.Stdout, out)
}

// parseArgument parses a JSON command-line argument. An empty string means
// no argument.
func parseArgument(s string) (any, error) {
	if s == "" {
		return bifrost.NoArgument, nil
	}
	v, err := oj.ParseString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON argument: %w", err)
	}
	return v, nil
}

func printResult(w io.Writer, res any) error {
	switch v := res.(type) {
	case nil:
		return nil
	case json.RawMessage:
		parsed, err := oj.Parse(v)
		if err != nil {
			_, err = fmt.Fprintln(w, string(v))
			return err
		}
		res = parsed
	}
	_, err := fmt.Fprintln(w, oj.JSON(res, &printOptions))
	return err
}
