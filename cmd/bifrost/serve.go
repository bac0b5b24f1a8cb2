package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/broady/bifrost"
	"github.com/broady/bifrost/devtools"
	"github.com/broady/bifrost/internal/demo"
	"github.com/broady/bifrost/middleware"
	"github.com/broady/bifrost/wsrpc"
)

type ServeCmd struct {
	Config string `help:"HCL config file." type:"existingfile" short:"c"`
	Addr   string `help:"Address to listen on. Overrides the config file."`
	WS     bool   `help:"Also serve the endpoints over WebSocket at /ws." name:"ws"`
}

func (c *ServeCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}
	if c.WS {
		cfg.WebSocket = true
	}

	logger := cfg.logger(os.Stderr)
	handler, err := newServer(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("bifrost listening", slog.String("addr", "http://"+cfg.Addr), slog.Bool("websocket", cfg.WebSocket))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// newServer builds the handler for cfg: the demo API and devtools on an App,
// and optionally the same tree over WebSocket at /ws.
func newServer(cfg *Config, logger *slog.Logger) (http.Handler, error) {
	_, portStr, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid addr %q: %w", cfg.Addr, err)
	}
	port, _ := strconv.Atoi(portStr)

	app := bifrost.NewApp().
		WithLogger(logger).
		WithMaxRequestBodySize(uint64(cfg.MaxRequestBodySize)).
		WithUnaryInterceptor(middleware.LoggingInterceptor(logger)).
		WithMiddleware(middleware.RequestID()).
		WithMiddleware(middleware.CORS(cfg.CORS.options()))
	if cfg.MaskInternalErrors {
		app.WithMaskInternalErrors()
	}

	tree, err := bifrost.FromStruct(demo.New(logger))
	if err != nil {
		return nil, err
	}
	root, ok := tree.(*bifrost.Branch)
	if !ok {
		return nil, fmt.Errorf("demo API is not a branch")
	}
	root.Add("devtools", devtools.New(app, port).Tree())
	app.Mount(root)

	if !cfg.WebSocket {
		return app.Handler(), nil
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.RequestID()(wsrpc.Handler(root,
		wsrpc.WithInterceptor(middleware.LoggingInterceptor(logger)),
		wsrpc.WithServerLogger(logger),
	)))
	mux.Handle("/", app.Handler())
	return mux, nil
}

// options converts the cors block. A missing block uses the defaults.
func (c *CORSConfig) options() *middleware.CORSConfig {
	if c == nil {
		return nil
	}
	return &middleware.CORSConfig{
		AllowedOrigins:   c.AllowedOrigins,
		AllowedHeaders:   c.AllowedHeaders,
		ExposedHeaders:   c.ExposedHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           c.MaxAge,
	}
}
