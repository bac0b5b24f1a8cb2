// Package devtools provides endpoints for inspecting a running bifrost app.
package devtools

import (
	"context"
	"runtime"

	"github.com/broady/bifrost"
)

// Service provides devtools endpoints. Mount its tree under the "devtools"
// segment:
//
//	app := bifrost.NewApp()
//	app.Mount(bifrost.NewBranch().
//		Add("devtools", devtools.New(app, 8000).Tree()))
type Service struct {
	app  *bifrost.App
	port int
}

// New creates a devtools service reporting on app.
func New(app *bifrost.App, port int) *Service {
	return &Service{app: app, port: port}
}

// Tree returns the devtools endpoints: ping, info and routes.
func (s *Service) Tree() bifrost.Tree {
	return bifrost.NewBranch().
		Add("ping", bifrost.Handle(s.Ping)).
		Add("info", bifrost.Handle(s.Info)).
		Add("routes", bifrost.Handle(s.Routes))
}

// PingResponse is the response of ping.
type PingResponse struct {
	OK bool `json:"ok"`
}

// Ping is a health check.
func (s *Service) Ping(ctx context.Context, _ bifrost.Empty) (*PingResponse, error) {
	return &PingResponse{OK: true}, nil
}

// InfoResponse provides runtime information about the server.
type InfoResponse struct {
	Port          int         `json:"port"`
	Version       string      `json:"version"`
	NumGoroutines int         `json:"num_goroutines"`
	NumCPU        int         `json:"num_cpu"`
	Memory        MemoryStats `json:"memory"`
}

// MemoryStats contains memory statistics.
type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

// Info returns runtime information about the server.
func (s *Service) Info(ctx context.Context, _ bifrost.Empty) (*InfoResponse, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &InfoResponse{
		Port:          s.port,
		Version:       runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		Memory: MemoryStats{
			Alloc:      m.Alloc,
			TotalAlloc: m.TotalAlloc,
			Sys:        m.Sys,
			NumGC:      m.NumGC,
		},
	}, nil
}

// RoutesResponse lists every route mounted on the app.
type RoutesResponse struct {
	Port   int                 `json:"port"`
	Routes []bifrost.RouteInfo `json:"routes"`
}

// Routes returns the mounted routes with their argument and result types.
func (s *Service) Routes(ctx context.Context, _ bifrost.Empty) (*RoutesResponse, error) {
	return &RoutesResponse{
		Port:   s.port,
		Routes: s.app.Routes(),
	}, nil
}
