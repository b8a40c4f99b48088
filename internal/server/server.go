// Package server is the development HTTP server. It serves compiled output
// from temp, falls back to src and public, injects the live-reload client
// into HTML pages, and exposes a status endpoint for the last task errors.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/conneroisu/sitepipe/internal/build"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/livereload"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/validation"
)

// StatusPath serves the JSON status report.
const StatusPath = "/__sitepipe/status"

// Options configures a Server.
type Options struct {
	Host string
	Port int
	Open bool

	// Routes map URL prefixes to directories and are tried before Roots.
	Routes map[string]string
	// Roots are searched in order; the first existing file wins.
	Roots []string

	// Hub receives websocket connections and enables HTML injection.
	// Nil disables live reload.
	Hub     *livereload.Hub
	Errors  *errors.ErrorCollector
	Metrics *build.Metrics
	Logger  logging.Logger
}

// Server serves the site during development.
type Server struct {
	opts   Options
	logger logging.Logger

	mu         sync.RWMutex
	httpServer *http.Server
	addr       net.Addr

	shutdownOnce sync.Once
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.Errors == nil {
		opts.Errors = errors.NewErrorCollector()
	}
	return &Server{
		opts:   opts,
		logger: logger.WithComponent("server"),
	}
}

// Handler returns the full handler stack without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.opts.Hub != nil {
		mux.Handle(livereload.DefaultPath, s.opts.Hub)
	}
	mux.HandleFunc(StatusPath, s.handleStatus)
	mux.Handle("/", newFileHandler(s.opts.Routes, s.opts.Roots, s.opts.Hub != nil))

	return s.logRequests(mux)
}

// Start binds host:port and serves in the background until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.opts.Host, fmt.Sprint(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapServer(err, errors.ErrCodeServerStart, fmt.Sprintf("failed to listen on %s", addr))
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error(ctx, err, "Server stopped unexpectedly")
		}
	}()

	url := s.URL()
	s.logger.Info(ctx, "Serving", "url", url)

	if s.opts.Open {
		go s.openBrowser(ctx, url)
	}
	return nil
}

// Addr is the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// URL is the browsable address of the running server.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == nil {
		return ""
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String()
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		srv := s.httpServer
		s.mu.RUnlock()
		if srv == nil {
			return
		}
		s.logger.Info(ctx, "Shutting down server")
		shutdownErr = srv.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) openBrowser(ctx context.Context, url string) {
	time.Sleep(100 * time.Millisecond) // Give server time to start

	// Validate URL for security before passing to system commands
	if err := validation.ValidateURL(url); err != nil {
		s.logger.Warn(ctx, err, "Refusing to open browser")
		return
	}

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}

	if err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser")
	}
}
