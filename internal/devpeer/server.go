// SPDX-License-Identifier: MPL-2.0

package devpeer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server is a development peer. A Server is single-use: once stopped or
// failed, create a new one.
type Server struct {
	lifecycle

	cfg    Config
	logger *log.Logger
	root   *os.Root

	mu        sync.Mutex
	srv       *http.Server
	addr      string
	closeRoot sync.Once
}

// New validates cfg and opens the served directory.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = DefaultStartupTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	root, err := os.OpenRoot(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("open peer directory: %w", err)
	}
	return &Server{
		lifecycle: newLifecycle(),
		cfg:       cfg,
		logger:    logger,
		root:      root,
	}, nil
}

// Handler returns the peer's HTTP handler, instrumented with OpenTelemetry.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(&handler{root: s.root, logger: s.logger}, "devpeer",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "serve " + r.URL.Path
		}),
	)
}

// Start listens and serves in the background. It returns once the listener
// is bound. Failures of the serve loop are reported on Err.
func (s *Server) Start(ctx context.Context) error {
	if err := s.begin(ctx); err != nil {
		return err
	}

	startupCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(int(s.cfg.Port)))
	var lc net.ListenConfig
	listener, err := lc.Listen(startupCtx, "tcp", addr)
	if err != nil {
		s.fail(fmt.Errorf("listen on %s: %w", addr, err))
		return s.LastError()
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("dev peer failed", "err", err)
			s.fail(fmt.Errorf("serve: %w", err))
		}
	}()

	s.running()
	s.logger.Info("dev peer started", "address", s.Addr(), "dir", s.cfg.Dir)
	return nil
}

// Addr returns the bound host:port, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop shuts the server down gracefully and closes the directory.
// Calling Stop more than once, or before Start, is harmless.
func (s *Server) Stop() error {
	var err error
	if s.stopping() {
		s.mu.Lock()
		srv := s.srv
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if srv != nil {
			err = srv.Shutdown(ctx)
		}
		s.wg.Wait()
		s.stopped()
		s.logger.Info("dev peer stopped")
	}

	s.closeRoot.Do(func() {
		if cerr := s.root.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	})
	return err
}
