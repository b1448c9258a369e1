package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/funnyzak/pagemock/internal/browser"
	"github.com/funnyzak/pagemock/internal/config"
	"github.com/funnyzak/pagemock/internal/journal"
	"github.com/funnyzak/pagemock/internal/logger"
	"github.com/funnyzak/pagemock/internal/printer"
	"github.com/funnyzak/pagemock/internal/web"
	"github.com/funnyzak/pagemock/pkg/mock"
)

const shutdownTimeout = 30 * time.Second

// Server runs one interception session: a browser page whose requests are
// answered by the configured mocks.
type Server struct {
	config   *config.Config
	logger   logger.Logger
	launcher browser.Launcher
	mocks    []config.MockConfig

	store   journal.Store
	printer printer.Printer

	interceptor *mock.Interceptor
	session     browser.Browser
	web         *web.Service
	httpSrv     *http.Server
	webAddr     net.Addr

	baseCtx    context.Context
	baseCancel context.CancelFunc
	procWG     sync.WaitGroup

	ready    chan struct{}
	stopOnce sync.Once
}

// Option customizes a Server.
type Option func(*Server)

// WithLauncher replaces the playwright launcher.
func WithLauncher(l browser.Launcher) Option {
	return func(s *Server) {
		s.launcher = l
	}
}

// WithPrinter replaces the printer chosen from the output configuration.
func WithPrinter(p printer.Printer) Option {
	return func(s *Server) {
		s.printer = p
	}
}

// New creates a new server instance. Mocks are loaded and compiled eagerly so
// configuration errors surface before a browser is started.
func New(cfg *config.Config, log logger.Logger, opts ...Option) (*Server, error) {
	mocks, err := cfg.AllMocks()
	if err != nil {
		return nil, fmt.Errorf("load mocks: %w", err)
	}
	for i := range mocks {
		if err := mocks[i].Validate(); err != nil {
			return nil, fmt.Errorf("mock %d: %w", i+1, err)
		}
	}

	s := &Server{
		config:   cfg,
		logger:   log,
		launcher: browser.PlaywrightLauncher{Logger: log},
		mocks:    mocks,
		ready:    make(chan struct{}),
	}
	if !cfg.Output.Silence {
		s.printer = printer.New(log, &cfg.Output)
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Journal.Enable {
		store, err := journal.New(&cfg.Journal, log)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		s.store = store
	}

	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	return s, nil
}

// Ready is closed once interception is active and the start URL was loaded.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Interceptor returns the running interceptor, or nil before Run wired it.
func (s *Server) Interceptor() *mock.Interceptor {
	select {
	case <-s.ready:
		return s.interceptor
	default:
		return nil
	}
}

// WebAddr returns the address the web console listens on, if enabled.
func (s *Server) WebAddr() net.Addr {
	select {
	case <-s.ready:
		return s.webAddr
	default:
		return nil
	}
}

// Run starts the session and blocks until ctx is done or a shutdown signal
// is received.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer s.shutdown()

	if err := s.start(ctx); err != nil {
		return err
	}
	close(s.ready)

	<-ctx.Done()
	s.logger.Info("Shutting down...")
	return nil
}

func (s *Server) start(ctx context.Context) error {
	session, err := s.launcher.Launch(ctx, &s.config.Browser)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	s.session = session

	s.interceptor = mock.New(session.Transport(), s.interceptorOptions()...)
	for _, mc := range s.mocks {
		id, err := mc.Register(s.interceptor)
		if err != nil {
			return fmt.Errorf("register mock %s: %w", mc.Pattern, err)
		}
		s.logger.Debug("Mock loaded", "mock_id", id, "method", mc.Method, "pattern", mc.Pattern)
	}

	if s.config.Web.Enable {
		if err := s.startWeb(); err != nil {
			return err
		}
	}

	var publisher EventPublisher
	if s.web != nil {
		publisher = s.web
	}
	s.interceptor.Observe(NewEventHandler(s.printer, s.store, publisher, s.logger, s.baseCtx, &s.procWG))

	if err := s.interceptor.Start(ctx); err != nil {
		return fmt.Errorf("start interception: %w", err)
	}

	if url := s.config.Browser.StartURL; url != "" {
		gotoCtx := ctx
		if timeout := s.config.Browser.Timeout; timeout > 0 {
			var cancel context.CancelFunc
			gotoCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := s.session.Goto(gotoCtx, url); err != nil {
			return err
		}
	}

	s.logger.Info("Interception session ready",
		"engine", s.config.Browser.Engine,
		"mocks", len(s.mocks),
		"start_url", s.config.Browser.StartURL,
	)
	return nil
}

func (s *Server) interceptorOptions() []mock.InterceptorOption {
	cors := s.config.Intercept.CORS
	opts := []mock.InterceptorOption{
		mock.WithLogger(s.logger),
		mock.WithCORS(&mock.CORS{
			AllowedMethods:   cors.AllowedMethods,
			AllowedHeaders:   cors.AllowedHeaders,
			ExposedHeaders:   cors.ExposedHeaders,
			AllowCredentials: cors.AllowCredentials,
			MaxAge:           cors.MaxAge,
		}),
	}
	if len(s.config.Intercept.Categories) > 0 {
		opts = append(opts, mock.WithCategories(s.config.Intercept.Categories...))
	}
	if s.config.Intercept.NotFoundBody != "" {
		opts = append(opts, mock.WithNotFoundBody(s.config.Intercept.NotFoundBody))
	}
	return opts
}

func (s *Server) startWeb() error {
	ln, err := net.Listen("tcp", s.config.Web.Listen)
	if err != nil {
		return fmt.Errorf("listen web console: %w", err)
	}

	s.web = web.NewService(&s.config.Web, s.logger, s.interceptor, s.store)
	router := mux.NewRouter()
	s.web.RegisterRoutes(router)

	s.httpSrv = &http.Server{
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.webAddr = ln.Addr()

	s.logger.Info("Starting web console",
		"addr", s.webAddr.String(),
		"admin_path", s.config.Web.AdminPath,
	)

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Web console stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

// shutdown releases every resource in reverse start order. It is safe to call
// after a partial start.
func (s *Server) shutdown() {
	s.stopOnce.Do(func() {
		if s.interceptor != nil && s.interceptor.Running() {
			if err := s.interceptor.Stop(); err != nil {
				s.logger.Warn("Failed to stop interception", "error", err)
			}
		}

		if s.session != nil {
			if err := s.session.Close(); err != nil {
				s.logger.Error("Failed to close browser", "error", err)
			}
		}

		if s.httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := s.httpSrv.Shutdown(ctx); err != nil {
				s.logger.Error("Web console forced to shutdown", "error", err)
			}
			cancel()
		}

		s.procWG.Wait()
		s.baseCancel()

		if s.web != nil {
			s.web.Close()
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				s.logger.Error("Failed to close journal", "error", err)
			}
		}

		s.logger.Info("Session exited")
	})
}
