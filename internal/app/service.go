package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"zonewatch/internal/api"
	"zonewatch/internal/authz"
	"zonewatch/internal/clock"
	"zonewatch/internal/config"
	"zonewatch/internal/dispatch"
	"zonewatch/internal/domain"
	"zonewatch/internal/feed"
	"zonewatch/internal/logging"
	"zonewatch/internal/notify"
	"zonewatch/internal/store"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config snapshot and shared runtime components.
// Returns: runnable zonewatch service.
type Service struct {
	cfg        config.Config
	logger     *slog.Logger
	closeLog   func()
	store      store.Store
	manager    *Manager
	dispatcher *dispatch.Dispatcher
	producer   feed.Producer
	httpSrv    *http.Server
	readyFlag  atomic.Bool
	clock      clock.Clock
}

// NewService builds service instance from config source.
// Params: config source and clock implementation.
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	service := &Service{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		clock:    clk,
	}

	service.store, err = buildStore(cfg, clk)
	if err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	if err := service.seedRoleProfiles(context.Background()); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	service.producer, err = buildFeedProducer(cfg)
	if err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	notifier := notify.NewDispatcher(cfg.Notify, logger)
	service.manager = NewManager(cfg, logger, service.store, notifier, service.producer, clk)
	service.dispatcher = dispatch.New(
		service.store, clk, config.DispatchInterval(cfg), logger,
		dispatch.WithBroadcaster(notifier),
		dispatch.WithFeedProducer(service.producer),
	)

	if err := service.buildHTTPServer(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	return service, nil
}

// Run starts service lifecycle and blocks until shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	shutdownCtx, shutdownCancel := context.WithCancel(ctx)
	defer shutdownCancel()

	errChan := make(chan error, 1)
	if s.httpSrv != nil {
		go func() {
			s.logger.Info("http server starting", "listen", s.cfg.HTTP.Listen)
			err := s.httpSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	go s.dispatcher.Run(shutdownCtx)

	s.readyFlag.Store(true)
	s.logger.Info("service ready",
		"mode", config.NormalizeServiceMode(s.cfg.Service.Mode),
		"store", s.cfg.Store.Driver,
		"dispatch_interval", config.DispatchInterval(s.cfg).String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		return s.shutdown()
	}
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("http shutdown failed", "error", err.Error())
			markErr(fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			s.logger.Error("feed producer close failed", "error", err.Error())
			markErr(fmt.Errorf("feed producer close: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("store close failed", "error", err.Error())
		markErr(fmt.Errorf("store close: %w", err))
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// seedRoleProfiles upserts user profiles for tokens that declare a role in config.
// Tokens without a role keep whatever profile already exists in the store.
// Params: startup context.
// Returns: first profile write error.
func (s *Service) seedRoleProfiles(ctx context.Context) error {
	for _, token := range s.cfg.Auth.Token {
		if token.Role == "" {
			continue
		}
		role, err := domain.ParseRole(token.Role)
		if err != nil {
			return fmt.Errorf("seed role for %q: %w", token.UserID, err)
		}
		if _, err := s.store.UpsertUserProfile(ctx, domain.UserProfile{UserID: token.UserID, Role: role}); err != nil {
			return fmt.Errorf("seed role for %q: %w", token.UserID, err)
		}
		s.logger.Debug("seeded role profile", "user_id", token.UserID, "role", string(role))
	}
	return nil
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
		s.httpSrv = nil
	}
	if s.producer != nil {
		_ = s.producer.Close()
		s.producer = nil
	}
	if s.store != nil {
		_ = s.store.Close()
		s.store = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildHTTPServer wires the REST router with auth and health endpoints.
// Params: none.
// Returns: setup error.
func (s *Service) buildHTTPServer() error {
	if !s.cfg.HTTP.Enabled {
		return nil
	}

	static := make(map[string]string, len(s.cfg.Auth.Token))
	for _, token := range s.cfg.Auth.Token {
		static[token.Token] = token.UserID
	}
	sessions := api.NewSessionManager(config.SessionTTL(s.cfg), s.clock)
	auth := api.NewAuthenticator(static, sessions)
	resolver := authz.NewResolver(s.store, s.logger)

	handler := api.NewHandler(s.manager, auth, resolver, s.logger, s.cfg.HTTP.MaxBodyBytes)

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.HTTP.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	mux.HandleFunc(s.cfg.HTTP.ReadyPath, func(writer http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			writer.WriteHeader(http.StatusServiceUnavailable)
			_, _ = writer.Write([]byte("not-ready"))
			return
		}
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ready"))
	})
	mux.Handle("/api/", handler.Router())

	s.httpSrv = &http.Server{
		Addr:              s.cfg.HTTP.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// buildStore creates the persistence backend from config.
// Params: root config snapshot and clock.
// Returns: selected store backend.
func buildStore(cfg config.Config, clk clock.Clock) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		return store.NewSQLiteStore(cfg.Store.Path, clk.Now)
	default:
		return store.NewMemoryStore(clk.Now), nil
	}
}

// buildFeedProducer creates the change-feed publisher from config.
// Params: root config snapshot.
// Returns: NATS producer in nats mode, noop otherwise.
func buildFeedProducer(cfg config.Config) (feed.Producer, error) {
	if isSingleMode(cfg) || !cfg.Feed.Enabled {
		return feed.NoopProducer{}, nil
	}
	return feed.NewNATSProducer(cfg.Feed)
}

func isSingleMode(cfg config.Config) bool {
	return config.NormalizeServiceMode(cfg.Service.Mode) == config.ServiceModeSingle
}
