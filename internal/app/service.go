package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"reminders/internal/api"
	"reminders/internal/clock"
	"reminders/internal/config"
	"reminders/internal/gateway"
	"reminders/internal/ingest"
	"reminders/internal/ledger"
	"reminders/internal/logging"
	"reminders/internal/metrics"
)

const startupTimeout = 15 * time.Second

// Service composes runtime dependencies and process lifecycle.
// Params: config snapshot and shared runtime components.
// Returns: runnable reminders service.
type Service struct {
	cfg          config.Config
	logger       *slog.Logger
	closeLog     func()
	metrics      *metrics.Metrics
	gateway      gateway.Gateway
	ledger       ledger.Ledger
	orchestrator *Orchestrator
	httpSrv      *http.Server
	natsSub      interface{ Close() error }
	readyFlag    atomic.Bool
	sweeps       sync.WaitGroup
	clock        clock.Clock
}

// NewService builds service instance from config source.
// Params: config source and optional clock; nil uses the configured time zone.
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	logger = logger.With("service", cfg.Service.Name)

	loc, err := cfg.Service.Location()
	if err != nil {
		closeLog()
		return nil, err
	}
	if clk == nil {
		clk = clock.RealClock{Location: loc}
	}

	service := &Service{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		metrics:  metrics.New(),
		clock:    clk,
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if err := service.buildGateway(ctx, loc); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	if err := service.buildLedger(ctx); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	service.orchestrator = NewOrchestrator(service.gateway, service.ledger, clk, logger, service.metrics, cfg.Service.SentBy)

	if err := service.buildHTTPServer(loc); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	if err := service.buildNATSSubscriber(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	return service, nil
}

// Orchestrator exposes the pipeline for embedding callers and tests.
// Params: none.
// Returns: orchestrator bound to this service's gateway and ledger.
func (s *Service) Orchestrator() *Orchestrator {
	return s.orchestrator
}

// Handler returns the HTTP handler, or nil when HTTP is disabled.
// Params: none.
// Returns: root router.
func (s *Service) Handler() http.Handler {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Handler
}

// Run starts service lifecycle and blocks until shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	errChan := make(chan error, 1)
	if s.httpSrv != nil {
		listener, err := net.Listen("tcp", s.httpSrv.Addr)
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("http listen %q: %w", s.httpSrv.Addr, err)
		}
		go func() {
			s.logger.Info("http server starting", "listen", listener.Addr().String())
			err := s.httpSrv.Serve(listener)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	if s.cfg.Service.SweepOnStart {
		s.startSweep(runCtx, "startup")
	}
	if interval := s.cfg.Service.SweepInterval(); interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-runCtx.Done():
					return
				case <-ticker.C:
					s.startSweep(runCtx, "schedule")
				}
			}
		}()
	}

	s.readyFlag.Store(true)
	s.logger.Info("service started",
		"gateway", s.cfg.Gateway.Driver,
		"ledger", s.cfg.Ledger.Backend,
		"sweep_interval", s.cfg.Service.SweepInterval().String(),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		runCancel()
		return s.shutdown()
	case err := <-errChan:
		runCancel()
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		runCancel()
		return s.shutdown()
	}
}

// startSweep runs one batch sweep in background; overlapping sweeps are allowed.
// Params: run context and trigger reason for logs.
// Returns: none.
func (s *Service) startSweep(ctx context.Context, reason string) {
	s.sweeps.Add(1)
	go func() {
		defer s.sweeps.Done()
		result := s.orchestrator.Sweep(ctx)
		s.logger.Info("scheduled sweep done",
			logging.KeyRunID, result.RunID,
			"reason", reason,
			"pending", result.Pending,
			"sent", result.Sent,
			"partial", result.Partial,
		)
	}()
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
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats subscriber close failed", "error", err.Error())
			markErr(fmt.Errorf("nats subscriber close: %w", err))
		}
	}
	s.sweeps.Wait()
	if err := s.ledger.Close(); err != nil {
		s.logger.Error("ledger close failed", "error", err.Error())
		markErr(fmt.Errorf("ledger close: %w", err))
	}
	if err := s.gateway.Close(); err != nil {
		s.logger.Error("gateway close failed", "error", err.Error())
		markErr(fmt.Errorf("gateway close: %w", err))
	}
	s.logger.Info("service stopped")
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.natsSub != nil {
		_ = s.natsSub.Close()
		s.natsSub = nil
	}
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
		s.httpSrv = nil
	}
	if s.ledger != nil {
		_ = s.ledger.Close()
		s.ledger = nil
	}
	if s.gateway != nil {
		_ = s.gateway.Close()
		s.gateway = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildGateway opens the configured entity source.
// Params: startup context and workshop location.
// Returns: open/migrate error.
func (s *Service) buildGateway(ctx context.Context, loc *time.Location) error {
	if !s.cfg.Gateway.IsSQL() {
		s.gateway = gateway.NewRESTGateway(s.cfg.Gateway.REST, loc).WithLogger(s.logger)
		return nil
	}
	sqlGateway, err := gateway.OpenSQL(ctx, s.cfg.Gateway, loc)
	if err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	s.gateway = sqlGateway.WithLogger(s.logger)
	if s.cfg.Gateway.Migrate {
		if err := sqlGateway.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate gateway: %w", err)
		}
	}
	return nil
}

// buildLedger creates the delivery ledger backend and its read-through cache.
// Params: startup context.
// Returns: backend setup error.
func (s *Service) buildLedger(ctx context.Context) error {
	var backend ledger.Ledger
	switch s.cfg.Ledger.Backend {
	case config.LedgerBackendMemory:
		s.ledger = ledger.NewMemoryLedger()
		return nil
	case config.LedgerBackendSQL:
		sqlGateway, ok := s.gateway.(*gateway.SQLGateway)
		if !ok {
			return fmt.Errorf("ledger.backend %q requires a SQL gateway", s.cfg.Ledger.Backend)
		}
		sqlLedger := ledger.NewSQLLedger(sqlGateway.DB())
		if err := sqlLedger.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate ledger: %w", err)
		}
		backend = sqlLedger
	case config.LedgerBackendNATS:
		natsLedger, err := ledger.NewNATSLedger(s.cfg.Ledger.NATS)
		if err != nil {
			return err
		}
		backend = natsLedger
	case config.LedgerBackendRedis:
		redisLedger, err := ledger.NewRedisLedger(ctx, s.cfg.Ledger.Redis)
		if err != nil {
			return err
		}
		backend = redisLedger
	default:
		return fmt.Errorf("ledger.backend has unsupported value %q", s.cfg.Ledger.Backend)
	}

	if ttl := s.cfg.Ledger.CacheTTL(); ttl > 0 {
		s.ledger = ledger.NewCachedLedger(backend, ttl)
		return nil
	}
	s.ledger = backend
	return nil
}

// buildHTTPServer wires router with API, health, ready, and metrics endpoints.
// Params: workshop location for date path parameters.
// Returns: setup error.
func (s *Service) buildHTTPServer(loc *time.Location) error {
	if !s.cfg.HTTP.Enabled {
		return nil
	}
	router := mux.NewRouter()
	router.HandleFunc(s.cfg.HTTP.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.HandleFunc(s.cfg.HTTP.ReadyPath, s.handleReady).Methods(http.MethodGet)
	router.Handle(s.cfg.HTTP.MetricsPath, s.metrics.Handler()).Methods(http.MethodGet)

	api.Register(router, s.orchestrator, api.Options{
		Prefix:       s.cfg.HTTP.APIPrefix,
		MaxBodyBytes: s.cfg.HTTP.MaxBodyBytes,
		Location:     loc,
		Logger:       s.logger.With("component", "api"),
	})

	s.httpSrv = &http.Server{
		Addr:              s.cfg.HTTP.Listen,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// handleReady reports ready once Run started and the gateway answers.
func (s *Service) handleReady(writer http.ResponseWriter, request *http.Request) {
	if !s.readyFlag.Load() {
		writer.WriteHeader(http.StatusServiceUnavailable)
		_, _ = writer.Write([]byte("not-ready"))
		return
	}
	ctx, cancel := context.WithTimeout(request.Context(), 2*time.Second)
	defer cancel()
	if err := s.gateway.Ping(ctx); err != nil {
		writer.WriteHeader(http.StatusServiceUnavailable)
		_, _ = writer.Write([]byte("gateway-unavailable"))
		return
	}
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write([]byte("ready"))
}

// buildNATSSubscriber starts NATS ingest when enabled.
// Params: none.
// Returns: initialization error.
func (s *Service) buildNATSSubscriber() error {
	if !s.cfg.Ingest.NATS.Enabled {
		return nil
	}
	subscriber, err := ingest.NewNATSSubscriber(s.cfg.Ingest.NATS, s.orchestrator, s.logger)
	if err != nil {
		return err
	}
	s.natsSub = subscriber
	return nil
}
