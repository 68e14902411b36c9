package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/iho/sagaledger/internal/adapter/repository/memory"
	"github.com/iho/sagaledger/internal/domain"
	"github.com/iho/sagaledger/internal/infrastructure/config"
	"github.com/iho/sagaledger/internal/infrastructure/logger"
	"github.com/iho/sagaledger/internal/infrastructure/metrics"
	"github.com/iho/sagaledger/internal/usecase"
)

// Options configures New.
type Options struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Registry    *prometheus.Registry // used when metrics are enabled; created if nil
	IDGenerator usecase.IDGenerator  // optional
	OnError     memory.ErrorHandler  // optional
}

// App is a fully wired ledger: the event store, both controllers and both
// processors subscribed to their stream kinds.
type App struct {
	Store     *memory.EventStore
	Accounts  *usecase.AccountController
	Transfers *usecase.TransferController
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry

	cfg    *config.Config
	logger zerolog.Logger
}

// New wires the ledger.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	a := &App{
		cfg:    cfg,
		logger: opts.Logger,
	}

	if cfg.MetricsEnabled {
		a.Registry = opts.Registry
		if a.Registry == nil {
			a.Registry = prometheus.NewRegistry()
		}
		a.Metrics = metrics.New(a.Registry)
	}

	storeLogger := logger.Component(opts.Logger, "event_store")
	a.Store = memory.NewEventStore(memory.Config{
		Logger:      &storeLogger,
		Metrics:     a.Metrics,
		IDGenerator: opts.IDGenerator,
		OnError:     opts.OnError,
	})

	retrierLogger := logger.Component(opts.Logger, "retrier")
	retrier := memory.NewRetrier(memory.RetrierConfig{
		MaxRetries:      cfg.ConflictRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		MaxElapsedTime:  cfg.RetryMaxElapsed,
		Logger:          &retrierLogger,
	})

	// A nil *Metrics stored in the interface would not compare equal to nil.
	var recorder usecase.CommandRecorder
	if a.Metrics != nil {
		recorder = a.Metrics
	}

	a.Accounts = usecase.NewAccountController(a.Store, retrier, recorder, logger.Component(opts.Logger, "account_controller"))
	a.Transfers = usecase.NewTransferController(a.Store, retrier, recorder, logger.Component(opts.Logger, "transfer_controller"))

	accountProcessor := usecase.NewAccountProcessor(a.Transfers, logger.Component(opts.Logger, "account_processor"))
	transferProcessor := usecase.NewTransferProcessor(a.Accounts, a.Transfers, a.Store, logger.Component(opts.Logger, "transfer_processor"))

	if err := a.Store.Subscribe(domain.StreamKindAccount, accountProcessor); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", accountProcessor.Name(), err)
	}
	if err := a.Store.Subscribe(domain.StreamKindTransfer, transferProcessor); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", transferProcessor.Name(), err)
	}

	return a, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Settle waits until the saga has processed every event appended so far, or
// the configured settle timeout elapses.
func (a *App) Settle(ctx context.Context) error {
	if a.cfg.SettleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.SettleTimeout)
		defer cancel()
	}

	if err := a.Store.WaitIdle(ctx); err != nil {
		return fmt.Errorf("settle: %d deliveries still pending: %w", a.Store.Pending(), err)
	}
	return nil
}

// Close stops the processors.
func (a *App) Close() error {
	a.logger.Debug().Msg("closing ledger")
	return a.Store.Close()
}
