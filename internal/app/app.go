package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/cardscan/internal/async"
	"github.com/joseph-ayodele/cardscan/internal/common"
	"github.com/joseph-ayodele/cardscan/internal/core"
	"github.com/joseph-ayodele/cardscan/internal/export"
	"github.com/joseph-ayodele/cardscan/internal/llm"
	"github.com/joseph-ayodele/cardscan/internal/llm/gemini"
	"github.com/joseph-ayodele/cardscan/internal/llm/openai"
	"github.com/joseph-ayodele/cardscan/internal/metrics"
	"github.com/joseph-ayodele/cardscan/internal/reconcile"
	"github.com/joseph-ayodele/cardscan/internal/repository"
	"github.com/joseph-ayodele/cardscan/internal/server"
)

// App is the wired pipeline shared by the daemon and the batch CLI.
type App struct {
	Config     *common.Config
	DB         *repository.DB
	Contacts   repository.ContactRepository
	View       *reconcile.View
	Reconciler *reconcile.Reconciler
	Dispatcher *async.Dispatcher
	Exporter   *export.Service
	Metrics    *metrics.Metrics
	Service    *server.ContactsService

	logger *slog.Logger
}

type options struct {
	inmem     bool
	extractor llm.Extractor
}

type Option func(*options)

// InMemory swaps the configured DSN for a private in-memory SQLite store.
func InMemory() Option {
	return func(o *options) { o.inmem = true }
}

// WithExtractor bypasses provider selection.
func WithExtractor(e llm.Extractor) Option {
	return func(o *options) { o.extractor = e }
}

// InMemoryDSN returns a fresh shared-cache SQLite DSN.
func InMemoryDSN() string {
	return "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
}

// Build opens the store, migrates it and wires every pipeline component.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	dsn := cfg.Database.DSN
	if o.inmem {
		dsn = InMemoryDSN()
		logger.Info("app.inmem_store")
	}
	db, err := repository.Open(ctx, repository.Config{
		DSN:             dsn,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, db, logger); err != nil {
		db.Close(logger)
		return nil, err
	}

	extractor := o.extractor
	if extractor == nil {
		extractor, err = NewExtractor(ctx, cfg.LLM, logger)
		if err != nil {
			db.Close(logger)
			return nil, err
		}
	}

	contacts := repository.NewContactRepository(db.Driver, logger)
	view := reconcile.NewView()
	rec := reconcile.New(contacts, view, logger, reconcile.WithStoreTimeout(cfg.Database.StoreTimeout))
	m := metrics.New()
	proc := core.NewProcessor(logger, extractor, rec, cfg.LLM.Timeout)
	d := async.NewDispatcher(proc, logger,
		async.WithRateLimit(cfg.Pipeline.RateLimitRPS),
		async.WithMetrics(m),
	)
	d.OnTransition(func(tr async.Transition) { view.Track(tr.Unit) })
	exp := export.NewService(contacts, logger)

	return &App{
		Config:     cfg,
		DB:         db,
		Contacts:   contacts,
		View:       view,
		Reconciler: rec,
		Dispatcher: d,
		Exporter:   exp,
		Metrics:    m,
		Service:    server.NewContactsService(d, rec, exp, logger),
		logger:     logger,
	}, nil
}

// NewExtractor builds the client for cfg.Provider.
func NewExtractor(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Extractor, error) {
	switch cfg.Provider {
	case common.ProviderGemini:
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case common.ProviderOpenAI, "":
		c, err := openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM_PROVIDER %q", cfg.Provider), common.ErrInvalidInput)
	}
}

// Close drains in-flight units and background confirmations, then releases the store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("dispatcher shutdown: %w", err))
	}
	if err := a.Reconciler.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("reconciler drain: %w", err))
	}
	a.View.Close()
	a.DB.Close(a.logger)
	return errors.Join(errs...)
}
