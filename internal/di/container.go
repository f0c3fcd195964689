package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/lazymail/phish-analyzer/internal/adapters/filter"
	"github.com/lazymail/phish-analyzer/internal/adapters/httpapi"
	"github.com/lazymail/phish-analyzer/internal/analysis"
	"github.com/lazymail/phish-analyzer/internal/config"
	"github.com/lazymail/phish-analyzer/internal/core"
	"github.com/lazymail/phish-analyzer/internal/factory"
	"github.com/lazymail/phish-analyzer/internal/logging"
	"github.com/lazymail/phish-analyzer/internal/ports"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewReputationFactory); err != nil {
		return nil, err
	}

	// Register reputation client
	if err := container.Provide(func(f *factory.ReputationFactory) (core.ReputationClient, error) {
		return f.CreateReputationClient()
	}); err != nil {
		return nil, err
	}

	// Register report store
	if err := container.Provide(func(f *factory.StoreFactory) (core.MessageStore, error) {
		return f.CreateMessageStore()
	}); err != nil {
		return nil, err
	}

	// Register analyzer
	if err := container.Provide(func(cfg *config.Config, reputation core.ReputationClient, logger *zap.Logger) (*analysis.Analyzer, error) {
		timeout, err := cfg.GetDuration("rspamd.timeout")
		if err != nil {
			return nil, err
		}
		return analysis.NewAnalyzer(reputation, logger, timeout), nil
	}); err != nil {
		return nil, err
	}

	// Register SMTP filter
	if err := container.Provide(func(
		cfg *config.Config,
		analyzer *analysis.Analyzer,
		messageStore core.MessageStore,
		logger *zap.Logger,
	) ports.MessageFilter {
		return filter.NewSMTPFilter(
			analyzer,
			messageStore,
			logger,
			cfg.GetString("filter.listen_address"),
			cfg.GetBool("filter.block_quarantine"),
			cfg.GetString("filter.headers.classification"),
			cfg.GetString("filter.headers.score"),
			cfg.GetString("filter.headers.action"),
			cfg.GetString("filter.relay_address"),
			cfg.GetInt("filter.relay_port"),
			cfg.GetBool("filter.relay_enabled"),
		)
	}); err != nil {
		return nil, err
	}

	// Register HTTP API server
	if err := container.Provide(func(
		cfg *config.Config,
		analyzer *analysis.Analyzer,
		messageStore core.MessageStore,
		reputation core.ReputationClient,
		logger *zap.Logger,
	) *httpapi.Server {
		return httpapi.NewServer(
			analyzer,
			messageStore,
			reputation,
			logger,
			cfg.GetString("http.listen_address"),
			cfg.GetStringSlice("http.cors_origins"),
		)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
