package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lazymail/phish-analyzer/internal/adapters/rspamd"
	"github.com/lazymail/phish-analyzer/internal/config"
	"github.com/lazymail/phish-analyzer/internal/core"
)

// ReputationFactory creates reputation engine clients
type ReputationFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewReputationFactory creates a new reputation factory
func NewReputationFactory(cfg *config.Config, logger *zap.Logger) *ReputationFactory {
	return &ReputationFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateReputationClient creates an rspamd client from the configuration
func (f *ReputationFactory) CreateReputationClient() (core.ReputationClient, error) {
	timeout, err := f.cfg.GetDuration("rspamd.timeout")
	if err != nil {
		return nil, fmt.Errorf("invalid rspamd timeout: %w", err)
	}

	return rspamd.NewClient(
		f.cfg.GetString("rspamd.host"),
		f.cfg.GetInt("rspamd.port"),
		timeout,
		f.logger,
	), nil
}
