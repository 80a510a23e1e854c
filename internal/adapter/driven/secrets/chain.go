package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/port/driven"
)

var _ driven.CredentialsProvider = (*ChainProvider)(nil)

// NamedProvider labels a provider for logs.
type NamedProvider struct {
	Name     string
	Provider driven.CredentialsProvider
}

// ChainProvider asks each provider in order and returns the first login
// found. Providers reporting ErrCredentialsUnavailable are skipped; any other
// error stops the chain so a broken source is not silently bypassed.
type ChainProvider struct {
	providers []NamedProvider
	logger    *slog.Logger
}

// NewChainProvider creates a ChainProvider over providers.
func NewChainProvider(logger *slog.Logger, providers ...NamedProvider) *ChainProvider {
	return &ChainProvider{providers: providers, logger: logger}
}

// Fetch implements driven.CredentialsProvider.
func (c *ChainProvider) Fetch(ctx context.Context) (model.ControllerCredentials, error) {
	var skipped []error
	for _, p := range c.providers {
		creds, err := p.Provider.Fetch(ctx)
		if err == nil {
			c.logger.Debug("controller credentials found", "provider", p.Name)
			return creds, nil
		}
		if !errors.Is(err, model.ErrCredentialsUnavailable) {
			return model.ControllerCredentials{}, fmt.Errorf("%s provider: %w", p.Name, err)
		}
		c.logger.Debug("credentials provider has nothing", "provider", p.Name, "reason", err)
		skipped = append(skipped, fmt.Errorf("%s: %w", p.Name, err))
	}

	if len(skipped) == 0 {
		return model.ControllerCredentials{}, fmt.Errorf("%w: no providers configured", model.ErrCredentialsUnavailable)
	}
	return model.ControllerCredentials{}, errors.Join(skipped...)
}
