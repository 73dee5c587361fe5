package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagefinder/internal/browser/probe"
	"github.com/xkilldash9x/pagefinder/internal/config"
	"github.com/xkilldash9x/pagefinder/internal/engine"
	"github.com/xkilldash9x/pagefinder/internal/observability"
	"github.com/xkilldash9x/pagefinder/internal/store"
)

// components holds the services a page-driving command needs.
type components struct {
	Store  *store.Store
	Probe  probe.Probe
	Engine *engine.Engine
}

// Shutdown closes everything that was opened, in reverse order.
func (c *components) Shutdown() {
	logger := observability.GetLogger()
	if c.Engine != nil {
		c.Engine.Close()
	}
	if c.Probe != nil {
		if err := c.Probe.Close(); err != nil {
			logger.Warn("Error during browser shutdown", zap.Error(err))
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			logger.Warn("Error closing store", zap.Error(err))
		}
	}
}

// newComponents opens the store, launches the browser and wires the engine.
func newComponents(ctx context.Context, cfg *config.Config, opts ...engine.Option) (*components, error) {
	logger := observability.GetLogger()
	c := &components{}

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	c.Store = st

	p, err := probe.Launch(ctx, cfg.Browser, logger)
	if err != nil {
		c.Shutdown()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	c.Probe = p

	c.Engine = engine.New(cfg, p, st, logger, opts...)
	return c, nil
}

// openPage launches the components and loads url.
func openPage(ctx context.Context, cfg *config.Config, url string, opts ...engine.Option) (*components, error) {
	c, err := newComponents(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Engine.Navigate(ctx, url); err != nil {
		c.Shutdown()
		return nil, fmt.Errorf("failed to load %s: %w", url, err)
	}
	return c, nil
}

// settle gives late scripts a moment to render before discovery.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
