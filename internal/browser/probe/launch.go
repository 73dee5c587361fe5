package probe

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/pagefinder/internal/config"
	"go.uber.org/zap"
)

// Launch starts a browser with the driver named in cfg and returns its probe.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (Probe, error) {
	switch cfg.Driver {
	case config.DriverChromedp, "":
		return NewCDPProbe(ctx, cfg, logger)
	case config.DriverRod:
		return NewRodProbe(ctx, cfg, logger)
	}
	return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
}
