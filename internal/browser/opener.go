package browser

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/testforge/uidetect/internal/config"
	"github.com/testforge/uidetect/internal/page"
)

// Opener turns a URL into a detectable page. The release func must be called once the
// page is no longer needed.
type Opener interface {
	Open(ctx context.Context, rawURL string) (page.Page, func(), error)
	Close() error
}

var (
	_ Opener = (*Launcher)(nil)
	_ Opener = (*RodLauncher)(nil)
)

// New starts the engine named in cfg.
func New(cfg config.BrowserConfig, logger *zap.Logger) (Opener, error) {
	switch strings.ToLower(cfg.Engine) {
	case "", "playwright":
		return NewLauncher(cfg, logger)
	case "rod":
		return NewRodLauncher(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown browser engine %q", cfg.Engine)
	}
}
