package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/testforge/uidetect/internal/config"
	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/page"
)

// RodLauncher is the go-rod counterpart of Launcher. Each Open runs in an incognito context.
type RodLauncher struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	cfg      config.BrowserConfig
	logger   *zap.Logger
}

// NewRodLauncher starts a local Chromium through the rod launcher.
func NewRodLauncher(cfg config.BrowserConfig, logger *zap.Logger) (*RodLauncher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(true).
		Set("disable-dev-shm-usage")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	return &RodLauncher{launcher: l, browser: browser, cfg: cfg, logger: logger}, nil
}

// Open navigates a fresh incognito page to rawURL. The returned func disposes the context.
func (l *RodLauncher) Open(ctx context.Context, rawURL string) (page.Page, func(), error) {
	target, err := ValidateURL(rawURL)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	incognito, err := l.browser.Incognito()
	if err != nil {
		return nil, nil, fmt.Errorf("creating browser context: %w", err)
	}
	closeCtx := func() {
		if err := incognito.Close(); err != nil {
			l.logger.Warn("failed to close browser context", zap.Error(err))
		}
	}

	rodPage, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		closeCtx()
		return nil, nil, fmt.Errorf("creating page: %w", err)
	}

	if err := rodPage.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             l.cfg.ViewportWidth,
		Height:            l.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		closeCtx()
		return nil, nil, fmt.Errorf("setting viewport: %w", err)
	}
	if err := rodPage.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
		l.logger.Debug("failed to set user agent", zap.Error(err))
	}

	nav := rodPage.Context(ctx).Timeout(l.cfg.NavTimeout)
	if err := nav.Navigate(target.String()); err != nil {
		closeCtx()
		return nil, nil, domain.ErrPageUnavailable(target.String(), err)
	}
	if err := nav.WaitLoad(); err != nil {
		closeCtx()
		return nil, nil, domain.ErrPageUnavailable(target.String(), err)
	}

	if err := rodPage.Context(ctx).WaitIdle(5 * time.Second); err != nil {
		l.logger.Debug("network did not settle", zap.String("url", target.String()), zap.Error(err))
	}

	l.logger.Debug("opened page", zap.String("url", target.String()), zap.String("engine", "rod"))
	return page.NewRodPage(rodPage), closeCtx, nil
}

// Close disconnects and kills the launched browser.
func (l *RodLauncher) Close() error {
	var err error
	if l.browser != nil {
		err = l.browser.Close()
	}
	if l.launcher != nil {
		l.launcher.Kill()
		l.launcher.Cleanup()
	}
	return err
}
