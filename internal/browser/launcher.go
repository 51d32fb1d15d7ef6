// Package browser opens live pages for detection.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/testforge/uidetect/internal/config"
	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/page"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 uidetect/1.0"

// Launcher owns one Chromium instance. Every Open gets an isolated browser context.
type Launcher struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	cfg     config.BrowserConfig
	logger  *zap.Logger
}

// NewLauncher starts Playwright and launches Chromium.
func NewLauncher(cfg config.BrowserConfig, logger *zap.Logger) (*Launcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	return &Launcher{pw: pw, browser: browser, cfg: cfg, logger: logger}, nil
}

// Open navigates a fresh context to rawURL. The returned func closes the context.
func (l *Launcher) Open(ctx context.Context, rawURL string) (page.Page, func(), error) {
	target, err := ValidateURL(rawURL)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	browserCtx, err := l.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  l.cfg.ViewportWidth,
			Height: l.cfg.ViewportHeight,
		},
		UserAgent: playwright.String(userAgent),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating browser context: %w", err)
	}
	closeCtx := func() {
		if err := browserCtx.Close(); err != nil {
			l.logger.Warn("failed to close browser context", zap.Error(err))
		}
	}

	pwPage, err := browserCtx.NewPage()
	if err != nil {
		closeCtx()
		return nil, nil, fmt.Errorf("creating page: %w", err)
	}

	timeout := float64(l.cfg.NavTimeout.Milliseconds())
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := float64(time.Until(deadline).Milliseconds()); remaining < timeout {
			timeout = remaining
		}
	}

	resp, err := pwPage.Goto(target.String(), playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(timeout),
	})
	if err != nil {
		closeCtx()
		return nil, nil, domain.ErrPageUnavailable(target.String(), err)
	}
	if resp != nil && resp.Status() >= 400 {
		closeCtx()
		return nil, nil, domain.ErrPageUnavailable(target.String(), fmt.Errorf("status %d", resp.Status()))
	}

	// Late scripts often render the form; a timeout here is not fatal.
	if err := pwPage.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(5000),
	}); err != nil {
		l.logger.Debug("network did not settle", zap.String("url", target.String()), zap.Error(err))
	}

	l.logger.Debug("opened page", zap.String("url", target.String()))
	return page.NewPlaywrightPage(pwPage, l.cfg.ActionTimeout), closeCtx, nil
}

// Close shuts down the browser and Playwright.
func (l *Launcher) Close() error {
	if l.browser != nil {
		l.browser.Close()
	}
	if l.pw != nil {
		return l.pw.Stop()
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.ErrValidationField("url", err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, domain.ErrValidationField("url", "scheme must be http or https")
	}
	if u.Host == "" {
		return nil, domain.ErrValidationField("url", "host is required")
	}
	return u, nil
}
