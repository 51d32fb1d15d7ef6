package page

import (
	"context"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/testforge/uidetect/internal/domain"
)

// DefaultActionTimeout bounds each locator read so a missing element does not wait for
// Playwright's 30s auto-wait.
const DefaultActionTimeout = 2 * time.Second

// PlaywrightPage adapts a playwright.Page.
type PlaywrightPage struct {
	page    playwright.Page
	timeout float64
}

// NewPlaywrightPage wraps page. A zero timeout uses DefaultActionTimeout.
func NewPlaywrightPage(page playwright.Page, actionTimeout time.Duration) *PlaywrightPage {
	if actionTimeout <= 0 {
		actionTimeout = DefaultActionTimeout
	}
	return &PlaywrightPage{page: page, timeout: float64(actionTimeout.Milliseconds())}
}

func (p *PlaywrightPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypePng,
		Timeout: playwright.Float(p.timeout * 5),
	})
}

func (p *PlaywrightPage) Locator(selector string) Locator {
	sel := ParseSelector(selector)
	return &playwrightLocator{loc: p.page.Locator(sel.PlaywrightSelector()), timeout: p.timeout}
}

type playwrightLocator struct {
	loc     playwright.Locator
	timeout float64
}

func (l *playwrightLocator) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return l.loc.Count()
}

func (l *playwrightLocator) Nth(i int) Locator {
	return &playwrightLocator{loc: l.loc.Nth(i), timeout: l.timeout}
}

func (l *playwrightLocator) BoundingBox(ctx context.Context) (*domain.Rect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	box, err := l.loc.BoundingBox(playwright.LocatorBoundingBoxOptions{
		Timeout: playwright.Float(l.timeout),
	})
	if err != nil || box == nil {
		return nil, err
	}
	return &domain.Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

func (l *playwrightLocator) TextContent(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.loc.TextContent(playwright.LocatorTextContentOptions{
		Timeout: playwright.Float(l.timeout),
	})
}

func (l *playwrightLocator) GetAttribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.loc.GetAttribute(name, playwright.LocatorGetAttributeOptions{
		Timeout: playwright.Float(l.timeout),
	})
}

func (l *playwrightLocator) IsVisible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return l.loc.IsVisible()
}

func (l *playwrightLocator) TagName(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := l.loc.Evaluate("el => el.tagName", nil, playwright.LocatorEvaluateOptions{
		Timeout: playwright.Float(l.timeout),
	})
	if err != nil {
		return "", err
	}
	tag, _ := v.(string)
	return strings.ToLower(tag), nil
}
