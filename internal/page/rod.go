package page

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/testforge/uidetect/internal/domain"
)

// RodPage adapts a go-rod page. Rod has no has-text engine, so the text filter is applied
// after the CSS or XPath query.
type RodPage struct {
	page *rod.Page
}

func NewRodPage(page *rod.Page) *RodPage {
	return &RodPage{page: page}
}

func (p *RodPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (p *RodPage) Locator(selector string) Locator {
	return &rodLocator{page: p.page, sel: ParseSelector(selector), index: -1}
}

type rodLocator struct {
	page  *rod.Page
	sel   Selector
	index int
}

func (l *rodLocator) elements(ctx context.Context) (rod.Elements, error) {
	page := l.page.Context(ctx)

	var (
		els rod.Elements
		err error
	)
	if l.sel.XPath {
		els, err = page.ElementsX(l.sel.Query)
	} else {
		els, err = page.Elements(l.sel.Query)
	}
	if err != nil {
		return nil, err
	}

	if l.sel.HasText != "" {
		filtered := els[:0:0]
		for _, el := range els {
			text, err := el.Text()
			if err != nil {
				continue
			}
			if l.sel.MatchesText(text) {
				filtered = append(filtered, el)
			}
		}
		els = filtered
	}

	if l.index < 0 {
		return els, nil
	}
	if l.index >= len(els) {
		return nil, nil
	}
	return els[l.index : l.index+1], nil
}

func (l *rodLocator) element(ctx context.Context) (*rod.Element, error) {
	els, err := l.elements(ctx)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("no element matches %q", l.sel.Raw)
	}
	return els[0], nil
}

func (l *rodLocator) Count(ctx context.Context) (int, error) {
	els, err := l.elements(ctx)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

func (l *rodLocator) Nth(i int) Locator {
	return &rodLocator{page: l.page, sel: l.sel, index: i}
}

func (l *rodLocator) BoundingBox(ctx context.Context) (*domain.Rect, error) {
	el, err := l.element(ctx)
	if err != nil {
		return nil, err
	}
	shape, err := el.Shape()
	if err != nil {
		return nil, err
	}
	box := shape.Box()
	if box == nil {
		return nil, nil
	}
	return &domain.Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

func (l *rodLocator) TextContent(ctx context.Context) (string, error) {
	el, err := l.element(ctx)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (l *rodLocator) GetAttribute(ctx context.Context, name string) (string, error) {
	el, err := l.element(ctx)
	if err != nil {
		return "", err
	}
	v, err := el.Attribute(name)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

func (l *rodLocator) IsVisible(ctx context.Context) (bool, error) {
	el, err := l.element(ctx)
	if err != nil {
		return false, err
	}
	return el.Visible()
}

func (l *rodLocator) TagName(ctx context.Context) (string, error) {
	el, err := l.element(ctx)
	if err != nil {
		return "", err
	}
	v, err := el.Eval(`() => this.tagName`)
	if err != nil {
		return "", err
	}
	return strings.ToLower(v.Value.Str()), nil
}
