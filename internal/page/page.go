// Package page abstracts the browser automation handle the detector reads from.
//
// A Page produces screenshots and resolves selectors. Selectors are CSS by default; a
// leading "xpath=", "//" or "(//" switches to XPath, and a trailing :has-text("...")
// keeps only elements whose text contains the quoted string (case-insensitive).
package page

import (
	"context"

	"github.com/testforge/uidetect/internal/domain"
)

// Page is the read-only view of a rendered document.
type Page interface {
	Screenshot(ctx context.Context) ([]byte, error)
	Locator(selector string) Locator
}

// Locator is a lazily resolved set of elements matching one selector.
type Locator interface {
	Count(ctx context.Context) (int, error)
	Nth(i int) Locator
	// BoundingBox returns nil when the element is not rendered.
	BoundingBox(ctx context.Context) (*domain.Rect, error)
	TextContent(ctx context.Context) (string, error)
	// GetAttribute returns "" when the attribute is absent.
	GetAttribute(ctx context.Context, name string) (string, error)
	IsVisible(ctx context.Context) (bool, error)
	TagName(ctx context.Context) (string, error)
}
