package page

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/uidetect/internal/domain"
)

const loginHTML = `<!doctype html>
<html><head><title>Sign in</title><script>var x = "Login";</script></head>
<body>
  <form action="/session">
    <input type="hidden" name="csrf" value="t">
    <input type="email" name="email" placeholder="Email address">
    <input type="password" name="password" data-bbox="100,200,300,40">
    <div style="display: none"><button>Login</button></div>
    <button type="submit">Login</button>
  </form>
  <a href="/product/x" class="product-link">Blue shoe</a>
</body></html>`

func newLoginPage(t *testing.T) *StaticPage {
	t.Helper()
	p, err := NewStaticPageFromString(loginHTML)
	require.NoError(t, err)
	return p
}

func TestStaticPage_CSSLocator(t *testing.T) {
	ctx := context.Background()
	p := newLoginPage(t)

	count, err := p.Locator(`input[type="email"]`).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	name, err := p.Locator(`input[type="email"]`).GetAttribute(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "email", name)

	missing, err := p.Locator(`input[type="email"]`).GetAttribute(ctx, "aria-label")
	require.NoError(t, err)
	assert.Empty(t, missing)

	tag, err := p.Locator("a.product-link").TagName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", tag)
}

func TestStaticPage_HasTextFilter(t *testing.T) {
	ctx := context.Background()
	p := newLoginPage(t)

	loc := p.Locator(`button:has-text("login")`)
	count, err := loc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "has-text matches case-insensitively")

	hidden, err := loc.Nth(0).IsVisible(ctx)
	require.NoError(t, err)
	assert.False(t, hidden)

	box, err := loc.Nth(0).BoundingBox(ctx)
	require.NoError(t, err)
	assert.Nil(t, box, "hidden elements have no box")

	shown, err := loc.Nth(1).IsVisible(ctx)
	require.NoError(t, err)
	assert.True(t, shown)
}

func TestStaticPage_XPathLocator(t *testing.T) {
	ctx := context.Background()
	p := newLoginPage(t)

	loc := p.Locator(`//input[@type='password']`)
	count, err := loc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	box, err := loc.BoundingBox(ctx)
	require.NoError(t, err)
	require.NotNil(t, box)
	assert.Equal(t, domain.Rect{X: 100, Y: 200, Width: 300, Height: 40}, *box)

	_, err = p.Locator(`//input[`).Count(ctx)
	assert.Error(t, err)
}

func TestStaticPage_SyntheticLayoutIsDeterministic(t *testing.T) {
	ctx := context.Background()
	p := newLoginPage(t)

	first, err := p.Locator(`input[type="email"]`).BoundingBox(ctx)
	require.NoError(t, err)
	second, err := p.Locator(`input[name="email"]`).BoundingBox(ctx)
	require.NoError(t, err)

	require.NotNil(t, first)
	assert.Equal(t, *first, *second)
	assert.False(t, first.Empty())
}

func TestStaticPage_HiddenInputs(t *testing.T) {
	ctx := context.Background()
	p := newLoginPage(t)

	visible, err := p.Locator(`input[name="csrf"]`).IsVisible(ctx)
	require.NoError(t, err)
	assert.False(t, visible)
}

func TestStaticPage_NthOutOfRange(t *testing.T) {
	ctx := context.Background()
	p := newLoginPage(t)

	loc := p.Locator("a").Nth(3)
	count, err := loc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = loc.TextContent(ctx)
	assert.Error(t, err)
}

func TestStaticPage_Screenshot(t *testing.T) {
	ctx := context.Background()
	p := newLoginPage(t)

	_, err := p.Screenshot(ctx)
	assert.ErrorIs(t, err, domain.ErrNoScreenshot)

	png := []byte{0x89, 'P', 'N', 'G'}
	got, err := p.WithScreenshot(png).Screenshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, png, got)
}
