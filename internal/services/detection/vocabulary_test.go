package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/testforge/uidetect/internal/domain"
)

func TestResolveField_Known(t *testing.T) {
	f := ResolveField(FieldPassword, ContextLogin)

	assert.Equal(t, FieldPassword, f.Name)
	assert.Equal(t, domain.ElementInputPassword, f.ElementType)
	assert.False(t, f.Inferred)
	assert.Contains(t, f.Keywords, "密码")
	assert.Equal(t, `input[type="password"]`, f.Selectors.CSS[0])
}

func TestResolveField_KnownLinkGetsHrefTiers(t *testing.T) {
	f := ResolveField(FieldProductLinks, ContextLinks)

	assert.Equal(t, `a[href*="product"]`, f.Selectors.CSS[0])
	assert.Contains(t, f.Selectors.CSS, `a[class*="product"]`)
	assert.Contains(t, f.Selectors.Text, `a[href]:has-text("product")`)
	assert.NotContains(t, f.Selectors.CSS, `a[href*="商品"]`)

	// The shared vocabulary is not modified.
	assert.Len(t, vocabulary[FieldProductLinks].Selectors.CSS, 3)
}

func TestResolveField_Unknown(t *testing.T) {
	tests := []struct {
		name     string
		dctx     Context
		wantType domain.ElementType
		keywords []string
		links    bool
	}{
		{name: "nonexistent_field", dctx: ContextLogin, wantType: domain.ElementInputText, keywords: []string{"nonexistent"}},
		{name: "remember-me checkbox", dctx: ContextLogin, wantType: domain.ElementCheckbox, keywords: []string{"remember", "me"}},
		{name: "Checkout Button", dctx: ContextGeneric, wantType: domain.ElementButtonGeneric, keywords: []string{"checkout"}},
		{name: "pricing", dctx: ContextLinks, wantType: domain.ElementLink, keywords: []string{"pricing"}, links: true},
		{name: "help link", dctx: ContextGeneric, wantType: domain.ElementLink, keywords: []string{"help"}, links: true},
		{name: "confirm password", dctx: ContextGeneric, wantType: domain.ElementInputPassword, keywords: []string{"confirm", "password"}},
		{name: "button", dctx: ContextGeneric, wantType: domain.ElementButtonGeneric, keywords: []string{"button"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ResolveField(tt.name, tt.dctx)
			assert.True(t, f.Inferred)
			assert.Equal(t, tt.wantType, f.ElementType)
			assert.Equal(t, tt.keywords, f.Keywords)
			assert.Equal(t, tt.links, !f.Selectors.Empty())
		})
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"red", "button", "get", "started"}, Words("Red button that says 'Get Started'"))
	assert.Equal(t, []string{"search", "input"}, Words("search_input"))
	assert.Equal(t, []string{"登录按钮"}, Words("登录按钮"))
	assert.Equal(t, []string{"sign", "up"}, Words("Sign-up, sign UP"))
	assert.Empty(t, Words("a the"))
}

func TestDescriptionField(t *testing.T) {
	f := DescriptionField("red button that says Get Started")

	assert.Equal(t, "red button that says Get Started", f.Name)
	assert.Equal(t, f.Name, f.Description)
	assert.Equal(t, domain.ElementButtonGeneric, f.ElementType)
	assert.Equal(t, []string{"red", "get", "started"}, f.Keywords)
}

func TestKeywordPattern(t *testing.T) {
	p := KeywordPattern([]string{"log in", "user", "登录", " "})

	assert.True(t, p.MatchString("Please LOG IN"))
	assert.True(t, p.MatchString("立即登录"))
	assert.True(t, p.MatchString("user name"))
	assert.False(t, p.MatchString("Username"))
	assert.False(t, p.MatchString("blog input"))

	assert.Nil(t, KeywordPattern(nil))
	assert.Nil(t, KeywordPattern([]string{""}))
}
