package detection

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/testforge/uidetect/internal/domain"
)

// Well-known field names.
const (
	FieldUsername     = "username"
	FieldEmail        = "email"
	FieldPassword     = "password"
	FieldSubmit       = "submit"
	FieldSearchInput  = "search_input"
	FieldSearchButton = "search_button"
	FieldProductLinks = "product_links"
	FieldNavLinks     = "nav_links"
	FieldActionLinks  = "action_links"
)

var (
	DefaultLoginFields  = []string{FieldUsername, FieldPassword, FieldSubmit}
	DefaultSearchFields = []string{FieldSearchInput, FieldSearchButton}
	DefaultLinkFields   = []string{FieldProductLinks, FieldNavLinks, FieldActionLinks}
)

var vocabulary = map[string]Field{
	FieldUsername: {
		Description: "username or account input",
		ElementType: domain.ElementInputText,
		Keywords:    []string{"username", "user", "email", "login", "account", "用户名", "账号", "帐号", "邮箱"},
		Selectors: SelectorTiers{
			CSS: []string{
				`input[name="username"]`,
				`input[id="username"]`,
				`input[name="user"]`,
				`input[name="login"]`,
				`input[autocomplete="username"]`,
				`input[type="email"]`,
				`input[name="email"]`,
				`input[name*="user"]`,
				`input[id*="user"]`,
			},
			XPath: []string{
				`//input[contains(@name, 'account')]`,
				`//input[contains(@id, 'login')]`,
				`//label[contains(., 'Username')]/following::input[1]`,
			},
			Text: []string{
				`input[placeholder*="Username"]`,
				`input[placeholder*="username"]`,
				`input[placeholder*="Email"]`,
				`input[aria-label*="Username"]`,
				`input[placeholder*="用户名"]`,
				`input[placeholder*="账号"]`,
			},
		},
	},
	FieldEmail: {
		Description: "email address input",
		ElementType: domain.ElementInputEmail,
		Keywords:    []string{"email", "e-mail", "mail", "邮箱", "电子邮件"},
		Selectors: SelectorTiers{
			CSS: []string{
				`input[type="email"]`,
				`input[name="email"]`,
				`input[autocomplete="email"]`,
				`input[id*="email"]`,
			},
			XPath: []string{
				`//input[contains(@name, 'mail')]`,
			},
			Text: []string{
				`input[placeholder*="mail"]`,
				`input[placeholder*="Email"]`,
				`input[aria-label*="mail"]`,
				`input[placeholder*="邮箱"]`,
			},
		},
	},
	FieldPassword: {
		Description: "password input",
		ElementType: domain.ElementInputPassword,
		Keywords:    []string{"password", "pass", "pwd", "passcode", "密码"},
		Selectors: SelectorTiers{
			CSS: []string{
				`input[type="password"]`,
				`input[name="password"]`,
				`input[autocomplete="current-password"]`,
			},
			XPath: []string{
				`//input[contains(@name, 'pass')]`,
				`//input[contains(@id, 'pass')]`,
			},
			Text: []string{
				`input[placeholder*="assword"]`,
				`input[aria-label*="assword"]`,
				`input[placeholder*="密码"]`,
			},
		},
	},
	FieldSubmit: {
		Description: "login or submit button",
		ElementType: domain.ElementButtonSubmit,
		Keywords:    []string{"submit", "login", "log in", "sign in", "signin", "continue", "登录", "登入", "提交"},
		Selectors: SelectorTiers{
			CSS: []string{
				`button[type="submit"]`,
				`input[type="submit"]`,
				`button[id*="login"]`,
				`button[name*="login"]`,
				`form button:not([type="button"])`,
			},
			XPath: []string{
				`//button[contains(., 'Login')]`,
				`//button[contains(., 'Log in')]`,
				`//button[contains(., 'Sign in')]`,
				`//input[@type='button' and contains(@value, 'Login')]`,
			},
			Text: []string{
				`button:has-text("Login")`,
				`button:has-text("Sign in")`,
				`[role="button"]:has-text("Login")`,
				`button:has-text("登录")`,
			},
		},
	},
	FieldSearchInput: {
		Description: "search query input",
		ElementType: domain.ElementInputSearch,
		Keywords:    []string{"search", "query", "find", "keyword", "搜索", "查找", "搜寻"},
		Selectors: SelectorTiers{
			CSS: []string{
				`input[type="search"]`,
				`input[name="q"]`,
				`input[name="query"]`,
				`input[name="search"]`,
				`input[role="searchbox"]`,
				`[role="search"] input`,
				`input[name*="search"]`,
				`input[id*="search"]`,
			},
			XPath: []string{
				`//input[contains(@placeholder, 'Search')]`,
				`//input[contains(@aria-label, 'Search')]`,
				`//form[contains(@action, 'search')]//input[@type='text']`,
			},
			Text: []string{
				`input[placeholder*="search"]`,
				`input[placeholder*="Search"]`,
				`input[placeholder*="搜索"]`,
			},
		},
	},
	FieldSearchButton: {
		Description: "button that submits the search",
		ElementType: domain.ElementButtonSubmit,
		Keywords:    []string{"search", "find", "go", "搜索", "查找"},
		Selectors: SelectorTiers{
			CSS: []string{
				`button[aria-label*="earch"]`,
				`button[class*="search"]`,
				`button[id*="search"]`,
				`input[type="submit"][value*="earch"]`,
				`[role="search"] button`,
			},
			XPath: []string{
				`//button[contains(., 'Search')]`,
				`//form[contains(@action, 'search')]//button`,
			},
			Text: []string{
				`button:has-text("Search")`,
				`button:has-text("搜索")`,
			},
		},
	},
	FieldProductLinks: {
		Description: "link to a product page",
		ElementType: domain.ElementLink,
		Keywords:    []string{"product", "item", "shop", "商品", "产品"},
		Selectors: SelectorTiers{
			CSS: []string{
				`a[class*="product"]`,
				`a[href*="/item"]`,
				`a[href*="/p/"]`,
			},
			XPath: []string{
				`//*[contains(@class, 'product')]//a[@href]`,
			},
		},
	},
	FieldNavLinks: {
		Description: "site navigation link",
		ElementType: domain.ElementLink,
		Keywords:    []string{"home", "menu", "about", "nav", "首页", "导航"},
		Selectors: SelectorTiers{
			CSS: []string{
				`nav a[href]`,
				`[role="navigation"] a[href]`,
				`header a[href]`,
				`a[class*="nav"]`,
			},
			XPath: []string{
				`//ul[contains(@class, 'menu')]//a[@href]`,
			},
		},
	},
	FieldActionLinks: {
		Description: "call to action link such as buy or sign up",
		ElementType: domain.ElementLink,
		Keywords:    []string{"buy", "cart", "checkout", "signup", "register", "购买", "购物车"},
		Selectors: SelectorTiers{
			CSS: []string{
				`a[role="button"]`,
				`a[class*="btn"]`,
				`a[class*="button"]`,
				`a[class*="cta"]`,
			},
			XPath: []string{
				`//a[contains(@class, 'action')]`,
			},
		},
	},
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "that": true, "which": true, "says": true, "say": true,
	"with": true, "of": true, "to": true, "for": true, "on": true, "in": true, "and": true,
	"or": true, "is": true, "it": true, "this": true, "labeled": true, "called": true,
}

// kindWords describe the element rather than its content.
var kindWords = map[string]domain.ElementType{
	"button":   domain.ElementButtonGeneric,
	"btn":      domain.ElementButtonGeneric,
	"link":     domain.ElementLink,
	"links":    domain.ElementLink,
	"url":      domain.ElementLink,
	"input":    domain.ElementInputText,
	"field":    domain.ElementInputText,
	"box":      domain.ElementInputText,
	"textbox":  domain.ElementInputText,
	"checkbox": domain.ElementCheckbox,
	"dropdown": domain.ElementDropdown,
	"select":   domain.ElementDropdown,
	"image":    domain.ElementImage,
	"icon":     domain.ElementImage,
}

// ResolveField returns the vocabulary entry for name, or a field derived from the
// words of name when it is not well known.
func ResolveField(name string, dctx Context) Field {
	if f, ok := vocabulary[name]; ok {
		f.Name = name
		if f.ElementType == domain.ElementLink {
			f.Selectors = linkTiers(f.Keywords, f.Selectors)
		}
		return f
	}
	return deriveField(name, name, dctx)
}

// DescriptionField builds a field for a natural-language element description.
func DescriptionField(description string) Field {
	return deriveField(description, description, ContextGeneric)
}

func deriveField(name, description string, dctx Context) Field {
	words := Words(name)
	elementType := inferElementType(words, dctx)

	var keywords []string
	for _, w := range words {
		if _, isKind := kindWords[w]; !isKind {
			keywords = append(keywords, w)
		}
	}
	if len(keywords) == 0 {
		keywords = words
	}

	f := Field{
		Name:        name,
		Description: description,
		ElementType: elementType,
		Keywords:    keywords,
		Inferred:    true,
	}
	if elementType == domain.ElementLink {
		f.Selectors = linkTiers(keywords, SelectorTiers{})
	}
	return f
}

// Words lowercases s and splits it into keyword candidates, dropping stop words.
func Words(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, w := range fields {
		if w == "" || stopWords[w] || seen[w] {
			continue
		}
		if len([]rune(w)) < 2 && isASCII(w) {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}

func inferElementType(words []string, dctx Context) domain.ElementType {
	for _, w := range words {
		if t, ok := kindWords[w]; ok {
			return t
		}
	}
	for _, w := range words {
		switch w {
		case "password", "密码":
			return domain.ElementInputPassword
		case "email":
			return domain.ElementInputEmail
		}
	}
	if dctx == ContextLinks {
		return domain.ElementLink
	}
	return domain.ElementButtonGeneric
}

// linkTiers prepends href patterns for every keyword and appends a visible-text tier.
func linkTiers(keywords []string, named SelectorTiers) SelectorTiers {
	tiers := SelectorTiers{XPath: named.XPath}
	for _, kw := range keywords {
		if !isASCII(kw) || strings.ContainsAny(kw, `"\`) {
			continue
		}
		tiers.CSS = append(tiers.CSS, fmt.Sprintf(`a[href*="%s"]`, strings.ReplaceAll(kw, " ", "-")))
	}
	tiers.CSS = append(tiers.CSS, named.CSS...)
	tiers.Text = append(tiers.Text, named.Text...)
	for _, kw := range keywords {
		if strings.ContainsAny(kw, `"\`) {
			continue
		}
		tiers.Text = append(tiers.Text, fmt.Sprintf(`a[href]:has-text("%s")`, kw))
	}
	return tiers
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
