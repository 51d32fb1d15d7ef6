package page

import (
	"regexp"
	"strings"
)

// Selector is a parsed selector string.
type Selector struct {
	Raw     string
	Query   string
	XPath   bool
	HasText string
}

var hasTextRe = regexp.MustCompile(`:has-text\(\s*(?:"([^"]*)"|'([^']*)')\s*\)\s*$`)

// ParseSelector splits a selector into its engine, query and optional text filter.
func ParseSelector(raw string) Selector {
	s := Selector{Raw: raw, Query: strings.TrimSpace(raw)}

	switch {
	case strings.HasPrefix(s.Query, "xpath="):
		s.XPath = true
		s.Query = strings.TrimPrefix(s.Query, "xpath=")
		return s
	case strings.HasPrefix(s.Query, "//"), strings.HasPrefix(s.Query, "(//"):
		s.XPath = true
		return s
	case strings.HasPrefix(s.Query, "css="):
		s.Query = strings.TrimPrefix(s.Query, "css=")
	}

	if m := hasTextRe.FindStringSubmatchIndex(s.Query); m != nil {
		text := ""
		if m[2] >= 0 {
			text = s.Query[m[2]:m[3]]
		} else if m[4] >= 0 {
			text = s.Query[m[4]:m[5]]
		}
		s.HasText = text
		s.Query = strings.TrimSpace(s.Query[:m[0]])
		if s.Query == "" {
			s.Query = "*"
		}
	}

	return s
}

// MatchesText applies the has-text filter to an element's text.
func (s Selector) MatchesText(text string) bool {
	if s.HasText == "" {
		return true
	}
	return strings.Contains(strings.ToLower(normalizeSpace(text)), strings.ToLower(normalizeSpace(s.HasText)))
}

// PlaywrightSelector renders the selector in Playwright syntax.
func (s Selector) PlaywrightSelector() string {
	if s.XPath {
		return "xpath=" + s.Query
	}
	if s.HasText != "" {
		return s.Query + `:has-text("` + s.HasText + `")`
	}
	return s.Query
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
