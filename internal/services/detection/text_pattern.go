package detection

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/testforge/uidetect/internal/domain"
)

// ConfidenceTextPattern is fixed regardless of match quality.
const ConfidenceTextPattern = 0.5

const maxTextCandidates = 200

// textSource is a group of elements and the attributes whose text is matched.
type textSource struct {
	selector   string
	attributes []string
	content    bool
}

var (
	inputSources = []textSource{
		{selector: `input:not([type="hidden"])`, attributes: []string{"placeholder", "aria-label", "title"}},
		{selector: `textarea`, attributes: []string{"placeholder", "aria-label", "title"}},
	}
	buttonSources = []textSource{
		{selector: `button`, attributes: []string{"aria-label", "title"}, content: true},
		{selector: `input[type="submit"]`, attributes: []string{"value", "aria-label"}},
		{selector: `input[type="button"]`, attributes: []string{"value", "aria-label"}},
		{selector: `[role="button"]`, attributes: []string{"aria-label"}, content: true},
	}
	linkSources = []textSource{
		{selector: `a[href]`, attributes: []string{"aria-label", "title"}, content: true},
	}
)

func sourcesFor(f Field) []textSource {
	switch {
	case f.Inferred:
		all := append([]textSource{}, buttonSources...)
		all = append(all, linkSources...)
		return append(all, inputSources...)
	case f.ElementType.IsInput():
		return inputSources
	case f.ElementType == domain.ElementLink:
		return linkSources
	}
	return buttonSources
}

// KeywordPattern compiles keywords into one case-insensitive pattern. ASCII keywords
// match on word boundaries; others match as substrings.
func KeywordPattern(keywords []string) *regexp.Regexp {
	alts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if isASCII(kw) {
			alts = append(alts, `\b`+regexp.QuoteMeta(kw)+`\b`)
		} else {
			alts = append(alts, regexp.QuoteMeta(kw))
		}
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)
}

// textPattern is the last resort: keyword search over visible text, placeholders and
// aria-labels.
type textPattern struct{}

func (textPattern) Name() domain.DetectionStrategy { return domain.StrategyTextPattern }

func (textPattern) Attempt(ctx context.Context, s *session, fields []Field, _ Context) (Results, error) {
	var mu sync.Mutex
	found := make(Results)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FieldConcurrency)
	for _, f := range fields {
		pattern := KeywordPattern(f.Keywords)
		if pattern == nil {
			continue
		}
		g.Go(func() error {
			r, ok, err := matchText(gctx, s, f, pattern)
			if err != nil {
				return err
			}
			if ok {
				mu.Lock()
				found[f.Name] = r
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return found, err
	}
	return found, nil
}

func matchText(ctx context.Context, s *session, f Field, pattern *regexp.Regexp) (domain.DetectionResult, bool, error) {
	var result domain.DetectionResult
	for _, src := range sourcesFor(f) {
		ok, err := eachVisible(ctx, s.page.Locator(src.selector), maxTextCandidates, func(c candidate) (bool, error) {
			match := src.match(ctx, c, pattern)
			if match == "" {
				return false, nil
			}
			result = domResult(ctx, f, c, domain.StrategyTextPattern, ConfidenceTextPattern).
				WithMeta(domain.MetaPattern, pattern.String()).
				WithMeta(domain.MetaKeyword, strings.ToLower(match))
			return true, nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return result, false, ctx.Err()
			}
			s.logger.Debug("text source failed",
				zap.String("request_id", s.requestID),
				zap.String("selector", src.selector),
				zap.Error(err),
			)
			continue
		}
		if ok {
			return result, true, nil
		}
	}
	return result, false, nil
}

// match returns the matched text of the first attribute (or content) that matches.
func (src textSource) match(ctx context.Context, c candidate, pattern *regexp.Regexp) string {
	if src.content {
		if text, err := c.loc.TextContent(ctx); err == nil {
			if m := pattern.FindString(text); m != "" {
				return m
			}
		}
	}
	for _, attr := range src.attributes {
		value, err := c.loc.GetAttribute(ctx, attr)
		if err != nil || value == "" {
			continue
		}
		if m := pattern.FindString(value); m != "" {
			return m
		}
	}
	return ""
}
