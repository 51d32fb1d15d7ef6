package detection

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/testforge/uidetect/internal/domain"
)

// Confidence assigned per selector tier.
const (
	ConfidenceCSS   = 0.75
	ConfidenceXPath = 0.72
	ConfidenceText  = 0.70
)

type selectorTier struct {
	name       string
	selectors  []string
	confidence float64
}

func (t SelectorTiers) ordered() []selectorTier {
	return []selectorTier{
		{name: "css", selectors: t.CSS, confidence: ConfidenceCSS},
		{name: "xpath", selectors: t.XPath, confidence: ConfidenceXPath},
		{name: "text", selectors: t.Text, confidence: ConfidenceText},
	}
}

// traditional resolves fields with the deterministic selector library. Fields are
// probed concurrently; the page is only read.
type traditional struct{}

func (traditional) Name() domain.DetectionStrategy { return domain.StrategyTraditional }

func (traditional) Attempt(ctx context.Context, s *session, fields []Field, _ Context) (Results, error) {
	var mu sync.Mutex
	found := make(Results)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FieldConcurrency)
	for _, f := range fields {
		if f.Selectors.Empty() {
			continue
		}
		g.Go(func() error {
			r, ok, err := matchSelectors(gctx, s, f)
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

// matchSelectors walks the field's tiers; the first selector with a visible element wins.
// Selector errors skip to the next selector.
func matchSelectors(ctx context.Context, s *session, f Field) (domain.DetectionResult, bool, error) {
	for _, tier := range f.Selectors.ordered() {
		for _, sel := range tier.selectors {
			c, ok, err := firstVisible(ctx, s.page.Locator(sel), s.cfg.MaxCandidates)
			if err != nil {
				if ctx.Err() != nil {
					return domain.DetectionResult{}, false, ctx.Err()
				}
				s.logger.Debug("selector failed",
					zap.String("request_id", s.requestID),
					zap.String("field", f.Name),
					zap.String("selector", sel),
					zap.Error(err),
				)
				continue
			}
			if !ok {
				continue
			}
			r := domResult(ctx, f, c, domain.StrategyTraditional, tier.confidence)
			r.Selector = sel
			r = r.WithMeta(domain.MetaSelector, sel).WithMeta(domain.MetaSelectorTier, tier.name)
			return r, true, nil
		}
	}
	return domain.DetectionResult{}, false, nil
}
