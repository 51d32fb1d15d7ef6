package detection

import (
	"context"

	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/vision"
)

// visionOnly maps localizer elements onto fields with the keyword heuristic, without a
// second AI call. It reuses the localization taken earlier in the call when there is one.
type visionOnly struct{}

func (visionOnly) Name() domain.DetectionStrategy { return domain.StrategyVisionOnly }

func (visionOnly) Attempt(ctx context.Context, s *session, fields []Field, _ Context) (Results, error) {
	loc, err := s.localize(ctx)
	if err != nil {
		return nil, err
	}
	return mapHeuristically(fields, loc.Elements, domain.StrategyVisionOnly), nil
}

// mapHeuristically assigns each field its best element. An element accepted for one
// field is not offered to the fields after it.
func mapHeuristically(fields []Field, elements []vision.UIElement, strategy domain.DetectionStrategy) Results {
	found := make(Results)
	claimed := make(map[int]bool)
	for _, f := range fields {
		m, ok := BestHeuristicMatch(elements, f.Keywords, f.ElementType, claimed)
		if !ok {
			continue
		}
		r := heuristicResult(f, m, strategy)
		if r.Accepted() {
			claimed[m.Index] = true
		}
		found[f.Name] = r
	}
	return found
}

func heuristicResult(f Field, m HeuristicMatch, strategy domain.DetectionStrategy) domain.DetectionResult {
	r := domain.NewPointResult(resultType(f, m.Element), strategy, m.Element.X(), m.Element.Y(), m.Score)
	r.Description = f.Description
	r = r.WithMeta(domain.MetaAIElement, aiElementMeta(m.Element)).
		WithMeta(domain.MetaElementIndex, m.Index).
		WithMeta(domain.MetaScore, m.Score)
	if m.Keyword != "" {
		r = r.WithMeta(domain.MetaKeyword, m.Keyword)
	}
	return r
}
