package detection

import (
	"context"
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/vision"
)

// MapperAcceptConfidence is the mapper's own bar. An entry must exceed it before the
// stacked_ai threshold is applied.
const MapperAcceptConfidence = 0.7

// stackedAI resolves every missing field with one localizer call and one mapper call.
type stackedAI struct{}

func (stackedAI) Name() domain.DetectionStrategy { return domain.StrategyStackedAI }

func (stackedAI) Attempt(ctx context.Context, s *session, fields []Field, dctx Context) (Results, error) {
	if s.localizer == nil || s.mapper == nil {
		return nil, domain.ErrAIUnavailable
	}

	loc, err := s.localize(ctx)
	if err != nil {
		return nil, err
	}

	text, err := s.reason(ctx, mappingPrompt(dctx, fields, loc.Describe()))
	if err != nil {
		return nil, err
	}

	return parseMapping(text, fields, loc.Elements)
}

// MapperEntry is one field of a semantic mapper answer.
type MapperEntry struct {
	ElementIndex int
	Confidence   float64
	Reasoning    string
}

// ParseMapperEntries extracts the field → entry mapping from a free-text mapper response.
// Entries without an integral element_index or with a confidence outside [0,1] are dropped.
func ParseMapperEntries(text string) (map[string]MapperEntry, error) {
	raw, ok := vision.FirstJSONObject(text)
	if !ok {
		return nil, domain.ErrMalformedAIOutput("mapper", errors.New("no JSON object in response"))
	}

	root := gjson.Parse(raw)
	// Some models wrap the answer in {"mappings": {...}}.
	if m := root.Get("mappings"); m.IsObject() {
		root = m
	}

	entries := make(map[string]MapperEntry)
	root.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		if entry, ok := mapperEntry(value); ok {
			entries[key.String()] = entry
		}
		return true
	})
	return entries, nil
}

// mapperEntry reads one {element_index, confidence, reasoning} object.
func mapperEntry(value gjson.Result) (MapperEntry, bool) {
	idx := value.Get("element_index")
	if idx.Type != gjson.Number || idx.Num != float64(int(idx.Num)) {
		return MapperEntry{}, false
	}
	conf := value.Get("confidence")
	if conf.Type != gjson.Number || conf.Num < 0 || conf.Num > 1 {
		return MapperEntry{}, false
	}
	return MapperEntry{
		ElementIndex: int(idx.Num),
		Confidence:   conf.Num,
		Reasoning:    value.Get("reasoning").String(),
	}, true
}

func parseMapping(text string, fields []Field, elements []vision.UIElement) (Results, error) {
	entries, err := ParseMapperEntries(text)
	if err != nil {
		return nil, err
	}

	lowered := make(map[string]MapperEntry, len(entries))
	for k, v := range entries {
		lowered[strings.ToLower(k)] = v
	}

	found := make(Results)
	for _, f := range fields {
		entry, ok := entries[f.Name]
		if !ok {
			entry, ok = lowered[strings.ToLower(f.Name)]
		}
		if !ok || entry.Confidence <= MapperAcceptConfidence {
			continue
		}
		if entry.ElementIndex < 0 || entry.ElementIndex >= len(elements) {
			continue
		}
		found[f.Name] = aiResult(f, elements[entry.ElementIndex], entry, domain.StrategyStackedAI)
	}
	return found, nil
}

func aiResult(f Field, el vision.UIElement, entry MapperEntry, strategy domain.DetectionStrategy) domain.DetectionResult {
	r := domain.NewPointResult(resultType(f, el), strategy, el.X(), el.Y(), entry.Confidence)
	r.Description = f.Description
	return r.
		WithMeta(domain.MetaAIElement, aiElementMeta(el)).
		WithMeta(domain.MetaElementIndex, entry.ElementIndex).
		WithMeta(domain.MetaReasoning, entry.Reasoning)
}
