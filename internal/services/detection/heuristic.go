package detection

import (
	"strings"

	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/vision"
)

// MinHeuristicScore is the score an element needs before the heuristic mapper picks it.
const MinHeuristicScore = 0.3

const (
	scoreContentKeyword = 0.5
	scoreTypeMatch      = 0.2
	scoreExactContent   = 0.2
	scoreInteractable   = 0.1
)

// HeuristicMatch is the element the fallback mapper chose for a field.
type HeuristicMatch struct {
	Index   int
	Element vision.UIElement
	Score   float64
	Keyword string
}

// HeuristicScore scores one localizer element against a keyword set. matched is false
// when no keyword occurs in the element's content or type; such elements are never picked.
func HeuristicScore(el vision.UIElement, keywords []string, kind domain.ElementType) (score float64, keyword string, matched bool) {
	content := strings.ToLower(strings.TrimSpace(el.Content))
	elType := strings.ToLower(el.Type)

	inType := false
	exact := false
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if keyword == "" && content != "" && strings.Contains(content, kw) {
			keyword = kw
		}
		if strings.Contains(elType, kw) {
			inType = true
		}
		if content == kw {
			exact = true
		}
	}

	if keyword != "" {
		score += scoreContentKeyword
	}
	if inType || typeCompatible(elType, kind) {
		score += scoreTypeMatch
	}
	if exact {
		score += scoreExactContent
	}
	if el.Interactable {
		score += scoreInteractable
	}
	return domain.RoundConfidence(score), keyword, keyword != "" || inType
}

// BestHeuristicMatch returns the highest scoring element at or above MinHeuristicScore.
// Ties keep the earliest element; indexes in skip are ignored.
func BestHeuristicMatch(elements []vision.UIElement, keywords []string, kind domain.ElementType, skip map[int]bool) (HeuristicMatch, bool) {
	best := HeuristicMatch{Index: -1}
	for i, el := range elements {
		if skip[i] {
			continue
		}
		score, kw, matched := HeuristicScore(el, keywords, kind)
		if !matched || score < MinHeuristicScore {
			continue
		}
		if score > best.Score {
			best = HeuristicMatch{Index: i, Element: el, Score: score, Keyword: kw}
		}
	}
	return best, best.Index >= 0
}

// typeCompatible reports whether a localizer element type can serve the field kind.
func typeCompatible(elType string, kind domain.ElementType) bool {
	switch {
	case kind.IsInput():
		return elType == "input" || elType == "textarea" || elType == "textbox" || elType == "searchbox"
	case kind.IsButton():
		return elType == "button" || elType == "icon"
	case kind == domain.ElementLink:
		return elType == "link"
	case kind == domain.ElementCheckbox:
		return elType == "checkbox"
	case kind == domain.ElementRadio:
		return elType == "radio"
	case kind == domain.ElementDropdown:
		return elType == "dropdown" || elType == "select"
	case kind == domain.ElementImage:
		return elType == "image" || elType == "icon"
	}
	return false
}

// elementTypeFromAI classifies a localizer element type.
func elementTypeFromAI(elType string) domain.ElementType {
	switch strings.ToLower(elType) {
	case "input", "textbox":
		return domain.ElementInputText
	case "searchbox":
		return domain.ElementInputSearch
	case "textarea":
		return domain.ElementTextarea
	case "link":
		return domain.ElementLink
	case "checkbox":
		return domain.ElementCheckbox
	case "radio":
		return domain.ElementRadio
	case "dropdown", "select":
		return domain.ElementDropdown
	case "image", "icon":
		return domain.ElementImage
	}
	return domain.ElementButtonGeneric
}

// resultType picks the element type for an AI-sourced result.
func resultType(f Field, el vision.UIElement) domain.ElementType {
	if f.Inferred {
		return elementTypeFromAI(el.Type)
	}
	return f.ElementType
}

func aiElementMeta(el vision.UIElement) map[string]any {
	return map[string]any{
		"type":         el.Type,
		"content":      el.Content,
		"center":       []float64{el.Center[0], el.Center[1]},
		"confidence":   el.Confidence,
		"interactable": el.Interactable,
	}
}
