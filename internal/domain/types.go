package domain

// ElementType classifies a detected UI element regardless of the strategy that found it.
type ElementType string

const (
	ElementInputText     ElementType = "input_text"
	ElementInputPassword ElementType = "input_password"
	ElementInputEmail    ElementType = "input_email"
	ElementInputSearch   ElementType = "input_search"
	ElementButtonSubmit  ElementType = "button_submit"
	ElementButtonGeneric ElementType = "button_generic"
	ElementLink          ElementType = "link"
	ElementImage         ElementType = "image"
	ElementForm          ElementType = "form"
	ElementDropdown      ElementType = "dropdown"
	ElementCheckbox      ElementType = "checkbox"
	ElementRadio         ElementType = "radio"
	ElementTextarea      ElementType = "textarea"
)

func (t ElementType) IsValid() bool {
	switch t {
	case ElementInputText, ElementInputPassword, ElementInputEmail, ElementInputSearch,
		ElementButtonSubmit, ElementButtonGeneric, ElementLink, ElementImage, ElementForm,
		ElementDropdown, ElementCheckbox, ElementRadio, ElementTextarea:
		return true
	}
	return false
}

// IsInput reports whether the element accepts typed text.
func (t ElementType) IsInput() bool {
	switch t {
	case ElementInputText, ElementInputPassword, ElementInputEmail, ElementInputSearch, ElementTextarea:
		return true
	}
	return false
}

// IsButton reports whether the element is clicked rather than typed into.
func (t ElementType) IsButton() bool {
	return t == ElementButtonSubmit || t == ElementButtonGeneric
}

// ElementTypeFromTag classifies an element from its tag name and type attribute.
func ElementTypeFromTag(tag, typeAttr string) ElementType {
	switch tag {
	case "a":
		return ElementLink
	case "img", "svg":
		return ElementImage
	case "form":
		return ElementForm
	case "select":
		return ElementDropdown
	case "textarea":
		return ElementTextarea
	case "button":
		if typeAttr == "" || typeAttr == "submit" {
			return ElementButtonSubmit
		}
		return ElementButtonGeneric
	case "input":
		switch typeAttr {
		case "password":
			return ElementInputPassword
		case "email":
			return ElementInputEmail
		case "search":
			return ElementInputSearch
		case "submit", "image":
			return ElementButtonSubmit
		case "button", "reset":
			return ElementButtonGeneric
		case "checkbox":
			return ElementCheckbox
		case "radio":
			return ElementRadio
		}
		return ElementInputText
	}
	return ElementButtonGeneric
}

// DetectionStrategy names a waterfall stage. The declaration order of Strategies is the
// priority order.
type DetectionStrategy string

const (
	StrategyStackedAI   DetectionStrategy = "stacked_ai"
	StrategyTraditional DetectionStrategy = "traditional"
	StrategyVisionOnly  DetectionStrategy = "vision_only"
	StrategyTextPattern DetectionStrategy = "text_pattern"
	StrategyFallback    DetectionStrategy = "fallback"
)

// Strategies lists every strategy from highest to lowest priority.
var Strategies = []DetectionStrategy{
	StrategyStackedAI,
	StrategyTraditional,
	StrategyVisionOnly,
	StrategyTextPattern,
	StrategyFallback,
}

func (s DetectionStrategy) IsValid() bool {
	return s.Priority() >= 0
}

// Priority returns the position in the waterfall (0 is highest), or -1 when unknown.
func (s DetectionStrategy) Priority() int {
	for i, candidate := range Strategies {
		if candidate == s {
			return i
		}
	}
	return -1
}

// MinConfidence is the acceptance threshold below which a result of this strategy is discarded.
func (s DetectionStrategy) MinConfidence() float64 {
	switch s {
	case StrategyStackedAI:
		return 0.8
	case StrategyTraditional:
		return 0.7
	case StrategyVisionOnly:
		return 0.6
	case StrategyTextPattern:
		return 0.5
	case StrategyFallback:
		return 0.3
	}
	return 1.0
}

// Accepts reports whether confidence clears the strategy threshold.
func (s DetectionStrategy) Accepts(confidence float64) bool {
	return confidence >= s.MinConfidence() && confidence <= 1.0
}
