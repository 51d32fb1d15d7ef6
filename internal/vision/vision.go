// Package vision talks to the AI services the detector consumes: a Localizer that lists
// raw UI elements on a screenshot, and Reasoners that answer free-text prompts about one.
package vision

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

// TaskUILocalization is the task identifier sent to the localizer service.
const TaskUILocalization = "ui_element_localization"

// UIElement is one raw candidate reported by a Localizer.
type UIElement struct {
	Type         string     `json:"type"`
	Content      string     `json:"content"`
	Center       [2]float64 `json:"center"`
	Confidence   float64    `json:"confidence"`
	Interactable bool       `json:"interactable"`
}

func (e UIElement) X() float64 { return e.Center[0] }
func (e UIElement) Y() float64 { return e.Center[1] }

// Localization is the decoded localizer contract.
type Localization struct {
	Success  bool        `json:"success"`
	Elements []UIElement `json:"ui_elements"`
}

// Usable reports whether the localization can feed a mapper.
func (l *Localization) Usable() bool {
	return l != nil && l.Success && len(l.Elements) > 0
}

// Describe renders the element list the way mapper prompts enumerate it.
func (l *Localization) Describe() string {
	var sb strings.Builder
	for i, el := range l.Elements {
		fmt.Fprintf(&sb, "Element %d: %s at (%.0f,%.0f) with content '%s'", i, el.Type, el.X(), el.Y(), el.Content)
		if el.Interactable {
			sb.WriteString(" [interactable]")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Localizer lists UI elements on the image at imagePath.
type Localizer interface {
	Localize(ctx context.Context, imagePath string) (*Localization, error)
	Close() error
}

// Reasoner answers a natural-language prompt about the image at imagePath.
type Reasoner interface {
	Reason(ctx context.Context, imagePath, prompt string) (string, error)
	Close() error
}

// ParseLocalization decodes {success, result:{ui_elements:[...]}}. A bare {ui_elements:[...]}
// object, as produced by LLM localizers, is accepted with success implied.
func ParseLocalization(raw []byte) (*Localization, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("localizer response is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)

	elements := doc.Get("result.ui_elements")
	success := doc.Get("success")
	if !elements.Exists() {
		elements = doc.Get("ui_elements")
	}
	if !elements.Exists() && !success.Exists() {
		return nil, fmt.Errorf("localizer response has no ui_elements")
	}

	loc := &Localization{Success: !success.Exists() || success.Bool()}
	elements.ForEach(func(_, el gjson.Result) bool {
		if parsed, ok := parseElement(el); ok {
			loc.Elements = append(loc.Elements, parsed)
		}
		return true
	})

	return loc, nil
}

func parseElement(el gjson.Result) (UIElement, bool) {
	if !el.IsObject() {
		return UIElement{}, false
	}

	out := UIElement{
		Type:         strings.ToLower(strings.TrimSpace(el.Get("type").String())),
		Content:      strings.TrimSpace(el.Get("content").String()),
		Confidence:   1.0,
		Interactable: el.Get("interactable").Bool(),
	}
	if c := el.Get("confidence"); c.Exists() {
		out.Confidence = c.Float()
	}

	center := el.Get("center").Array()
	switch {
	case len(center) >= 2:
		out.Center = [2]float64{center[0].Float(), center[1].Float()}
	default:
		// Some localizers only report [x1,y1,x2,y2].
		bbox := el.Get("bbox").Array()
		if len(bbox) < 4 {
			return UIElement{}, false
		}
		out.Center = [2]float64{
			(bbox[0].Float() + bbox[2].Float()) / 2,
			(bbox[1].Float() + bbox[3].Float()) / 2,
		}
	}

	if math.IsNaN(out.Center[0]) || math.IsNaN(out.Center[1]) {
		return UIElement{}, false
	}
	return out, true
}
