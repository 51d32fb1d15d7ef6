package domain

import "math"

// Rect is a page-space bounding box in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the box.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Empty reports whether the box has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Metadata keys shared by the strategies.
const (
	MetaSelector     = "selector"
	MetaSelectorTier = "selector_tier"
	MetaKeyword      = "matched_keyword"
	MetaPattern      = "matched_pattern"
	MetaAIElement    = "ai_element"
	MetaElementIndex = "element_index"
	MetaReasoning    = "reasoning"
	MetaScore        = "heuristic_score"
	MetaText         = "text"
	MetaHref         = "href"
)

// DetectionResult is one resolved field. X and Y are the pixel center; Width and Height are
// zero when the producing strategy only has a point estimate.
type DetectionResult struct {
	ElementType ElementType       `json:"element_type"`
	Strategy    DetectionStrategy `json:"strategy"`
	X           float64           `json:"x"`
	Y           float64           `json:"y"`
	Width       float64           `json:"width"`
	Height      float64           `json:"height"`
	Selector    string            `json:"selector,omitempty"`
	Confidence  float64           `json:"confidence"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
}

// NewBoxResult builds a result centered on box.
func NewBoxResult(elementType ElementType, strategy DetectionStrategy, box Rect, confidence float64) DetectionResult {
	x, y := box.Center()
	return DetectionResult{
		ElementType: elementType,
		Strategy:    strategy,
		X:           x,
		Y:           y,
		Width:       box.Width,
		Height:      box.Height,
		Confidence:  confidence,
		Metadata:    make(map[string]any),
	}
}

// NewPointResult builds a result from a bare center point. The confidence is kept as given.
func NewPointResult(elementType ElementType, strategy DetectionStrategy, x, y, confidence float64) DetectionResult {
	return DetectionResult{
		ElementType: elementType,
		Strategy:    strategy,
		X:           x,
		Y:           y,
		Confidence:  confidence,
		Metadata:    make(map[string]any),
	}
}

// Accepted reports whether the result clears its own strategy's threshold.
func (r DetectionResult) Accepted() bool {
	return r.Strategy.Accepts(r.Confidence)
}

// Box returns the bounding box around the center, zero-sized for point results.
func (r DetectionResult) Box() Rect {
	return Rect{X: r.X - r.Width/2, Y: r.Y - r.Height/2, Width: r.Width, Height: r.Height}
}

// WithMeta sets a metadata entry and returns the result.
func (r DetectionResult) WithMeta(key string, value any) DetectionResult {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
	return r
}

// RoundConfidence clamps c to [0,1] and rounds to three decimals.
func RoundConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return math.Round(c*1000) / 1000
}
