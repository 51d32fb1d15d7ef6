package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectionStrategy_MinConfidence(t *testing.T) {
	tests := []struct {
		strategy DetectionStrategy
		want     float64
	}{
		{StrategyStackedAI, 0.8},
		{StrategyTraditional, 0.7},
		{StrategyVisionOnly, 0.6},
		{StrategyTextPattern, 0.5},
		{StrategyFallback, 0.3},
		{DetectionStrategy("unknown"), 1.0},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.strategy.MinConfidence())
		})
	}
}

func TestDetectionStrategy_Priority(t *testing.T) {
	for i := 1; i < len(Strategies); i++ {
		assert.Less(t, Strategies[i-1].Priority(), Strategies[i].Priority())
		assert.Greater(t, Strategies[i-1].MinConfidence(), Strategies[i].MinConfidence(),
			"thresholds decrease along the waterfall")
	}
	assert.Equal(t, -1, DetectionStrategy("bogus").Priority())
	assert.False(t, DetectionStrategy("bogus").IsValid())
}

func TestDetectionStrategy_Accepts(t *testing.T) {
	assert.True(t, StrategyStackedAI.Accepts(0.8))
	assert.False(t, StrategyStackedAI.Accepts(0.79))
	assert.False(t, StrategyStackedAI.Accepts(0.65))
	assert.True(t, StrategyTraditional.Accepts(0.75))
	assert.True(t, StrategyTextPattern.Accepts(0.5))
	assert.False(t, StrategyFallback.Accepts(1.2))
}

func TestElementTypeFromTag(t *testing.T) {
	tests := []struct {
		tag, typ string
		want     ElementType
	}{
		{"input", "email", ElementInputEmail},
		{"input", "password", ElementInputPassword},
		{"input", "search", ElementInputSearch},
		{"input", "", ElementInputText},
		{"input", "submit", ElementButtonSubmit},
		{"input", "checkbox", ElementCheckbox},
		{"button", "", ElementButtonSubmit},
		{"button", "button", ElementButtonGeneric},
		{"a", "", ElementLink},
		{"select", "", ElementDropdown},
		{"textarea", "", ElementTextarea},
		{"img", "", ElementImage},
	}

	for _, tt := range tests {
		t.Run(tt.tag+"/"+tt.typ, func(t *testing.T) {
			got := ElementTypeFromTag(tt.tag, tt.typ)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsValid())
		})
	}
}

func TestDetectionResult_Constructors(t *testing.T) {
	box := NewBoxResult(ElementInputEmail, StrategyTraditional, Rect{X: 10, Y: 20, Width: 100, Height: 30}, 0.75)
	assert.Equal(t, 60.0, box.X)
	assert.Equal(t, 35.0, box.Y)
	assert.Equal(t, Rect{X: 10, Y: 20, Width: 100, Height: 30}, box.Box())
	assert.True(t, box.Accepted())

	point := NewPointResult(ElementButtonSubmit, StrategyVisionOnly, 5, 6, 0.55)
	assert.Zero(t, point.Width)
	assert.Zero(t, point.Height)
	assert.False(t, point.Accepted())

	stated := NewPointResult(ElementInputPassword, StrategyStackedAI, 5, 6, 0.7996)
	assert.Equal(t, 0.7996, stated.Confidence)
	assert.False(t, stated.Accepted())

	point = point.WithMeta(MetaScore, 0.55)
	assert.Equal(t, 0.55, point.Metadata[MetaScore])
}

func TestRoundConfidence(t *testing.T) {
	assert.Equal(t, 0.6, RoundConfidence(0.5+0.1))
	assert.Equal(t, 1.0, RoundConfidence(1.4))
	assert.Equal(t, 0.0, RoundConfidence(-0.2))
}
