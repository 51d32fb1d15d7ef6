package detection

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/testforge/uidetect/internal/domain"
)

var propertyFields = []string{FieldUsername, FieldPassword, FieldSubmit, FieldEmail, "nonexistent_field"}

func drawConfidences(rt *rapid.T, label string) map[string]float64 {
	conf := make(map[string]float64)
	for _, name := range propertyFields {
		if rapid.Bool().Draw(rt, label+"_has_"+name) {
			conf[name] = float64(rapid.IntRange(0, 1000).Draw(rt, label+"_"+name)) / 1000
		}
	}
	return conf
}

func TestProperty_WaterfallInvariants(t *testing.T) {
	p := staticPage(t, loginHTML)

	rapid.Check(t, func(rt *rapid.T) {
		first := drawConfidences(rt, "traditional")
		second := drawConfidences(rt, "text_pattern")
		d := NewDetector(DefaultConfig(), nil, nil, nil, WithStrategies(
			fixedStrategy{name: domain.StrategyTraditional, confidence: first},
			fixedStrategy{name: domain.StrategyTextPattern, confidence: second},
		))

		results, err := d.Detect(context.Background(), p, propertyFields, ContextLogin)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}

		for name, r := range results {
			if !r.Strategy.Accepts(r.Confidence) {
				rt.Fatalf("%s: %s result with confidence %v below threshold", name, r.Strategy, r.Confidence)
			}
		}
		for _, name := range propertyFields {
			r, ok := results[name]
			c1, in1 := first[name]
			c2, in2 := second[name]
			switch {
			case in1 && c1 >= 0.7:
				if !ok || r.Strategy != domain.StrategyTraditional {
					rt.Fatalf("%s: traditional %.3f accepted but got %+v", name, c1, r)
				}
			case in2 && c2 >= 0.5:
				if !ok || r.Strategy != domain.StrategyTextPattern {
					rt.Fatalf("%s: text_pattern %.3f accepted but got %+v", name, c2, r)
				}
			default:
				if ok {
					rt.Fatalf("%s: nothing accepted but got %+v", name, r)
				}
			}
		}
	})
}

func TestProperty_MapperThreshold(t *testing.T) {
	p := staticPage(t, `<html><body></body></html>`)

	rapid.Check(t, func(rt *rapid.T) {
		conf := float64(rapid.IntRange(0, 1000).Draw(rt, "confidence")) / 1000
		mapper := replyWith(fmt.Sprintf(`{"password": {"element_index": 1, "confidence": %.3f}}`, conf))
		d := NewDetector(DefaultConfig(), &fakeLocalizer{result: loginLocalization()}, mapper, nil,
			WithStrategies(stackedAI{}))

		results, err := d.Detect(context.Background(), p, []string{FieldPassword}, ContextLogin)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}

		_, ok := results[FieldPassword]
		if want := conf >= 0.8; ok != want {
			rt.Fatalf("confidence %.3f: resolved=%v, want %v", conf, ok, want)
		}
	})
}

func TestProperty_TraditionalDeterministic(t *testing.T) {
	p := staticPage(t, loginHTML)
	d := NewDetector(DefaultConfig(), nil, nil, nil)
	baseline, err := d.DetectLoginElements(context.Background(), p, propertyFields...)
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		subset := rapid.SliceOfDistinct(rapid.SampledFrom(propertyFields), rapid.ID[string]).Draw(rt, "fields")
		results, err := d.DetectLoginElements(context.Background(), p, subset...)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		for name, r := range results {
			if r.X != baseline[name].X || r.Y != baseline[name].Y || r.Selector != baseline[name].Selector {
				rt.Fatalf("%s: %+v differs from %+v", name, r, baseline[name])
			}
		}
	})
}
