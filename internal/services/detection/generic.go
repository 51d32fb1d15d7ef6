package detection

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/page"
	"github.com/testforge/uidetect/internal/vision"
)

// DetectGenericElements resolves natural-language element descriptions. Each description
// is asked of the mapper on its own; when the mapper misses, the keyword heuristic runs
// over the description's words, and without a localizer the text patterns are tried.
// Unmatched descriptions are left out; result order follows descriptions.
func (d *Detector) DetectGenericElements(ctx context.Context, p page.Page, descriptions []string) ([]domain.DetectionResult, error) {
	if p == nil {
		return nil, domain.ErrValidation("page is required")
	}

	requestID := uuid.NewString()
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "detection.DetectGeneric")
	defer span.End()

	logger := d.logger.With(zap.String("request_id", requestID), zap.String("context", string(ContextGeneric)))
	sess := d.newSession(requestID, p, logger)

	var results []domain.DetectionResult
	requested := 0
	for _, desc := range descriptions {
		desc = strings.TrimSpace(desc)
		if desc == "" {
			continue
		}
		requested++
		if err := ctx.Err(); err != nil {
			d.recorder.RecordDetection(string(ContextGeneric), requested, len(results), time.Since(start))
			return results, err
		}

		if r, ok := d.detectDescription(ctx, sess, DescriptionField(desc)); ok {
			results = append(results, r)
		} else {
			logger.Debug("No element matches description", zap.String("description", desc))
		}
	}

	span.SetAttributes(
		attribute.Int("detection.fields", requested),
		attribute.Int("detection.resolved", len(results)),
	)
	d.recorder.RecordDetection(string(ContextGeneric), requested, len(results), time.Since(start))
	logger.Info("Generic detection finished",
		zap.Int("requested", requested),
		zap.Int("resolved", len(results)),
		zap.Duration("duration", time.Since(start)),
	)
	return results, nil
}

func (d *Detector) detectDescription(ctx context.Context, sess *session, f Field) (domain.DetectionResult, bool) {
	loc, err := sess.localize(ctx)
	switch {
	case err == nil:
		if r, ok := d.askMapper(ctx, sess, f, loc); ok {
			return r, true
		}
		if m, ok := BestHeuristicMatch(loc.Elements, f.Keywords, f.ElementType, nil); ok {
			if r := heuristicResult(f, m, domain.StrategyFallback); r.Accepted() {
				return r, true
			}
		}
		return domain.DetectionResult{}, false
	case !errors.Is(err, domain.ErrAIUnavailable):
		sess.logger.Warn("Localizer failed for generic detection", zap.Error(err))
	}

	found, err := d.attempt(ctx, sess, textPattern{}, []Field{f}, ContextGeneric)
	if err != nil {
		sess.logger.Warn("Text pattern failed for generic detection", zap.Error(err))
	}
	if r, ok := found[f.Name]; ok && r.Accepted() {
		return r, true
	}
	return domain.DetectionResult{}, false
}

func (d *Detector) askMapper(ctx context.Context, sess *session, f Field, loc *vision.Localization) (domain.DetectionResult, bool) {
	if sess.mapper == nil {
		return domain.DetectionResult{}, false
	}
	text, err := sess.reason(ctx, genericPrompt(f.Description, loc.Describe()))
	if err != nil {
		sess.logger.Warn("Mapper failed for generic detection", zap.Error(err))
		return domain.DetectionResult{}, false
	}

	entry, ok := ParseGenericAnswer(text)
	if !ok || entry.Confidence <= MapperAcceptConfidence {
		return domain.DetectionResult{}, false
	}
	if entry.ElementIndex < 0 || entry.ElementIndex >= len(loc.Elements) {
		return domain.DetectionResult{}, false
	}

	r := aiResult(f, loc.Elements[entry.ElementIndex], entry, domain.StrategyStackedAI)
	return r, r.Accepted()
}

// ParseGenericAnswer reads a {found, element_index, confidence, reasoning} answer. ok is
// false when the answer is malformed, found is false or the confidence is outside [0,1].
func ParseGenericAnswer(text string) (MapperEntry, bool) {
	raw, ok := vision.FirstJSONObject(text)
	if !ok {
		return MapperEntry{}, false
	}
	root := gjson.Parse(raw)
	if !root.Get("found").Bool() {
		return MapperEntry{}, false
	}
	return mapperEntry(root)
}
