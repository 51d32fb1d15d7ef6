// Package detection finds named UI elements on a rendered page.
//
// A Detector runs a fixed waterfall of strategies: stacked AI (localizer plus semantic
// mapper), the selector library, vision only (localizer plus keyword heuristic) and text
// patterns. Each stage only sees the fields still missing, and a field resolved by an
// earlier stage is never overwritten. Strategy failures contribute nothing; a short result
// map is a normal outcome.
package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/page"
	"github.com/testforge/uidetect/internal/vision"
)

const tracerName = "github.com/testforge/uidetect/internal/services/detection"

// Detector is the strategy orchestrator. It is safe for concurrent use; each call gets
// its own session.
type Detector struct {
	cfg        Config
	localizer  vision.Localizer
	mapper     vision.Reasoner
	strategies []Strategy
	logger     *zap.Logger
	recorder   Recorder
	archive    ScreenshotArchive
	tracer     trace.Tracer

	closeOnce sync.Once
	closeErr  error
}

// Option customizes a Detector.
type Option func(*Detector)

// WithMetrics records detection metrics.
func WithMetrics(r Recorder) Option {
	return func(d *Detector) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithArchive uploads screenshots of calls that leave fields unresolved. It only takes
// effect when Config.ArchiveUnresolved is set.
func WithArchive(a ScreenshotArchive) Option {
	return func(d *Detector) { d.archive = a }
}

// WithTracer replaces the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(d *Detector) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithStrategies replaces the waterfall.
func WithStrategies(strategies ...Strategy) Option {
	return func(d *Detector) { d.strategies = strategies }
}

// NewDetector creates a Detector. A nil localizer or mapper disables the strategies that
// need it.
func NewDetector(cfg Config, localizer vision.Localizer, mapper vision.Reasoner, logger *zap.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Detector{
		cfg:        cfg.withDefaults(),
		localizer:  localizer,
		mapper:     mapper,
		strategies: DefaultStrategies(),
		logger:     logger,
		recorder:   nopRecorder{},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectLoginElements resolves login form fields, username, password and submit by default.
func (d *Detector) DetectLoginElements(ctx context.Context, p page.Page, fields ...string) (Results, error) {
	if len(fields) == 0 {
		fields = DefaultLoginFields
	}
	return d.Detect(ctx, p, fields, ContextLogin)
}

// DetectSearchElements resolves the search input and button by default.
func (d *Detector) DetectSearchElements(ctx context.Context, p page.Page, fields ...string) (Results, error) {
	if len(fields) == 0 {
		fields = DefaultSearchFields
	}
	return d.Detect(ctx, p, fields, ContextSearch)
}

// DetectLinkElements resolves link targets, product, nav and action links by default. Every
// result carries the anchor's text and href when a DOM strategy produced it.
func (d *Detector) DetectLinkElements(ctx context.Context, p page.Page, links []string) (Results, error) {
	if len(links) == 0 {
		links = DefaultLinkFields
	}
	return d.Detect(ctx, p, links, ContextLinks)
}

// Detect runs the waterfall for fields. The error is non-nil only for a nil page or a
// cancelled context; partial results are returned alongside it.
func (d *Detector) Detect(ctx context.Context, p page.Page, fields []string, dctx Context) (Results, error) {
	if p == nil {
		return nil, domain.ErrValidation("page is required")
	}

	targets := resolveFields(fields, dctx)
	results := make(Results, len(targets))
	if len(targets) == 0 {
		return results, nil
	}

	requestID := uuid.NewString()
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "detection.Detect", trace.WithAttributes(
		attribute.String("detection.request_id", requestID),
		attribute.String("detection.context", string(dctx)),
		attribute.Int("detection.fields", len(targets)),
	))
	defer span.End()

	logger := d.logger.With(zap.String("request_id", requestID), zap.String("context", string(dctx)))
	logger.Info("Starting detection", zap.Strings("fields", fieldNames(targets)))

	sess := d.newSession(requestID, p, logger)
	err := d.run(ctx, sess, targets, dctx, results)

	missing := results.Missing(fieldNames(targets))
	d.recorder.RecordDetection(string(dctx), len(targets), len(results), time.Since(start))
	span.SetAttributes(attribute.Int("detection.resolved", len(results)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("Detection aborted",
			zap.Int("resolved", len(results)),
			zap.Strings("missing", missing),
			zap.Error(err),
		)
		return results, err
	}

	logger.Info("Detection finished",
		zap.Int("resolved", len(results)),
		zap.Strings("missing", missing),
		zap.Duration("duration", time.Since(start)),
	)
	if len(missing) > 0 {
		d.archiveUnresolved(ctx, sess, dctx, missing)
	}
	return results, nil
}

func (d *Detector) run(ctx context.Context, sess *session, targets []Field, dctx Context, results Results) error {
	for _, strategy := range d.strategies {
		pending := pendingFields(targets, results)
		if len(pending) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := strategy.Name()
		start := time.Now()
		found, err := d.attempt(ctx, sess, strategy, pending, dctx)
		if ctx.Err() != nil {
			// A step interrupted by cancellation commits nothing.
			d.recorder.RecordStrategy(string(name), 0, ctx.Err(), time.Since(start))
			return ctx.Err()
		}
		committed, rejected := commit(results, pending, found, name)
		d.recorder.RecordStrategy(string(name), committed, err, time.Since(start))

		fields := []zap.Field{
			zap.String("strategy", string(name)),
			zap.Int("resolved", committed),
			zap.Duration("duration", time.Since(start)),
		}
		if len(rejected) > 0 {
			fields = append(fields, zap.Strings("below_threshold", rejected))
		}
		switch {
		case err == nil:
			sess.logger.Debug("Strategy finished", fields...)
		case errors.Is(err, domain.ErrAIUnavailable):
			sess.logger.Debug("Strategy skipped", append(fields, zap.Error(err))...)
		default:
			sess.logger.Warn("Strategy failed", append(fields, zap.Error(err))...)
		}
	}

	if len(pendingFields(targets, results)) > 0 {
		return ctx.Err()
	}
	return nil
}

// attempt runs one strategy, converting a panic into an error.
func (d *Detector) attempt(ctx context.Context, sess *session, strategy Strategy, fields []Field, dctx Context) (found Results, err error) {
	ctx, span := d.tracer.Start(ctx, "detection.strategy", trace.WithAttributes(
		attribute.String("detection.strategy", string(strategy.Name())),
		attribute.Int("detection.fields", len(fields)),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			found = nil
			err = fmt.Errorf("strategy %s panicked: %v", strategy.Name(), r)
		}
		if err != nil {
			span.RecordError(err)
		}
	}()

	return strategy.Attempt(ctx, sess, fields, dctx)
}

// commit copies accepted results for pending fields into results. Results below the
// strategy threshold are reported and dropped.
func commit(results Results, pending []Field, found Results, name domain.DetectionStrategy) (int, []string) {
	committed := 0
	var rejected []string
	for _, f := range pending {
		r, ok := found[f.Name]
		if !ok {
			continue
		}
		if _, done := results[f.Name]; done {
			continue
		}
		r.Strategy = name
		if !r.Accepted() {
			rejected = append(rejected, f.Name)
			continue
		}
		results[f.Name] = r
		committed++
	}
	return committed, rejected
}

func (d *Detector) newSession(requestID string, p page.Page, logger *zap.Logger) *session {
	return &session{
		requestID: requestID,
		page:      p,
		localizer: d.localizer,
		mapper:    d.mapper,
		cfg:       d.cfg,
		logger:    logger,
		recorder:  d.recorder,
	}
}

func (d *Detector) archiveUnresolved(ctx context.Context, sess *session, dctx Context, missing []string) {
	if d.archive == nil || !d.cfg.ArchiveUnresolved {
		return
	}
	png, err := sess.capture(ctx)
	if err != nil {
		sess.logger.Debug("No screenshot to archive", zap.Error(err))
		return
	}
	uri, err := d.archive.ArchiveScreenshot(ctx, sess.requestID, string(dctx), png, missing)
	if err != nil {
		sess.logger.Warn("Failed to archive screenshot", zap.Error(err))
		return
	}
	d.recorder.RecordArchive()
	sess.logger.Info("Archived screenshot of unresolved detection", zap.String("uri", uri))
}

// Close releases the AI clients. It is safe to call more than once.
func (d *Detector) Close() error {
	d.closeOnce.Do(func() {
		var errs []error
		if d.localizer != nil {
			errs = append(errs, d.localizer.Close())
		}
		if d.mapper != nil {
			errs = append(errs, d.mapper.Close())
		}
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}

// resolveFields turns requested names into fields, dropping blanks and duplicates.
func resolveFields(names []string, dctx Context) []Field {
	seen := make(map[string]bool, len(names))
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		fields = append(fields, ResolveField(name, dctx))
	}
	return fields
}

func pendingFields(fields []Field, results Results) []Field {
	var pending []Field
	for _, f := range fields {
		if _, ok := results[f.Name]; !ok {
			pending = append(pending, f)
		}
	}
	return pending
}

func fieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
