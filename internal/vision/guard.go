package vision

import (
	"context"
	"errors"
	"time"

	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/resilience"
)

// CallRecorder observes vision service calls.
type CallRecorder interface {
	RecordVision(service, status string, duration time.Duration)
}

// GuardedLocalizer runs a Localizer behind a circuit breaker.
type GuardedLocalizer struct {
	next     Localizer
	breaker  *resilience.Breaker
	recorder CallRecorder
}

// GuardLocalizer wraps next. recorder may be nil.
func GuardLocalizer(next Localizer, breaker *resilience.Breaker, recorder CallRecorder) *GuardedLocalizer {
	return &GuardedLocalizer{next: next, breaker: breaker, recorder: recorder}
}

func (g *GuardedLocalizer) Localize(ctx context.Context, imagePath string) (*Localization, error) {
	start := time.Now()
	loc, err := resilience.Do(ctx, g.breaker, func(ctx context.Context) (*Localization, error) {
		return g.next.Localize(ctx, imagePath)
	})
	return loc, finish(g.recorder, g.breaker, start, err)
}

func (g *GuardedLocalizer) Close() error {
	return g.next.Close()
}

// GuardedReasoner runs a Reasoner behind a circuit breaker.
type GuardedReasoner struct {
	next     Reasoner
	breaker  *resilience.Breaker
	recorder CallRecorder
}

// GuardReasoner wraps next. recorder may be nil.
func GuardReasoner(next Reasoner, breaker *resilience.Breaker, recorder CallRecorder) *GuardedReasoner {
	return &GuardedReasoner{next: next, breaker: breaker, recorder: recorder}
}

func (g *GuardedReasoner) Reason(ctx context.Context, imagePath, prompt string) (string, error) {
	start := time.Now()
	text, err := resilience.Do(ctx, g.breaker, func(ctx context.Context) (string, error) {
		return g.next.Reason(ctx, imagePath, prompt)
	})
	return text, finish(g.recorder, g.breaker, start, err)
}

func (g *GuardedReasoner) Close() error {
	return g.next.Close()
}

func finish(recorder CallRecorder, breaker *resilience.Breaker, start time.Time, err error) error {
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, resilience.ErrOpen), errors.Is(err, resilience.ErrProbeLimit):
		status = "rejected"
		err = domain.ErrServiceUnavailable(breaker.Name()).WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
	default:
		status = "error"
	}
	if recorder != nil {
		recorder.RecordVision(breaker.Name(), status, time.Since(start))
	}
	return err
}
