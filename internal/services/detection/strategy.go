package detection

import (
	"context"

	"github.com/testforge/uidetect/internal/domain"
)

// Strategy is one stage of the detection waterfall. Attempt only sees the fields still
// missing and returns what it resolved by field name; the orchestrator applies the
// strategy's confidence threshold and never lets a result overwrite an earlier one.
type Strategy interface {
	Name() domain.DetectionStrategy
	Attempt(ctx context.Context, s *session, fields []Field, dctx Context) (Results, error)
}

// DefaultStrategies returns the waterfall in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		stackedAI{},
		traditional{},
		visionOnly{},
		textPattern{},
	}
}
