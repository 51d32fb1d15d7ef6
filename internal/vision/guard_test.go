package vision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/resilience"
)

func TestGuardedLocalizer_OpensAfterFailures(t *testing.T) {
	ctx := context.Background()
	next := &fakeLocalizer{err: errors.New("503")}
	rec := &fakeRecorder{}
	breaker := resilience.New(resilience.Config{Name: "localizer", MaxFailures: 2, Cooldown: time.Hour})
	guarded := GuardLocalizer(next, breaker, rec)

	for i := 0; i < 2; i++ {
		_, err := guarded.Localize(ctx, "shot.png")
		assert.Error(t, err)
	}

	_, err := guarded.Localize(ctx, "shot.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrOpen)
	assert.Equal(t, domain.ErrCodeServiceUnavail, domain.GetErrorCode(err))
	assert.Equal(t, 2, next.calls)

	assert.Equal(t, []recorded{
		{"localizer", "error"},
		{"localizer", "error"},
		{"localizer", "rejected"},
	}, rec.calls)
}

func TestGuardedReasoner(t *testing.T) {
	ctx := context.Background()
	next := &fakeReasoner{response: `{"found": true}`}
	rec := &fakeRecorder{}
	guarded := GuardReasoner(next, resilience.New(resilience.DefaultConfig("mapper")), rec)

	got, err := guarded.Reason(ctx, "shot.png", "find the button")
	require.NoError(t, err)
	assert.Equal(t, `{"found": true}`, got)
	assert.Equal(t, []string{"find the button"}, next.prompts)
	assert.Equal(t, []recorded{{"mapper", "ok"}}, rec.calls)

	next.err = context.DeadlineExceeded
	_, err = guarded.Reason(ctx, "shot.png", "again")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, recorded{"mapper", "timeout"}, rec.calls[1])
}
