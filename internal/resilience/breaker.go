// Package resilience guards calls to the AI services so a failing dependency is skipped
// quickly instead of slowing every detection call.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a Breaker.
type State int32

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down expires.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrOpen is returned without calling the guarded function while the breaker is open.
	ErrOpen = errors.New("circuit breaker is open")

	// ErrProbeLimit is returned when the half-open probe budget is used up.
	ErrProbeLimit = errors.New("too many probe requests in half-open state")
)

// Config holds configuration for a Breaker.
type Config struct {
	// Name identifies the guarded service in logs and metrics.
	Name string

	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32

	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration

	// Probes is the number of successful half-open calls needed to close again.
	Probes uint32

	// OnStateChange is called with the lock held; it must not call back into the breaker.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns defaults suited to the vision services.
func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		MaxFailures: 3,
		Cooldown:    30 * time.Second,
		Probes:      1,
	}
}

// Counts tracks outcomes since the last state change.
type Counts struct {
	Requests             uint32
	Failures             uint32
	ConsecutiveFailures  uint32
	ConsecutiveSuccesses uint32
}

// Breaker is a consecutive-failure circuit breaker. Context cancellation by the caller is
// not counted as a service failure.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	inFlight uint32
}

// New creates a Breaker, filling zero fields from DefaultConfig.
func New(cfg Config) *Breaker {
	defaults := DefaultConfig(cfg.Name)
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaults.MaxFailures
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = defaults.Cooldown
	}
	if cfg.Probes == 0 {
		cfg.Probes = defaults.Probes
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Name returns the guarded service name.
func (b *Breaker) Name() string {
	return b.cfg.Name
}

// State returns the current state, moving open to half-open once the cool-down passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// Counts returns a snapshot of the current counts.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Do runs fn through the breaker.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := b.before(); err != nil {
		return zero, err
	}

	result, err := fn(ctx)
	b.after(ctx, err)
	return result, err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if b.inFlight >= b.cfg.Probes {
			return ErrProbeLimit
		}
		b.inFlight++
	}
	b.counts.Requests++
	return nil
}

func (b *Breaker) after(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.currentState()
	if state == StateHalfOpen && b.inFlight > 0 {
		b.inFlight--
	}

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return
	}

	if err == nil {
		b.counts.ConsecutiveFailures = 0
		b.counts.ConsecutiveSuccesses++
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.cfg.Probes {
			b.setState(StateClosed)
		}
		return
	}

	b.counts.Failures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0

	switch state {
	case StateClosed:
		if b.counts.ConsecutiveFailures >= b.cfg.MaxFailures {
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		b.setState(StateOpen)
	}
}

func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.setState(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) setState(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.counts = Counts{}
	b.inFlight = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}
