package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/moviesage/moviesage-api/internal/domain/repository"
	"github.com/moviesage/moviesage-api/internal/logging"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Failing, reject calls
	StateHalfOpen              // Testing if service recovered
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops calling a dependency after consecutive failures.
// It never retries: a rejected call fails immediately with ErrCircuitOpen.
// Transitions: Closed → Open (after failThreshold consecutive failures)
//
//	Open → HalfOpen (after openTimeout expires)
//	HalfOpen → Closed (on success) or Open (on failure)
type CircuitBreaker struct {
	mu            sync.Mutex
	state         State
	failCount     int
	failThreshold int
	openTimeout   time.Duration
	openedAt      time.Time
	now           func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given thresholds.
func NewCircuitBreaker(failThreshold int, openTimeout time.Duration) *CircuitBreaker {
	if failThreshold < 1 {
		failThreshold = 1
	}
	return &CircuitBreaker{
		state:         StateClosed,
		failThreshold: failThreshold,
		openTimeout:   openTimeout,
		now:           time.Now,
	}
}

// Execute runs fn through the circuit breaker.
// Returns ErrCircuitOpen if the circuit is open and the timeout hasn't elapsed.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// ExecuteContext is Execute for calls bound to ctx. A failure after the caller cancelled
// ctx says nothing about the dependency and is not recorded.
func (cb *CircuitBreaker) ExecuteContext(ctx context.Context, fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		return err
	}
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) <= cb.openTimeout {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failCount++
		if cb.state == StateHalfOpen || cb.failCount >= cb.failThreshold {
			cb.state = StateOpen
			cb.openedAt = cb.now()
		}
		return
	}

	cb.failCount = 0
	cb.state = StateClosed
}

// CurrentState returns the current state of the circuit breaker.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

var _ repository.LLMClient = (*GuardedClient)(nil)

// GuardedClient routes every Generate call of an LLM client through a CircuitBreaker.
type GuardedClient struct {
	inner   repository.LLMClient
	breaker *CircuitBreaker
}

// Guard wraps client with breaker.
func Guard(client repository.LLMClient, breaker *CircuitBreaker) *GuardedClient {
	return &GuardedClient{inner: client, breaker: breaker}
}

func (g *GuardedClient) Generate(ctx context.Context, prompt string) (string, error) {
	var out string
	err := g.breaker.ExecuteContext(ctx, func() error {
		var genErr error
		out, genErr = g.inner.Generate(ctx, prompt)
		return genErr
	})
	if errors.Is(err, ErrCircuitOpen) {
		logger := logging.For("resilience")
		logger.Warn().Str("client", g.inner.Name()).Msg("Circuit open, skipping LLM call")
	}
	return out, err
}

func (g *GuardedClient) Name() string {
	return g.inner.Name()
}

// GuardRouter wraps every client a router hands out with the same breaker.
type GuardRouter struct {
	inner   repository.LLMRouter
	breaker *CircuitBreaker
}

var _ repository.LLMRouter = (*GuardRouter)(nil)

func NewGuardRouter(inner repository.LLMRouter, breaker *CircuitBreaker) *GuardRouter {
	return &GuardRouter{inner: inner, breaker: breaker}
}

func (r *GuardRouter) RouteLLMTask(task repository.TaskType) repository.LLMClient {
	client := r.inner.RouteLLMTask(task)
	if client == nil {
		return nil
	}
	return Guard(client, r.breaker)
}
