package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/moviesage/moviesage-api/internal/domain/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, timeout time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(threshold, timeout)
	cb.now = clock.now
	return cb, clock
}

func TestCircuitBreaker_ClosedState(t *testing.T) {
	cb, _ := newTestBreaker(3, 100*time.Millisecond)

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.CurrentState())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, 100*time.Millisecond)
	testErr := errors.New("fail")

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return testErr })
	}
	assert.Equal(t, StateOpen, cb.CurrentState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb, clock := newTestBreaker(2, 50*time.Millisecond)
	testErr := errors.New("fail")

	_ = cb.Execute(func() error { return testErr })
	_ = cb.Execute(func() error { return testErr })
	require.Equal(t, StateOpen, cb.CurrentState())

	clock.advance(60 * time.Millisecond)

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.CurrentState())
}

func TestCircuitBreaker_HalfOpenFailure(t *testing.T) {
	cb, clock := newTestBreaker(3, 50*time.Millisecond)
	testErr := errors.New("fail")

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return testErr })
	}
	clock.advance(60 * time.Millisecond)

	// A single failure while half-open re-opens the circuit
	_ = cb.Execute(func() error { return testErr })
	assert.Equal(t, StateOpen, cb.CurrentState())
}

type countingClient struct {
	calls int
	err   error
}

func (c *countingClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return "answer: " + prompt, nil
}

func (c *countingClient) Name() string { return "counting" }

type staticRouter struct{ client repository.LLMClient }

func (r staticRouter) RouteLLMTask(repository.TaskType) repository.LLMClient { return r.client }

func TestGuardedClient(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)
	inner := &countingClient{err: errors.New("ollama down")}
	client := NewGuardRouter(staticRouter{client: inner}, cb).RouteLLMTask("narration")
	require.NotNil(t, client)
	assert.Equal(t, "counting", client.Name())

	for i := 0; i < 2; i++ {
		_, err := client.Generate(context.Background(), "q")
		assert.EqualError(t, err, "ollama down")
	}

	_, err := client.Generate(context.Background(), "q")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)
}

func TestGuardedClient_PassesThroughOnSuccess(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	out, err := Guard(&countingClient{}, cb).Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "answer: hi", out)
}

func TestGuardRouter_NilClient(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	assert.Nil(t, NewGuardRouter(staticRouter{}, cb).RouteLLMTask("narration"))
}

// ctxClient fails with the context error when ctx is done and answers otherwise.
type ctxClient struct{ calls int }

func (c *ctxClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "ok", nil
}

func (c *ctxClient) Name() string { return "ctx" }

func TestGuardedClient_CallerCancellationDoesNotTrip(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	inner := &ctxClient{}
	client := Guard(inner, cb)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		_, err := client.Generate(cancelled, "q")
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, StateClosed, cb.CurrentState())

	out, err := client.Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 6, inner.calls)
}

func TestGuardedClient_DeadlineStillCounts(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)
	client := Guard(&ctxClient{}, cb)

	expired, cancel := context.WithDeadline(context.Background(), time.Unix(0, 0))
	defer cancel()
	for i := 0; i < 2; i++ {
		_, err := client.Generate(expired, "q")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
	assert.Equal(t, StateOpen, cb.CurrentState())
}

func TestCircuitBreaker_CancelledHalfOpenTrialStaysHalfOpen(t *testing.T) {
	cb, clock := newTestBreaker(1, 50*time.Millisecond)
	_ = cb.Execute(func() error { return errors.New("fail") })
	require.Equal(t, StateOpen, cb.CurrentState())
	clock.advance(60 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = cb.ExecuteContext(ctx, func() error { return ctx.Err() })
	assert.Equal(t, StateHalfOpen, cb.CurrentState())

	require.NoError(t, cb.ExecuteContext(context.Background(), func() error { return nil }))
	assert.Equal(t, StateClosed, cb.CurrentState())
}
