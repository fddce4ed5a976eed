package arena

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestPendingResolve(t *testing.T) {
	registry := NewPendingRegistry()

	pending, err := registry.Register("/composition/layers/1/opacity", 5*time.Second)
	assert.Equal(t, err, nil)
	assert.Equal(t, registry.Size(), 1)

	go func() {
		// echoes use the same normalized key regardless of raw spelling
		registry.Resolve("composition/layers/1/opacity/", 0.5)
	}()

	value, err := pending.Await(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, value, 0.5)
	assert.Equal(t, registry.Size(), 0)
}

func TestPendingAlreadyPending(t *testing.T) {
	registry := NewPendingRegistry()

	_, err := registry.Register("/composition/tempocontroller/tempo", 5*time.Second)
	assert.Equal(t, err, nil)

	_, err = registry.Register("/composition/tempocontroller/tempo", 5*time.Second)
	assert.Equal(t, errors.Is(err, ErrAlreadyPending), true)

	// a different path is unaffected
	_, err = registry.Register("/composition/crossfader/phase", 5*time.Second)
	assert.Equal(t, err, nil)
}

func TestPendingTimeout(t *testing.T) {
	registry := NewPendingRegistry()

	pending, err := registry.Register("/composition/layers/1/opacity", 20*time.Millisecond)
	assert.Equal(t, err, nil)

	_, err = pending.Await(context.Background())
	assert.Equal(t, errors.Is(err, ErrTimeout), true)
	// no residual entry after timeout
	assert.Equal(t, registry.Size(), 0)

	// a late echo resolves nothing and does not panic
	registry.Resolve("/composition/layers/1/opacity", 1.0)
	assert.Equal(t, registry.Size(), 0)
}

func TestPendingAwaitAfterDeadlineElapsed(t *testing.T) {
	registry := NewPendingRegistry()

	pending, err := registry.Register("/composition/layers/1/opacity", 1*time.Millisecond)
	assert.Equal(t, err, nil)
	time.Sleep(10 * time.Millisecond)

	// the timeout clock started at registration, so this fails immediately
	start := time.Now()
	_, err = pending.Await(context.Background())
	assert.Equal(t, errors.Is(err, ErrTimeout), true)
	assert.Equal(t, time.Since(start) < 1*time.Second, true)
	assert.Equal(t, registry.Size(), 0)
}

func TestPendingResolveOnce(t *testing.T) {
	registry := NewPendingRegistry()

	pending, err := registry.Register("/composition/layers/1/opacity", 5*time.Second)
	assert.Equal(t, err, nil)

	registry.Resolve("/composition/layers/1/opacity", 0.1)
	registry.Resolve("/composition/layers/1/opacity", 0.9)

	value, err := pending.Await(context.Background())
	assert.Equal(t, err, nil)
	// the first resolution wins; the second found no entry
	assert.Equal(t, value, 0.1)
}

func TestPendingResolveAll(t *testing.T) {
	registry := NewPendingRegistry()

	a, _ := registry.Register("/composition/layers/0/opacity", 5*time.Second)
	b, _ := registry.Register("/composition/decks/0/name", 5*time.Second)

	registry.ResolveAll(func(path string) any {
		if path == "/composition/layers/0/opacity" {
			return 0.7
		}
		return nil
	})

	value, err := a.Await(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, value, 0.7)

	// vanished paths resolve nil instead of waiting out the timeout
	value, err = b.Await(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, value, nil)
	assert.Equal(t, registry.Size(), 0)
}

func TestPendingFailAll(t *testing.T) {
	registry := NewPendingRegistry()

	pending, _ := registry.Register("/composition/layers/0/opacity", 5*time.Second)
	registry.FailAll(ErrNotConnected)

	_, err := pending.Await(context.Background())
	assert.Equal(t, errors.Is(err, ErrNotConnected), true)
}

func TestPendingContextCancel(t *testing.T) {
	registry := NewPendingRegistry()

	pending, _ := registry.Register("/composition/layers/0/opacity", 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pending.Await(ctx)
	assert.Equal(t, errors.Is(err, context.Canceled), true)
	assert.Equal(t, registry.Size(), 0)
}
