package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishBroadcast(t *testing.T) {
	bus := NewRunEventBus()
	var calls []string

	bus.Subscribe(RunStarted, func(ctx context.Context, event RunEvent) error {
		calls = append(calls, "a:"+event.RunID)
		return nil
	})
	bus.Subscribe(RunStarted, func(ctx context.Context, event RunEvent) error {
		calls = append(calls, "b:"+event.RunID)
		return nil
	})
	bus.Subscribe(RunCompleted, func(ctx context.Context, event RunEvent) error {
		calls = append(calls, "other")
		return nil
	})

	require.NoError(t, PublishRun(context.Background(), bus, RunEvent{Type: RunStarted, RunID: "r1"}))
	assert.Equal(t, []string{"a:r1", "b:r1"}, calls)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewRunEventBus()
	called := false
	unsubscribe := bus.Subscribe(RunProgress, func(ctx context.Context, event RunEvent) error {
		called = true
		return nil
	})
	unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), RunProgress, RunEvent{Type: RunProgress}))
	assert.False(t, called)
}

func TestBusPublishJoinErrors(t *testing.T) {
	bus := NewRunEventBus()
	bus.Subscribe(RunFailed, func(ctx context.Context, event RunEvent) error {
		return errors.New("err-a")
	})
	bus.Subscribe(RunFailed, func(ctx context.Context, event RunEvent) error {
		return errors.New("err-b")
	})

	err := bus.Publish(context.Background(), RunFailed, RunEvent{Type: RunFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "err-a")
	assert.Contains(t, err.Error(), "err-b")
}

func TestPublishRunNilBus(t *testing.T) {
	assert.NoError(t, PublishRun(context.Background(), nil, RunEvent{Type: RunStarted}))
}

func TestGenericBusWithOtherTypes(t *testing.T) {
	type kind string
	bus := NewBus[kind, int]()
	sum := 0
	bus.Subscribe("add", func(ctx context.Context, n int) error {
		sum += n
		return nil
	})
	require.NoError(t, bus.Publish(context.Background(), "add", 2))
	require.NoError(t, bus.Publish(context.Background(), "add", 3))
	assert.Equal(t, 5, sum)
}
