package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishInvokesAllSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventAlertCreated, func(_ context.Context, _ Event) error {
		calls = append(calls, "first")
		return nil
	})
	d.Subscribe(EventAlertCreated, func(_ context.Context, _ Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventCaseReferred, func(_ context.Context, _ Event) error {
		calls = append(calls, "unrelated")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventAlertCreated}))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestPublishSwallowsHandlerErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	invoked := 0
	d.Subscribe(EventAlertResolved, func(_ context.Context, _ Event) error {
		invoked++
		return errors.New("listener broke")
	})
	d.Subscribe(EventAlertResolved, func(_ context.Context, _ Event) error {
		invoked++
		return nil
	})

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventAlertResolved}))
	assert.Equal(t, 2, invoked, "a failing listener must not starve the rest")
}

func TestPublishWithoutSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTeamMemberInvited}))
}
