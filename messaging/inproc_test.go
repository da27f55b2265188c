package messaging

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (h *recordingHandler) Handle(ctx context.Context, d Delivery) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliveries = append(h.deliveries, d)
	return nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.deliveries)
}

func TestInProcTransportPublish(t *testing.T) {
	t.Run("delivers to matching subscription", func(t *testing.T) {
		transport := NewInProcTransport()
		handler := &recordingHandler{}

		_, err := transport.Subscribe(context.Background(), "appointment.*", handler)
		require.NoError(t, err)

		require.NoError(t, transport.Publish(context.Background(), "appointment.created", []byte(`{}`)))

		require.Equal(t, 1, handler.count())
		assert.Equal(t, "appointment.created", handler.deliveries[0].Subject)
	})

	t.Run("non-matching subscription sees nothing", func(t *testing.T) {
		transport := NewInProcTransport()
		handler := &recordingHandler{}

		_, err := transport.Subscribe(context.Background(), "patient.>", handler)
		require.NoError(t, err)

		require.NoError(t, transport.Publish(context.Background(), "appointment.created", []byte(`{}`)))
		assert.Equal(t, 0, handler.count())
	})

	t.Run("overlapping patterns each get a copy", func(t *testing.T) {
		transport := NewInProcTransport()
		handler := &recordingHandler{}

		_, err := transport.Subscribe(context.Background(), ">", handler)
		require.NoError(t, err)
		_, err = transport.Subscribe(context.Background(), "appointment.>", handler)
		require.NoError(t, err)

		require.NoError(t, transport.Publish(context.Background(), "appointment.created", []byte(`{}`)))
		assert.Equal(t, 2, handler.count())
	})

	t.Run("handler error does not fail publish", func(t *testing.T) {
		transport := NewInProcTransport()

		_, err := transport.Subscribe(context.Background(), ">", DeliveryHandlerFunc(
			func(ctx context.Context, d Delivery) error {
				return fmt.Errorf("handler exploded")
			}))
		require.NoError(t, err)

		assert.NoError(t, transport.Publish(context.Background(), "appointment.created", []byte(`{}`)))
	})

	t.Run("empty subject is rejected", func(t *testing.T) {
		transport := NewInProcTransport()
		assert.Error(t, transport.Publish(context.Background(), "", []byte(`{}`)))
	})
}

func TestInProcTransportUnsubscribe(t *testing.T) {
	transport := NewInProcTransport()
	handler := &recordingHandler{}

	sub, err := transport.Subscribe(context.Background(), ">", handler)
	require.NoError(t, err)
	require.NoError(t, sub.Unsubscribe())

	require.NoError(t, transport.Publish(context.Background(), "appointment.created", []byte(`{}`)))
	assert.Equal(t, 0, handler.count())
}

func TestInProcTransportClose(t *testing.T) {
	transport := NewInProcTransport()
	require.NoError(t, transport.Close())

	assert.Error(t, transport.Publish(context.Background(), "appointment.created", []byte(`{}`)))

	_, err := transport.Subscribe(context.Background(), ">", &recordingHandler{})
	assert.Error(t, err)
}
