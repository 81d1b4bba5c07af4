package sse_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/infrastructure/sse"
)

const waitTimeout = 2 * time.Second

func startBroker(t *testing.T, opts ...sse.BrokerOption) sse.Broker {
	t.Helper()
	b := sse.NewBroker(infralogger.NewNop(), opts...)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop() })
	return b
}

func receive(t *testing.T, ch <-chan sse.Event) sse.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for event")
		return sse.Event{}
	}
}

func TestBroker_PublishSubscribe(t *testing.T) {
	t.Parallel()

	b := startBroker(t)
	events, cancel, err := b.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, b.Publish(context.Background(), sse.Event{Type: "scan:queued", Data: "abc"}))
	ev := receive(t, events)
	assert.Equal(t, "scan:queued", ev.Type)
	assert.Equal(t, 1, b.ClientCount())
}

func TestBroker_TypePrefixFilter(t *testing.T) {
	t.Parallel()

	b := startBroker(t)
	events, cancel, err := b.Subscribe(context.Background(), sse.WithTypePrefix("scan:"))
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, b.Publish(context.Background(), sse.Event{Type: "provider:done"}))
	require.NoError(t, b.Publish(context.Background(), sse.Event{Type: "scan:complete"}))

	assert.Equal(t, "scan:complete", receive(t, events).Type)
}

func TestBroker_MaxClients(t *testing.T) {
	t.Parallel()

	b := startBroker(t, sse.WithMaxClients(1))
	_, cancel, err := b.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancel()

	_, _, err = b.Subscribe(context.Background())
	require.ErrorIs(t, err, sse.ErrTooManyClients)
}

func TestBroker_CancelRemovesClient(t *testing.T) {
	t.Parallel()

	b := startBroker(t)
	ctx, stop := context.WithCancel(context.Background())
	events, _, err := b.Subscribe(ctx)
	require.NoError(t, err)

	stop()
	require.Eventually(t, func() bool { return b.ClientCount() == 0 }, waitTimeout, 5*time.Millisecond)
	_, ok := <-events
	assert.False(t, ok)
}

func TestBroker_SlowClientDropped(t *testing.T) {
	t.Parallel()

	b := startBroker(t, sse.WithClientBufferSize(1))
	_, cancel, err := b.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancel()

	for range 5 {
		_ = b.Publish(context.Background(), sse.Event{Type: "scan:running"})
	}
	require.Eventually(t, func() bool { return b.ClientCount() == 0 }, waitTimeout, 5*time.Millisecond)
}

func TestWriteEvent_Format(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := sse.WriteEvent(&buf, sse.Event{Type: "complete", ID: "7", Data: map[string]int{"n": 1}})
	require.NoError(t, err)

	assert.Equal(t, "event: complete\nid: 7\ndata: {\"n\":1}\n\n", buf.String())
}
