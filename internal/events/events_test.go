package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infraevents "github.com/jonesrussell/seoscan/infrastructure/events"
	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/infrastructure/sse"
	"github.com/jonesrussell/seoscan/internal/events"
)

const waitTimeout = 2 * time.Second

func startNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	require.NoError(t, err)
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

type fakePublisher struct {
	publishFn func(ctx context.Context, event infraevents.ScanEvent) error
	got       []infraevents.ScanEvent
}

func (f *fakePublisher) Publish(ctx context.Context, event infraevents.ScanEvent) error {
	f.got = append(f.got, event)
	if f.publishFn != nil {
		return f.publishFn(ctx, event)
	}
	return nil
}

func TestNATSPublisher(t *testing.T) {
	t.Parallel()
	nc := startNATS(t)

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("seoscan.scan.*", ch)
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()
	require.NoError(t, nc.Flush())

	pub := events.NewNATSPublisher(nc, "")
	event := infraevents.NewScanEvent(infraevents.ScanRunning, "scan-1", "example.com", false)
	require.NoError(t, pub.Publish(context.Background(), event))

	select {
	case msg := <-ch:
		assert.Equal(t, "seoscan.scan.running", msg.Subject)
		var decoded infraevents.ScanEvent
		require.NoError(t, json.Unmarshal(msg.Data, &decoded))
		assert.Equal(t, "scan-1", decoded.ScanID)
		assert.Equal(t, event.EventID, decoded.EventID)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for message")
	}
}

func TestStreamPublisher(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	pub := events.NewStreamPublisher(client, "test:")
	require.NoError(t, pub.Publish(context.Background(), infraevents.ScanEvent{
		EventType: infraevents.ScanFailed,
		ScanID:    "scan-2",
		Error:     "boom",
	}))

	msgs, err := client.XRange(context.Background(), "test:scan-events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "scan:failed", msgs[0].Values["event_type"])

	var decoded infraevents.ScanEvent
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["event"].(string)), &decoded))
	assert.Equal(t, "boom", decoded.Error)
	assert.False(t, decoded.Timestamp.IsZero())
}

func TestBrokerPublisher(t *testing.T) {
	t.Parallel()

	broker := sse.NewBroker(infralogger.NewNop())
	require.NoError(t, broker.Start(context.Background()))
	defer func() { _ = broker.Stop() }()

	ch, cancel, err := broker.Subscribe(context.Background(), sse.WithTypePrefix("scan:"))
	require.NoError(t, err)
	defer cancel()

	pub := events.NewBrokerPublisher(broker)
	require.NoError(t, pub.Publish(context.Background(), infraevents.ScanEvent{
		EventType: infraevents.ScanComplete,
		ScanID:    "scan-3",
	}))

	select {
	case ev := <-ch:
		assert.Equal(t, "scan:complete", ev.Type)
		assert.NotEmpty(t, ev.ID)
		data, ok := ev.Data.(infraevents.ScanEvent)
		require.True(t, ok)
		assert.Equal(t, "scan-3", data.ScanID)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for event")
	}
}

func TestMulti_JoinsErrors(t *testing.T) {
	t.Parallel()

	errSink := errors.New("sink down")
	ok := &fakePublisher{}
	failing := &fakePublisher{publishFn: func(context.Context, infraevents.ScanEvent) error { return errSink }}

	err := events.Multi{failing, nil, ok}.Publish(context.Background(), infraevents.ScanEvent{EventType: infraevents.ScanQueued})
	require.ErrorIs(t, err, errSink)
	require.Len(t, ok.got, 1)
	require.Len(t, failing.got, 1)
	assert.Equal(t, ok.got[0].EventID, failing.got[0].EventID)
}

func TestLogging_SwallowsErrors(t *testing.T) {
	t.Parallel()

	failing := &fakePublisher{publishFn: func(context.Context, infraevents.ScanEvent) error {
		return errors.New("sink down")
	}}
	pub := events.NewLogging(failing, infralogger.NewNop())
	require.NoError(t, pub.Publish(context.Background(), infraevents.ScanEvent{EventType: infraevents.ScanQueued}))
	assert.Len(t, failing.got, 1)
	require.NoError(t, events.Nop{}.Publish(context.Background(), infraevents.ScanEvent{}))
}
