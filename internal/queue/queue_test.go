package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/round-seat-reservation/internal/model"
)

func TestHandleMessageWritesLine(t *testing.T) {
	slot := 2
	body, err := json.Marshal(MessageFrom(model.Notification{
		ID: "n-1", Kind: model.NotifyInvited, EventID: 3, UserID: 9, ActorID: 4, Room: 1, Slot: &slot,
		CreatedAt: time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, handleMessage(&out, body))
	require.Equal(t, "[2025-03-14T18:00:00Z] invited | id=n-1 | event_id=3 | user_id=9 | actor_id=4 | room=1 | slot=2\n", out.String())
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, handleMessage(&out, []byte("{")))
	require.Error(t, handleMessage(&out, []byte(`{"id":"x"}`)))
	require.Zero(t, out.Len())
}

func TestPublisherNotifyDropsWhenFull(t *testing.T) {
	p := NewPublisher("amqp://unused", "", 1)
	p.Notify(context.Background(), model.Notification{ID: "a", Kind: model.NotifyKicked, UserID: 1})
	p.Notify(context.Background(), model.Notification{ID: "b", Kind: model.NotifyKicked, UserID: 2})
	require.Len(t, p.buf, 1)
	require.Equal(t, "a", (<-p.buf).ID)
}

func TestPublisherRunSendsMessages(t *testing.T) {
	p := NewPublisher("amqp://unused", "test", 4)
	var (
		mu   sync.Mutex
		got  []NotificationMessage
		done = make(chan struct{})
	)
	p.send = func(_ context.Context, body []byte) error {
		var m NotificationMessage
		if err := json.Unmarshal(body, &m); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, m)
		if len(got) == 2 {
			close(done)
		}
		mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Notify(ctx, model.Notification{ID: "a", Kind: model.NotifyPaymentPending, EventID: 1, UserID: 5})
	p.Notify(ctx, model.Notification{ID: "b", Kind: model.NotifyEvicted, EventID: 1, UserID: 5})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher did not drain the buffer")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "payment_pending", got[0].Kind)
	require.Equal(t, "evicted", got[1].Kind)
}

func TestPublisherFlushDrainsBuffer(t *testing.T) {
	p := NewPublisher("amqp://unused", "test", 8)
	var ids []string
	p.send = func(_ context.Context, body []byte) error {
		var m NotificationMessage
		require.NoError(t, json.Unmarshal(body, &m))
		ids = append(ids, m.ID)
		return nil
	}
	for _, id := range []string{"a", "b", "c"} {
		p.Notify(context.Background(), model.Notification{ID: id, Kind: model.NotifyEvicted, EventID: 1, UserID: 2})
	}
	p.Flush(context.Background())
	require.Equal(t, []string{"a", "b", "c"}, ids)
	require.Empty(t, p.buf)
}
