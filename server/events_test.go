package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusDeliversPerBoard(t *testing.T) {
	bus := NewEventBus()
	ch1, cancel1 := bus.Subscribe(1)
	defer cancel1()
	ch2, cancel2 := bus.Subscribe(2)
	defer cancel2()

	bus.Publish(Event{Type: "created", Entity: "card", BoardID: 1, ID: 10})

	select {
	case msg := <-ch1:
		var ev Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, "card", ev.Entity)
		assert.Equal(t, int64(10), ev.ID)
	case <-time.After(time.Second):
		t.Fatal("board 1 subscriber got nothing")
	}
	select {
	case <-ch2:
		t.Fatal("board 2 subscriber got board 1 event")
	default:
	}
}

func TestEventBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewEventBus()
	ch, cancel := bus.Subscribe(3)
	defer cancel()
	for i := 0; i < 40; i++ {
		bus.Publish(Event{Type: "updated", Entity: "list", BoardID: 3})
	}
	assert.Len(t, ch, cap(ch))
}

func TestEventBusCancelUnsubscribes(t *testing.T) {
	bus := NewEventBus()
	_, cancel := bus.Subscribe(4)
	assert.Equal(t, 1, bus.subscribers(4))
	cancel()
	cancel()
	assert.Equal(t, 0, bus.subscribers(4))
	bus.Publish(Event{BoardID: 4})
}

func TestServeSSEWritesEvents(t *testing.T) {
	bus := NewEventBus()
	ctx, stop := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/boards/5/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		bus.ServeSSE(rec, req, 5)
		close(done)
	}()
	require.Eventually(t, func() bool { return bus.subscribers(5) == 1 }, time.Second, 5*time.Millisecond)
	bus.Publish(Event{Type: "deleted", Entity: "card", BoardID: 5, ID: 9})
	require.Eventually(t, func() bool { return len(firstSub(bus, 5)) == 0 }, time.Second, 5*time.Millisecond)
	stop()
	<-done

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, ": connected"))
	assert.Contains(t, body, `"entity":"card"`)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func firstSub(b *EventBus, boardID int64) chan []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[boardID] {
		return ch
	}
	return nil
}
