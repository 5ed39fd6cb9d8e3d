package websocket

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/scribehub/api/internal/model"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastStatus(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	watcher := &Client{RecordingID: "rec-1", Send: make(chan []byte, 4)}
	other := &Client{RecordingID: "rec-2", Send: make(chan []byte, 4)}
	hub.Register(watcher)
	hub.Register(other)
	waitFor(t, func() bool { return hub.Subscribers("rec-1") == 1 && hub.Subscribers("rec-2") == 1 })

	hub.BroadcastStatus("rec-1", model.RecordingStatusCompleted)

	select {
	case data := <-watcher.Send:
		var msg model.RecordingEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != model.EventStatus || msg.RecordingID != "rec-1" || msg.Status != model.RecordingStatusCompleted || !msg.Final {
			t.Fatalf("message = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}

	select {
	case data := <-other.Send:
		t.Fatalf("other recording received %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	c := &Client{RecordingID: "rec-1", Send: make(chan []byte, 1)}
	hub.Register(c)
	hub.Unregister(c)
	waitFor(t, func() bool { return hub.Subscribers("rec-1") == 0 })

	if _, ok := <-c.Send; ok {
		t.Fatal("send channel should be closed")
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	c := &Client{RecordingID: "rec-1", Send: make(chan []byte)}
	hub.Register(c)
	waitFor(t, func() bool { return hub.Subscribers("rec-1") == 1 })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.BroadcastStatus("rec-1", model.RecordingStatusFailed)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
	if hub.Subscribers("rec-1") != 1 {
		t.Fatal("slow subscriber should stay registered")
	}
}

func TestHub_RegisterAfterStop(t *testing.T) {
	hub := NewHub()
	hub.Stop()

	done := make(chan struct{})
	go func() {
		hub.Register(&Client{RecordingID: "rec-1", Send: make(chan []byte)})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("register blocked on a stopped hub")
	}
}

func readEvent(t *testing.T, c *Client) model.RecordingEvent {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev model.RecordingEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no frame queued")
	}
	return model.RecordingEvent{}
}

func TestHub_SubscribeQueuesCurrentThenChanges(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client, err := hub.Subscribe(nil, "rec-1", func() (model.RecordingStatus, error) {
		return model.RecordingStatusProcessing, nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitFor(t, func() bool { return hub.Subscribers("rec-1") == 1 })

	if ev := readEvent(t, client); ev.Status != model.RecordingStatusProcessing || ev.Final {
		t.Fatalf("first frame = %+v", ev)
	}

	hub.BroadcastStatus("rec-1", model.RecordingStatusCompleted)
	if ev := readEvent(t, client); ev.Status != model.RecordingStatusCompleted || !ev.Final {
		t.Fatalf("second frame = %+v", ev)
	}
}

func TestHub_SubscribeKeepsTransitionDuringLoad(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	// the recording completes after registration but before the stale read returns
	client, err := hub.Subscribe(nil, "rec-1", func() (model.RecordingStatus, error) {
		hub.BroadcastStatus("rec-1", model.RecordingStatusCompleted)
		waitFor(t, func() bool {
			hub.mu.RLock()
			defer hub.mu.RUnlock()
			for c := range hub.clients["rec-1"] {
				return c.pushed
			}
			return false
		})
		return model.RecordingStatusProcessing, nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if ev := readEvent(t, client); ev.Status != model.RecordingStatusCompleted {
		t.Fatalf("frame = %+v, want completed", ev)
	}
	select {
	case data := <-client.Send:
		t.Fatalf("stale frame queued after terminal one: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SubscribeLoadError(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	boom := errors.New("not found")
	if _, err := hub.Subscribe(nil, "rec-1", func() (model.RecordingStatus, error) {
		return "", boom
	}); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	waitFor(t, func() bool { return hub.Subscribers("rec-1") == 0 })
}
