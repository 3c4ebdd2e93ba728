package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:  hub,
		send: make(chan []byte, sendBufferSize),
	}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Errorf("unexpected message %s", data)
	default:
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c1 := mockClient(hub)
	c2 := mockClient(hub)

	hub.Register(c1)
	hub.Register(c2)
	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	// Double unregister should not panic.
	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestPollChangedReachesWatchersOnly(t *testing.T) {
	hub := NewHub(slog.Default())
	watcher := mockClient(hub)
	other := mockClient(hub)
	hub.Register(watcher)
	hub.Register(other)
	defer hub.Unregister(watcher)
	defer hub.Unregister(other)

	hub.Watch(watcher, 42)
	hub.Watch(other, 7)

	hub.PollChanged(42, "voted")

	got := receive(t, watcher)
	if got.Type != "poll_voted" || got.Entity != "poll" || got.ID != 42 {
		t.Errorf("got %+v, want poll_voted for 42", got)
	}
	assertNothing(t, other)

	hub.Unwatch(watcher, 42)
	hub.PollChanged(42, "confirmed")
	assertNothing(t, watcher)
}

func TestWatchUnregisteredClient(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Watch(c, 1)
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("watch must not register, got %d clients", got)
	}
}

func TestClientHandleCommands(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	defer hub.Unregister(c)

	c.handle([]byte(`{"action":"watch","poll_id":5}`))
	c.handle([]byte(`not json`))
	c.handle([]byte(`{"action":"watch","poll_id":0}`))

	hub.PollChanged(5, "cancelled")
	if got := receive(t, c); got.Type != "poll_cancelled" {
		t.Errorf("type = %s, want poll_cancelled", got.Type)
	}

	c.handle([]byte(`{"action":"unwatch","poll_id":5}`))
	hub.PollChanged(5, "voted")
	assertNothing(t, c)
}

func TestPublishWithoutClients(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.PollChanged(1, "voted")
}

func TestPublishFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	hub.Watch(c, 1)

	for i := 0; i < sendBufferSize; i++ {
		hub.PollChanged(1, "voted")
	}
	// This should drop the message, not panic or block
	hub.PollChanged(1, "confirmed")

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}
	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("poll", "confirmed", 5, map[string]any{"time_range_id": 9})
	if msg.Type != "poll_confirmed" {
		t.Errorf("expected type poll_confirmed, got %s", msg.Type)
	}
	if msg.Action != "confirmed" || msg.ID != 5 {
		t.Errorf("got %+v", msg)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c := mockClient(hub)
			hub.Register(c)
			hub.Watch(c, id%3)
			hub.PollChanged(id%3, "voted")
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(int64(i))
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
