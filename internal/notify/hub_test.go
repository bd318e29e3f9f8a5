package notify

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type fakeConn struct {
	mu       sync.Mutex
	messages []any
	failWith error
	closed   bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.messages = append(c.messages, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func TestSendDelivers(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := &fakeConn{}
	h.Connect("s1", conn)

	h.Send("s1", map[string]string{"type": "task_update"})
	h.Send("other", "ignored")

	if conn.count() != 1 {
		t.Fatalf("expected 1 message, got %d", conn.count())
	}
	if h.Active() != 1 {
		t.Fatalf("expected 1 active connection")
	}
}

func TestSendDropsOnWriteError(t *testing.T) {
	h := NewHub(zerolog.Nop())
	var dropped []string
	h.OnDrop = func(id string) { dropped = append(dropped, id) }

	conn := &fakeConn{failWith: errors.New("broken pipe")}
	h.Connect("s1", conn)
	h.Send("s1", "hello")

	if h.Active() != 0 {
		t.Fatalf("expected connection to be dropped")
	}
	if !conn.closed {
		t.Fatalf("expected dropped connection to be closed")
	}
	if len(dropped) != 1 || dropped[0] != "s1" {
		t.Fatalf("expected drop callback, got %v", dropped)
	}

	// Nothing is buffered for a later reconnect.
	next := &fakeConn{}
	h.Connect("s1", next)
	if next.count() != 0 {
		t.Fatalf("expected no replay, got %d messages", next.count())
	}
}

func TestLastConnectionWins(t *testing.T) {
	h := NewHub(zerolog.Nop())
	first := &fakeConn{}
	second := &fakeConn{}
	h.Connect("s1", first)
	h.Connect("s1", second)

	if !first.closed {
		t.Fatalf("expected replaced connection to be closed")
	}
	h.Send("s1", "x")
	if first.count() != 0 || second.count() != 1 {
		t.Fatalf("expected delivery to newest connection only, first=%d second=%d", first.count(), second.count())
	}

	// A late disconnect from the replaced connection must not remove the new one.
	h.Disconnect("s1", first)
	if h.Active() != 1 {
		t.Fatalf("stale disconnect removed the live connection")
	}
	h.Disconnect("s1", second)
	if h.Active() != 0 {
		t.Fatalf("expected registry to be empty")
	}
}
