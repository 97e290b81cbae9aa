package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type stubAuthorizer struct {
	allowed map[string]bool // "match/player"
}

func (a stubAuthorizer) AuthorizeSubscriber(ctx context.Context, matchID, playerID string) error {
	if a.allowed[matchID+"/"+playerID] {
		return nil
	}
	return errors.New("not a participant")
}

func newTestClient(id, matchID string) *Client {
	return &Client{
		ID:      id,
		MatchID: matchID,
		Send:    make(chan []byte, sendBufferSize),
	}
}

func TestHubRegister(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient("p1", "m1")

	if err := hub.Register(context.Background(), client); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if _, exists := hub.Rooms["m1"]; !exists {
		t.Fatal("Room was not created")
	}
	if hub.Count("m1") != 1 {
		t.Errorf("Expected 1 client in match, got %d", hub.Count("m1"))
	}
}

func TestHubRegisterRefusedByAuthorizer(t *testing.T) {
	hub := NewHub(stubAuthorizer{allowed: map[string]bool{"m1/p1": true}})

	if err := hub.Register(context.Background(), newTestClient("intruder", "m1")); err == nil {
		t.Fatal("Expected registration of a non-participant to fail")
	}
	if hub.Count("m1") != 0 {
		t.Errorf("Refused client must not be registered, got %d clients", hub.Count("m1"))
	}
	if err := hub.Register(context.Background(), newTestClient("p1", "m1")); err != nil {
		t.Errorf("Participant registration failed: %v", err)
	}
}

func TestHubUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	c1 := newTestClient("p1", "m1")
	c2 := newTestClient("p2", "m1")
	hub.Register(context.Background(), c1)
	hub.Register(context.Background(), c2)

	hub.Unregister(c1)
	hub.Unregister(c1) // duplicate disconnect event

	if hub.Count("m1") != 1 {
		t.Fatalf("Expected 1 remaining client, got %d", hub.Count("m1"))
	}
	if _, ok := hub.Rooms["m1"].Clients[c2]; !ok {
		t.Error("Unrelated client lost its registration")
	}
	if _, ok := <-c1.Send; ok {
		t.Error("Expected send channel of unregistered client to be closed")
	}

	hub.Unregister(c2)
	if _, exists := hub.Rooms["m1"]; exists {
		t.Error("Empty room should have been removed")
	}
}

func TestHubBroadcastOnlyReachesMatch(t *testing.T) {
	hub := NewHub(nil)
	a := newTestClient("p1", "m1")
	b := newTestClient("p2", "m1")
	other := newTestClient("p3", "m2")
	for _, c := range []*Client{a, b, other} {
		hub.Register(context.Background(), c)
	}

	if n := hub.Broadcast("m1", []byte("hello")); n != 2 {
		t.Errorf("Expected delivery to 2 clients, got %d", n)
	}

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.Send:
			if string(msg) != "hello" {
				t.Errorf("Unexpected message %q", msg)
			}
		default:
			t.Errorf("Client %s did not receive the broadcast", c.ID)
		}
	}
	select {
	case msg := <-other.Send:
		t.Errorf("Client of another match received %q", msg)
	default:
	}
}

func TestHubBroadcastDropsSlowClient(t *testing.T) {
	hub := NewHub(nil)
	slow := newTestClient("slow", "m1")
	fast := newTestClient("fast", "m1")
	hub.Register(context.Background(), slow)
	hub.Register(context.Background(), fast)

	for i := 0; i < sendBufferSize; i++ {
		slow.Send <- []byte("backlog")
	}

	if n := hub.Broadcast("m1", []byte("update")); n != 1 {
		t.Errorf("Expected delivery to 1 client, got %d", n)
	}
	if hub.Count("m1") != 1 {
		t.Errorf("Expected slow client to be dropped, %d clients left", hub.Count("m1"))
	}
	if msg := <-fast.Send; string(msg) != "update" {
		t.Errorf("Fast client got %q", msg)
	}
}

func TestHubCloseMatch(t *testing.T) {
	hub := NewHub(nil)
	a := newTestClient("p1", "m1")
	b := newTestClient("p2", "m2")
	hub.Register(context.Background(), a)
	hub.Register(context.Background(), b)

	if n := hub.CloseMatch("m1"); n != 1 {
		t.Errorf("Expected 1 closed connection, got %d", n)
	}
	if hub.Count("m1") != 0 || hub.Count("m2") != 1 {
		t.Errorf("Unexpected counts after close: m1=%d m2=%d", hub.Count("m1"), hub.Count("m2"))
	}
	// The pump would call this after the connection drops.
	hub.Unregister(a)
}

func TestHubShutdown(t *testing.T) {
	hub := NewHub(nil)
	c := newTestClient("p1", "m1")
	hub.Register(context.Background(), c)

	hub.Shutdown()

	if _, ok := <-c.Send; ok {
		t.Error("Expected client to be disconnected on shutdown")
	}
	if err := hub.Register(context.Background(), newTestClient("p2", "m1")); !errors.Is(err, ErrHubClosed) {
		t.Errorf("Expected ErrHubClosed, got %v", err)
	}
}

func TestHubConcurrentAccess(t *testing.T) {
	hub := NewHub(nil)
	matches := []string{"m1", "m2", "m3"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			matchID := matches[i%len(matches)]
			c := newTestClient("p", matchID)
			if err := hub.Register(context.Background(), c); err != nil {
				t.Errorf("Register() error: %v", err)
				return
			}
			hub.Broadcast(matchID, []byte("x"))
			hub.Unregister(c)
			hub.Unregister(c)
		}(i)
	}
	wg.Wait()

	for _, id := range matches {
		if hub.Count(id) != 0 {
			t.Errorf("Expected match %s to be empty, got %d", id, hub.Count(id))
		}
	}
	if len(hub.Rooms) != 0 {
		t.Errorf("Expected no rooms left, got %d", len(hub.Rooms))
	}
}
