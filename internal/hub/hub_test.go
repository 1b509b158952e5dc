package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vendwatch/vendwatch-core/internal/infrastructure/config"
	"github.com/vendwatch/vendwatch-core/internal/infrastructure/logging"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	return New(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)
}

// newMockClient builds a client with no underlying connection so tests can
// read frames straight off the send channel.
func newMockClient(h *Hub) *Client {
	return &Client{hub: h, send: make(chan []byte, sendBufferSize)}
}

func recvMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw := <-c.send:
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast message")
		return Message{}
	}
}

func TestHub_PublishReachesAllClients(t *testing.T) {
	h := newTestHub(t)

	a := newMockClient(h)
	b := newMockClient(h)
	h.Register(a)
	h.Register(b)

	daily := 42.5
	h.Publish(EventSalesUpdate, SalesUpdate{Daily: &daily})

	for _, c := range []*Client{a, b} {
		msg := recvMessage(t, c)
		if msg.Type != EventSalesUpdate {
			t.Errorf("type = %q, want %q", msg.Type, EventSalesUpdate)
		}
		data, ok := msg.Data.(map[string]any)
		if !ok {
			t.Fatalf("data = %T, want object", msg.Data)
		}
		if data["daily"] != 42.5 {
			t.Errorf("daily = %v, want 42.5", data["daily"])
		}
		if _, present := data["weekly"]; present {
			t.Error("weekly should be omitted when not set")
		}
	}
}

func TestHub_PublishSerializesOnce(t *testing.T) {
	h := newTestHub(t)

	a := newMockClient(h)
	b := newMockClient(h)
	h.Register(a)
	h.Register(b)

	h.Publish(EventIntrusionAlert, IntrusionUpdate{Alert: true, DeviceID: "vm-1"})

	rawA := <-a.send
	rawB := <-b.send
	if string(rawA) != string(rawB) {
		t.Errorf("clients received different bytes:\n  a: %s\n  b: %s", rawA, rawB)
	}
}

func TestHub_UnregisteredClientReceivesNothing(t *testing.T) {
	h := newTestHub(t)

	c := newMockClient(h)
	h.Register(c)
	h.Unregister(c)

	h.Publish(EventDeviceStatus, DeviceStatusUpdate{DeviceID: "vm-1", Status: "online"})

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("unregistered client should not receive message")
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_UnregisterIdempotent(t *testing.T) {
	h := newTestHub(t)

	c := newMockClient(h)
	h.Register(c)
	h.Unregister(c)
	h.Unregister(c) // must not panic on double close

	if h.ClientCount() != 0 {
		t.Errorf("client count = %d, want 0", h.ClientCount())
	}
}

func TestHub_PublishDoesNotBlockOnFullBuffer(t *testing.T) {
	h := newTestHub(t)

	c := newMockClient(h)
	h.Register(c)

	// Overfill the buffer; Publish must return without stalling.
	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBufferSize+10; i++ {
			h.Publish(EventDeviceStatus, DeviceStatusUpdate{DeviceID: "vm-1", Status: "online"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow client")
	}
}

func TestHub_PublishDuringUnregister(t *testing.T) {
	h := newTestHub(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		c := newMockClient(h)
		h.Register(c)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Publish(EventSalesUpdate, SalesUpdate{})
			}
		}()
		go func() {
			defer wg.Done()
			h.Unregister(c)
		}()
	}
	wg.Wait() // races here surface as send-on-closed panics without trySend's recover
}

func TestHub_PerPublisherOrdering(t *testing.T) {
	h := newTestHub(t)

	c := newMockClient(h)
	h.Register(c)

	const n = 20
	for i := 0; i < n; i++ {
		h.Publish(EventDeviceStatus, DeviceStatusUpdate{DeviceID: fmt.Sprintf("vm-%d", i), Status: "online"})
	}

	for i := 0; i < n; i++ {
		msg := recvMessage(t, c)
		data := msg.Data.(map[string]any)
		if got, want := data["device_id"], fmt.Sprintf("vm-%d", i); got != want {
			t.Fatalf("frame %d: device_id = %v, want %v", i, got, want)
		}
	}
}

func TestHub_ClientCount(t *testing.T) {
	h := newTestHub(t)

	if h.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", h.ClientCount())
	}

	c := newMockClient(h)
	h.Register(c)
	if h.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", h.ClientCount())
	}

	h.Unregister(c)
	if h.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", h.ClientCount())
	}
}

func TestHub_RunClosesClientsOnCancel(t *testing.T) {
	h := newTestHub(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	c := newMockClient(h)
	h.Register(c)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after shutdown")
	}
	if h.ClientCount() != 0 {
		t.Errorf("client count after shutdown = %d, want 0", h.ClientCount())
	}
}
