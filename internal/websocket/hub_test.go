package websocket

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/acw/internal/types"
	"github.com/rs/zerolog"
)

func TestNewHub(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	if hub == nil {
		t.Fatal("expected hub to be created")
	}

	if hub.clients == nil {
		t.Error("expected clients map to be initialized")
	}

	if hub.broadcast == nil {
		t.Error("expected broadcast channel to be initialized")
	}

	if hub.register == nil {
		t.Error("expected register channel to be initialized")
	}

	if hub.unregister == nil {
		t.Error("expected unregister channel to be initialized")
	}
}

func TestHubClientCount(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}

	hub.mu.Lock()
	hub.clients[&Client{id: "test1"}] = true
	hub.clients[&Client{id: "test2"}] = true
	hub.mu.Unlock()

	if hub.ClientCount() != 2 {
		t.Errorf("expected 2 clients, got %d", hub.ClientCount())
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	go hub.Run()

	client := &Client{
		id:   "test-client",
		hub:  hub,
		send: make(chan []byte, 1),
	}

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client after register, got %d", hub.ClientCount())
	}

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after unregister, got %d", hub.ClientCount())
	}

	// send channel is closed on unregister
	if _, ok := <-client.send; ok {
		t.Error("expected send channel to be closed")
	}
}

func TestHubBroadcastToMultipleClients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	go hub.Run()

	client1 := &Client{id: "client1", hub: hub, send: make(chan []byte, 10)}
	client2 := &Client{id: "client2", hub: hub, send: make(chan []byte, 10)}

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	message := []byte("test broadcast")
	hub.Broadcast(message)

	for _, c := range []*Client{client1, client2} {
		select {
		case msg := <-c.send:
			if string(msg) != string(message) {
				t.Errorf("%s expected %s, got %s", c.id, message, msg)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("%s did not receive message", c.id)
		}
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	slow := &Client{id: "slow", hub: hub, send: make(chan []byte)}
	hub.clients[slow] = true

	hub.broadcastRaw([]byte("x"))

	if hub.ClientCount() != 0 {
		t.Errorf("expected slow client to be removed, got %d clients", hub.ClientCount())
	}
}

func TestHubBroadcastReport(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	go hub.Run()

	client := &Client{id: "dashboard", hub: hub, send: make(chan []byte, 1)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	rep := &types.Report{
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		RecordCount: 2,
		Averages:    map[string]int64{"billing": 600},
		Services:    []types.ServiceAverage{{Service: "billing", AverageSeconds: 600, Slots: 1}},
	}
	if err := hub.BroadcastReport(rep); err != nil {
		t.Fatalf("BroadcastReport failed: %v", err)
	}

	select {
	case msg := <-client.send:
		var widget struct {
			Type   string `json:"type"`
			Report struct {
				RunID    string           `json:"runId"`
				Averages map[string]int64 `json:"averages"`
			} `json:"report"`
		}
		if err := json.Unmarshal(msg, &widget); err != nil {
			t.Fatalf("failed to parse widget: %v", err)
		}
		if widget.Type != types.WidgetTypeACWOverview {
			t.Errorf("expected type %s, got %s", types.WidgetTypeACWOverview, widget.Type)
		}
		if widget.Report.RunID != "run-1" {
			t.Errorf("expected run id run-1, got %s", widget.Report.RunID)
		}
		if widget.Report.Averages["billing"] != 600 {
			t.Errorf("expected billing 600, got %d", widget.Report.Averages["billing"])
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("client did not receive widget")
	}
}
