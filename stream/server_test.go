package stream

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/crowd/config"
	"github.com/pthm-cable/crowd/sim"
)

func testEngine(t *testing.T) *sim.Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	overlay := "world:\n  max_entities: 64\npopulation:\n  initial: 0\n"
	if err := os.WriteFile(path, []byte(overlay), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	e := sim.NewEngine(cfg, 1)
	t.Cleanup(e.Close)
	return e
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestClientReceivesHello(t *testing.T) {
	engine := testEngine(t)
	server := NewServer(engine, time.Hour)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	conn := dial(t, ts)

	var hello map[string]any
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("reading hello: %v", err)
	}
	if hello["type"] != "hello" {
		t.Errorf("first message type = %v, want hello", hello["type"])
	}
	if int(hello["capacity"].(float64)) != 64 {
		t.Errorf("capacity = %v, want 64", hello["capacity"])
	}
}

func TestSpawnCommandReachesEngine(t *testing.T) {
	engine := testEngine(t)
	server := NewServer(engine, time.Hour)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	conn := dial(t, ts)
	var hello map[string]any
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatal(err)
	}

	if err := conn.WriteJSON(map[string]any{"type": "spawn", "x": 3.0, "y": 4.0}); err != nil {
		t.Fatalf("sending spawn: %v", err)
	}

	// Commands apply at the next frame boundary. The queue is filled from
	// the read goroutine, so poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for engine.Store().Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("spawn never applied")
		}
		if err := engine.Step(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastDeliversSnapshot(t *testing.T) {
	engine := testEngine(t)
	server := NewServer(engine, time.Hour)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	conn := dial(t, ts)
	var hello map[string]any
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatal(err)
	}

	if err := engine.Step(); err != nil {
		t.Fatal(err)
	}
	server.broadcast()

	var snap sim.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if snap.Frame != 1 {
		t.Errorf("snapshot frame = %d, want 1", snap.Frame)
	}

	// Unchanged frames are not rebroadcast.
	server.broadcast()
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var extra sim.Snapshot
	if err := conn.ReadJSON(&extra); err == nil {
		t.Error("received a duplicate broadcast for an unchanged frame")
	}
}
