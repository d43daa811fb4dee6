package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jobpilot/automation/internal/eventbus"
	"github.com/jobpilot/automation/internal/types"
)

func startBridgeTestServer(t *testing.T, port int) *eventbus.EmbeddedServer {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "eventbridge-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	srv, err := eventbus.NewEmbeddedServer(eventbus.EmbeddedServerConfig{
		Port:      port,
		JetStream: true,
		DataDir:   filepath.Join(tempDir, "jetstream"),
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestEventBridgeRelaysActivityToHub(t *testing.T) {
	srv := startBridgeTestServer(t, 24622)

	sub, err := eventbus.NewClient(srv.URL())
	if err != nil {
		t.Fatalf("failed to connect subscriber: %v", err)
	}
	defer sub.Close()

	pub, err := eventbus.NewClient(srv.URL())
	if err != nil {
		t.Fatalf("failed to connect publisher: %v", err)
	}
	defer pub.Close()

	hub := NewHub()
	go hub.Run()
	client := &Client{hub: hub, send: make(chan []byte, WebSocketBufferSize)}
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)

	bridge := NewEventBridge(sub, hub)
	if err := bridge.Start(); err != nil {
		t.Fatalf("failed to start bridge: %v", err)
	}
	defer bridge.Stop()

	if err := pub.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	record := types.ActivityRecord{RowID: "1", AgentName: "LinkedInAgent", Type: "apply", Status: types.StatusSuccess}
	if err := pub.PublishJSON(eventbus.SubjectActivityLogged, eventbus.ActivityMessage{Record: record}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case <-client.send:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not receive relayed activity")
	}
}
