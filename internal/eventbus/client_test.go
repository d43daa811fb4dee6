package eventbus

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startTestServer(t *testing.T, port int) *EmbeddedServer {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "eventbus-client-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	server, err := NewEmbeddedServer(EmbeddedServerConfig{
		Port:      port,
		JetStream: true,
		DataDir:   filepath.Join(tempDir, "jetstream"),
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(server.Shutdown)
	return server
}

func TestClientPublishSubscribe(t *testing.T) {
	server := startTestServer(t, 24322)

	client, err := NewClient(server.URL())
	if err != nil {
		t.Fatalf("failed to connect client: %v", err)
	}
	defer client.Close()

	received := make(chan *Message, 1)
	sub, err := client.Subscribe(SubjectActivityLogged, func(msg *Message) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := client.Flush(); err != nil {
		t.Fatalf("failed to flush: %v", err)
	}

	if err := client.Publish(SubjectActivityLogged, []byte("hello")); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg.Data) != "hello" {
			t.Errorf("got %q, want %q", msg.Data, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestClientPublishJSONAndRequestJSON(t *testing.T) {
	server := startTestServer(t, 24323)

	client, err := NewClient(server.URL())
	if err != nil {
		t.Fatalf("failed to connect client: %v", err)
	}
	defer client.Close()

	sub, err := client.Subscribe("eventbus.echo", func(msg *Message) {
		client.Publish(msg.Reply, msg.Data)
	})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	client.Flush()

	req := TaskMessage{TaskID: "t1", Type: "job_search", Status: "completed"}
	var resp TaskMessage
	if err := client.RequestJSON("eventbus.echo", req, &resp, 2*time.Second); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.TaskID != req.TaskID || resp.Status != req.Status {
		t.Errorf("resp = %+v, want %+v", resp, req)
	}
}

func TestClientIsConnected(t *testing.T) {
	server := startTestServer(t, 24324)

	client, err := NewClient(server.URL())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("expected client to be connected")
	}
	client.Close()
	if client.IsConnected() {
		t.Error("expected client to be disconnected after Close")
	}
}
