package relay

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deckshare/localsend-bridge/internal/logging"
)

func socketPath(t *testing.T) string {
	t.Helper()
	// Keep the path short; sun_path is limited to ~104 bytes.
	dir, err := os.MkdirTemp("", "relay")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "n.sock")
}

func TestRelayOverUnixSocket(t *testing.T) {
	f := newHandlerFixture(t)
	path := socketPath(t)

	// A stale socket file from a previous run must not prevent binding.
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}

	srv := NewServer(NewUnixTransport(path, logging.NewNop()), f.handler, logging.NewNop())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer srv.Stop()

	status := srv.Status()
	if !status.Running || !status.SocketExists || status.SocketPath != path {
		t.Errorf("unexpected status %+v", status)
	}

	client := NewClient("unix", path)
	ack, err := client.Send(context.Background(), fileMessage("upload_start", "s1", "f1"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !ack.OK {
		t.Error("expected ok acknowledgment")
	}
	if _, ok := f.tracker.Get("s1", "f1"); !ok {
		t.Error("upload_start was not applied to the tracker")
	}
}

func TestUnixMalformedMessageDropsConnection(t *testing.T) {
	f := newHandlerFixture(t)
	path := socketPath(t)
	srv := NewServer(NewUnixTransport(path, logging.NewNop()), f.handler, logging.NewNop())
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	conn.Write([]byte("this is not json\n"))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, _ := bufio.NewReader(conn).ReadString('\n')
	conn.Close()
	if reply != "" {
		t.Errorf("malformed message got a reply: %q", reply)
	}

	// The relay keeps serving after a bad message.
	if _, err := NewClient("unix", path).Send(context.Background(), Message{Type: "info"}); err != nil {
		t.Fatalf("relay stopped serving after malformed input: %v", err)
	}
}

func TestUnixStopRemovesSocket(t *testing.T) {
	f := newHandlerFixture(t)
	path := socketPath(t)
	srv := NewServer(NewUnixTransport(path, logging.NewNop()), f.handler, logging.NewNop())
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}

	begin := time.Now()
	srv.Stop()
	if elapsed := time.Since(begin); elapsed > 4*time.Second {
		t.Errorf("Stop took %v, want bounded by the join timeout", elapsed)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("socket file still present after Stop: %v", err)
	}
	if srv.Running() {
		t.Error("server still running after Stop")
	}

	// Restart on the same path.
	if err := srv.Start(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	srv.Stop()
}

func TestUnixBindFailureReported(t *testing.T) {
	f := newHandlerFixture(t)
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	os.WriteFile(blocker, nil, 0644)

	srv := NewServer(NewUnixTransport(filepath.Join(blocker, "n.sock"), logging.NewNop()), f.handler, logging.NewNop())
	if err := srv.Start(); err == nil {
		srv.Stop()
		t.Fatal("expected bind failure")
	}
	if srv.Running() {
		t.Error("server should not be running after a failed start")
	}
}

func TestRelayOverHTTP(t *testing.T) {
	f := newHandlerFixture(t)
	transport := NewHTTPTransport("127.0.0.1:0", logging.NewNop())
	srv := NewServer(transport, f.handler, logging.NewNop())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer srv.Stop()

	ack, err := NewClient("http", transport.Address()).Send(context.Background(), fileMessage("upload_start", "s9", "f9"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !ack.OK {
		t.Error("expected ok acknowledgment")
	}
	if _, ok := f.tracker.Get("s9", "f9"); !ok {
		t.Error("upload_start was not applied over HTTP")
	}

	resp, err := http.Post(transport.URL(), "application/json", strings.NewReader("{broken"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Get(transport.URL())
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", resp.StatusCode)
	}

	srv.Stop()
	if srv.Status().SocketExists {
		t.Error("listener still bound after Stop")
	}
}
