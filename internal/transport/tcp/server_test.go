package tcp_test

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/omochice/hubify/internal/chat"
	"github.com/omochice/hubify/internal/testutil/testlog"
	"github.com/omochice/hubify/internal/transport/tcp"
	"github.com/omochice/hubify/pkg/protocol"
)

func startServer(t *testing.T) (*tcp.Server, *chat.Hub) {
	t.Helper()
	logger := testlog.New(t)
	hub := chat.NewHub(chat.WithLogger(logger))
	srv := tcp.New("127.0.0.1:0", hub, tcp.WithLogger(logger))
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	go srv.Start()
	t.Cleanup(srv.Stop)
	return srv, hub
}

func waitForClients(t *testing.T, hub *chat.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_Start(t *testing.T) {
	srv, hub := startServer(t)

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	waitForClients(t, hub, 1)
}

func TestServer_Addr(t *testing.T) {
	srv, _ := startServer(t)

	addr := srv.Addr()
	if addr == "" {
		t.Error("Addr() returned empty string")
	}
}

func TestServer_Stop(t *testing.T) {
	hub := chat.NewHub(chat.WithLogger(testlog.New(t)))
	srv := tcp.New("127.0.0.1:0", hub, tcp.WithLogger(testlog.New(t)))
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)

	srv.Stop()

	if err := <-done; err != nil {
		t.Errorf("Start() error = %v after Stop", err)
	}
	if _, err := net.Dial("tcp", srv.Addr()); err == nil {
		t.Error("expected error after stop, got nil")
	}
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Error("expected client connection to be closed by Stop")
	}
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d after Stop, want 0", got)
	}
}

func TestServer_RelaysBetweenClients(t *testing.T) {
	srv, hub := startServer(t)

	alice, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("alice connect: %v", err)
	}
	defer alice.Close()
	bob, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("bob connect: %v", err)
	}
	defer bob.Close()
	waitForClients(t, hub, 2)

	alice.Write([]byte{1, 1, 1, 1})
	bob.Write([]byte{2, 2, 2, 2})
	alice.Write(protocol.Encode([]byte("hello bob")))

	want := protocol.Encode([]byte("hello bob"))
	got := make([]byte, len(want))
	_ = bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(bob, got); err != nil {
		t.Fatalf("bob read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("bob received %v, want %v", got, want)
	}

	_ = alice.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if n, _ := alice.Read(make([]byte, 1)); n != 0 {
		t.Error("alice received her own frame")
	}
}

func TestServer_StopDuringConnectStorm(t *testing.T) {
	for i := 0; i < 20; i++ {
		hub := chat.NewHub(chat.WithLogger(testlog.New(t)))
		srv := tcp.New("127.0.0.1:0", hub, tcp.WithLogger(testlog.New(t)))
		if err := srv.Listen(); err != nil {
			t.Fatalf("Listen() error = %v", err)
		}
		go srv.Start()

		addr := srv.Addr()
		quit := make(chan struct{})
		dialed := make(chan struct{})
		go func() {
			defer close(dialed)
			for {
				select {
				case <-quit:
					return
				default:
				}
				conn, err := net.Dial("tcp", addr)
				if err != nil {
					continue
				}
				defer conn.Close()
			}
		}()

		time.Sleep(5 * time.Millisecond)
		srv.Stop()

		// Every accepted client has been unregistered once Stop returns.
		if got := hub.ClientCount(); got != 0 {
			t.Fatalf("iteration %d: ClientCount() = %d after Stop, want 0", i, got)
		}
		close(quit)
		<-dialed
	}
}
