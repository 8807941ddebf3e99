// =============================================================================
// mockserver_test.go - Mock Chess Server for Testing
// =============================================================================
//
// GO CONCEPT: Test Helpers (Shared Test Infrastructure)
// -----------------------------------------------------
// Go test files (*_test.go) are ONLY compiled during testing. They can
// define helper types and functions used across multiple test files in the
// same package. This file provides a mock chess server that listens on a
// loopback TCP port, records every line the client sends, and lets a test
// push arbitrary server output, so the REPL can be tested without a real
// server.
//
// The client is started with TimeSeal off, so the lines the mock sees are
// exactly what the REPL wrote.
//
// =============================================================================

package main

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/timeseal/icsclient/timeseal"
)

// mockServer accepts one client connection at a time.
type mockServer struct {
	// listener accepts client connections on 127.0.0.1.
	listener net.Listener

	// received carries every line the client sent, without the newline.
	received chan string

	// mu protects conn.
	mu   sync.Mutex
	conn net.Conn

	// accepted is closed once the first client connects.
	accepted chan struct{}

	wg sync.WaitGroup
}

// startMockServer starts a mock server on an ephemeral loopback port. The
// server is stopped when the test finishes.
func startMockServer(t *testing.T) *mockServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ms := &mockServer{
		listener: listener,
		received: make(chan string, 64),
		accepted: make(chan struct{}),
	}

	ms.wg.Add(1)
	go ms.acceptLoop()

	t.Cleanup(ms.stop)
	return ms
}

// port returns the port the server listens on.
func (ms *mockServer) port() int {
	return ms.listener.Addr().(*net.TCPAddr).Port
}

func (ms *mockServer) acceptLoop() {
	defer ms.wg.Done()

	first := true
	for {
		conn, err := ms.listener.Accept()
		if err != nil {
			return
		}

		ms.mu.Lock()
		ms.conn = conn
		ms.mu.Unlock()
		if first {
			close(ms.accepted)
			first = false
		}

		ms.wg.Add(1)
		go ms.readLoop(conn)
	}
}

func (ms *mockServer) readLoop(conn net.Conn) {
	defer ms.wg.Done()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		ms.received <- scanner.Text()
	}
}

// send writes raw server output to the connected client.
func (ms *mockServer) send(t *testing.T, data string) {
	t.Helper()

	select {
	case <-ms.accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
	}

	ms.mu.Lock()
	conn := ms.conn
	ms.mu.Unlock()
	if _, err := conn.Write([]byte(data)); err != nil {
		t.Fatalf("mock server write: %v", err)
	}
}

// nextLine returns the next line the client sent.
func (ms *mockServer) nextLine(t *testing.T) string {
	t.Helper()

	select {
	case line := <-ms.received:
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a line from the client")
		return ""
	}
}

// expectNoLine fails if the client sends anything within a short window.
func (ms *mockServer) expectNoLine(t *testing.T) {
	t.Helper()

	select {
	case line := <-ms.received:
		t.Errorf("unexpected line sent to server: %q", line)
	case <-time.After(100 * time.Millisecond):
	}
}

// hangUp closes the client connection from the server side.
func (ms *mockServer) hangUp() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.conn != nil {
		ms.conn.Close()
	}
}

func (ms *mockServer) stop() {
	ms.listener.Close()
	ms.hangUp()
	ms.wg.Wait()
}

// connectToMock starts a Conn to ms with TimeSeal off and closes it when the
// test finishes.
func connectToMock(t *testing.T, ms *mockServer, opts timeseal.Options) *timeseal.Conn {
	t.Helper()

	conn := timeseal.NewConn(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := conn.Start(ctx, "127.0.0.1", ms.port(), false); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	select {
	case <-ms.accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("mock server never accepted the connection")
	}
	return conn
}

// portString formats a port for flag tests.
func portString(port int) string {
	return strconv.Itoa(port)
}
