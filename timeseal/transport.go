package timeseal

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/ziutek/telnet"
)

// Transport opens the byte stream a Conn runs over.
type Transport interface {
	Dial(ctx context.Context, addr string) (net.Conn, error)
}

// TCPTransport dials a plain TCP connection; every received byte reaches the
// decoder untouched.
type TCPTransport struct {
	Dialer net.Dialer
}

// Dial implements Transport.
func (t *TCPTransport) Dial(ctx context.Context, addr string) (net.Conn, error) {
	d := t.Dialer
	if d.Timeout == 0 {
		d.Timeout = ConnectionTimeout
	}
	return d.DialContext(ctx, "tcp", addr)
}

// TelnetTransport dials TCP and runs inbound bytes through a telnet protocol
// handler that answers option negotiation and strips IAC sequences before
// they reach the decoder. Outbound frames bypass it and go to the socket
// unchanged, since frame bytes may include 0xFF.
type TelnetTransport struct {
	TCPTransport
}

// Dial implements Transport.
func (t *TelnetTransport) Dial(ctx context.Context, addr string) (net.Conn, error) {
	conn, err := t.TCPTransport.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	tc, err := telnet.NewConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &telnetConn{Conn: conn, tc: tc}, nil
}

// telnetConn reads through the telnet handler and writes to the raw socket.
type telnetConn struct {
	net.Conn
	tc *telnet.Conn
}

func (c *telnetConn) Read(p []byte) (int, error) {
	return c.tc.Read(p)
}

// TransportByName returns the transport for a configuration value: "tcp"
// (or empty) and "telnet" are recognized.
func TransportByName(name string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "tcp":
		return &TCPTransport{}, nil
	case "telnet":
		return &TelnetTransport{}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", name)
	}
}
