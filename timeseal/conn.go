package timeseal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"
)

// State is the lifecycle stage of a Conn.
type State int

const (
	// StateIdle is a Conn that has not been started.
	StateIdle State = iota
	// StateConnecting is a Conn dialing its transport.
	StateConnecting
	// StateConnected is a Conn with an open transport.
	StateConnected
	// StateClosed is a Conn whose transport was closed. Terminal.
	StateClosed
	// StateCanceled is a canceled Conn. Terminal.
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// DisconnectHandler is called when the server side ends the connection.
type DisconnectHandler func(err error)

// Relay redirects ICC connections through a local timestamp helper. The
// helper process itself is managed by the caller; a Conn only asks where to
// dial.
type Relay interface {
	RelayAddr(host string, port int) (addr string, ok bool)
}

// Options configures a Conn. The zero value is usable.
type Options struct {
	// User and Platform fill the handshake line.
	User     string
	Platform string

	// Logger receives connection events and every raw line, tagged with
	// the fields task=<host>, channel=raw and dir=in|out. Nil discards.
	Logger logrus.FieldLogger

	// Transport dials the server. Nil selects TCPTransport.
	Transport Transport

	// Relay, if set, is consulted for ICC connections.
	Relay Relay

	// Encoder builds frames. Nil selects a time-seeded encoder.
	Encoder *Encoder

	// MaxBufferSize bounds unterminated inbound data. Zero selects MaxBufferSize.
	MaxBufferSize int
}

// Conn is a client connection to an Internet Chess Server.
//
// Reads block the calling goroutine until data arrives. A single receive
// goroutine owns the transport's read side: it detects the dialect, strips
// and acknowledges heartbeat markers, and feeds the StreamReader.
type Conn struct {
	mu sync.Mutex

	state      State
	name       string
	dialect    Dialect
	timeseal   bool
	bannerSeen bool
	sensitive  bool
	conn       net.Conn
	readerDone chan struct{}

	disconnectHandler DisconnectHandler

	// carry is touched only by the receive goroutine.
	carry Carry

	// readMu serializes terminator reads that use pending.
	readMu  sync.Mutex
	pending []byte

	// writeMu keeps frames from interleaving on the wire.
	writeMu sync.Mutex

	reader    *StreamReader
	encoder   *Encoder
	transport Transport
	relay     Relay
	stats     *Stats
	log       logrus.FieldLogger
	user      string
	platform  string
}

// NewConn creates an idle connection.
func NewConn(opts Options) *Conn {
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.Out = io.Discard
		logger = l
	}
	transport := opts.Transport
	if transport == nil {
		transport = &TCPTransport{}
	}
	encoder := opts.Encoder
	if encoder == nil {
		encoder = NewEncoder(nil, nil)
	}
	return &Conn{
		reader:    NewStreamReader(opts.MaxBufferSize),
		encoder:   encoder,
		transport: transport,
		relay:     opts.Relay,
		stats:     newStats(),
		log:       logger,
		user:      opts.User,
		platform:  opts.Platform,
	}
}

// SetDisconnectHandler sets the callback for server-side disconnects.
func (c *Conn) SetDisconnectHandler(handler DisconnectHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectHandler = handler
}

// State returns the lifecycle stage.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Name returns the host the connection was started with.
func (c *Conn) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Dialect returns the detected server family.
func (c *Conn) Dialect() Dialect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialect
}

// TimesealEnabled reports whether writes are currently encoded.
func (c *Conn) TimesealEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeseal
}

// Stats returns a snapshot of the traffic counters.
func (c *Conn) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

// MarkSensitive masks the next written line in the log, e.g. a password.
func (c *Conn) MarkSensitive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sensitive = true
}

// Start connects to host:port and, when timeseal is true and the server
// family supports it, sends the handshake line.
func (c *Conn) Start(ctx context.Context, host string, port int, timeseal bool) error {
	c.mu.Lock()
	switch c.state {
	case StateCanceled:
		c.mu.Unlock()
		return ErrCanceled
	case StateIdle:
	default:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.name = host
	c.dialect = DialectForHost(host)
	c.timeseal = timeseal && c.dialect.UsesTimeseal()
	dialect := c.dialect
	c.mu.Unlock()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if dialect == DialectICC && c.relay != nil {
		if relayAddr, ok := c.relay.RelayAddr(host, port); ok {
			c.log.Infof("%s: connecting through timestamp helper at %s", host, relayAddr)
			addr = relayAddr
		}
	}

	conn, err := c.transport.Dial(ctx, addr)

	c.mu.Lock()
	if c.state == StateCanceled {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return ErrCanceled
	}
	if err != nil {
		// A failed attempt leaves the Conn startable again.
		c.state = StateIdle
		c.mu.Unlock()
		return newTransportError("dial", addr, err)
	}
	c.conn = conn
	c.state = StateConnected
	done := make(chan struct{})
	c.readerDone = done
	sendHandshake := c.timeseal
	c.mu.Unlock()

	c.log.Infof("%s: connected to %s", host, addr)
	go c.receiveLoop(conn, done)

	if sendHandshake {
		if err := c.Write(Handshake(c.user, c.platform)); err != nil {
			// The server never saw a valid session; don't leave it half open.
			c.Close()
			return err
		}
	}
	return nil
}

// Write sends text followed by a newline, encoded when TimeSeal is on.
func (c *Conn) Write(text string) error {
	if strings.HasSuffix(text, "\n") {
		return ErrTrailingNewline
	}

	c.mu.Lock()
	switch c.state {
	case StateCanceled:
		c.mu.Unlock()
		return ErrCanceled
	case StateConnected:
	default:
		c.mu.Unlock()
		return ErrNotConnected
	}
	logged := text
	if c.sensitive {
		logged = strings.Repeat("*", len(text))
		c.sensitive = false
	}
	conn := c.conn
	timeseal := c.timeseal
	c.mu.Unlock()

	c.rawLog("out").Info(logged)

	var frame []byte
	if timeseal {
		frame = append(c.encoder.Encode([]byte(text)), '\n')
	} else {
		frame = append([]byte(text), '\n')
	}
	return c.send(conn, frame, false)
}

// send writes one complete frame.
func (c *Conn) send(conn net.Conn, frame []byte, ack bool) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := conn.Write(frame); err != nil {
		if c.State() == StateCanceled {
			return ErrCanceled
		}
		return newTransportError("write", "", err)
	}
	c.stats.recordOut(len(frame), ack)
	return nil
}

// ReadLine returns the next line from the server with surrounding whitespace
// and the line terminator removed.
func (c *Conn) ReadLine(ctx context.Context) (string, error) {
	dialect, err := c.readable()
	if err != nil {
		return "", err
	}
	if dialect == DialectICC {
		line, err := c.ReadUntil(ctx, "\n")
		if err == io.ErrUnexpectedEOF {
			err = nil
		}
		return strings.TrimSpace(line), err
	}

	line, err := c.reader.ReadLine(ctx)
	if err != nil {
		return "", c.readErr(err)
	}
	return strings.TrimSpace(decodeLatin1(line)), nil
}

// ReadUntil returns everything up to and including until.
//
// For ICC the record separators DatagramEnd and UnitEnd are cut points as
// well: the shortest prefix ending in any of the three is returned and the
// rest is kept for the next call. When the kept data holds no cut point,
// more is read from the stream until one arrives. If the stream ends first,
// the unterminated tail is returned with io.ErrUnexpectedEOF.
func (c *Conn) ReadUntil(ctx context.Context, until string) (string, error) {
	dialect, err := c.readable()
	if err != nil {
		return "", err
	}
	if dialect != DialectICC {
		data, err := c.reader.ReadUntil(ctx, []byte(until))
		if err != nil {
			return decodeLatin1(data), c.readErr(err)
		}
		return decodeLatin1(data), nil
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	for {
		if out, ok := c.cutPending(dialect, until); ok {
			return out, nil
		}

		data, err := c.reader.ReadUntil(ctx, []byte(until))
		c.pending = append(c.pending, data...)
		if err == nil {
			continue
		}
		if (err == io.EOF || err == io.ErrUnexpectedEOF) && len(c.pending) > 0 {
			if out, ok := c.cutPending(dialect, until); ok {
				return out, nil
			}
			out := decodeLatin1(c.pending)
			c.pending = nil
			return out, io.ErrUnexpectedEOF
		}
		return "", c.readErr(err)
	}
}

// cutPending removes and returns the shortest prefix of pending that ends in
// until or one of the dialect's separators. Callers hold readMu.
func (c *Conn) cutPending(dialect Dialect, until string) (string, bool) {
	cut, width := -1, 0
	if i := bytes.Index(c.pending, []byte(until)); i >= 0 {
		cut, width = i, len(until)
	}
	for _, sep := range dialect.policy().separators {
		if j := bytes.Index(c.pending, sep); j >= 0 && (cut < 0 || j < cut) {
			cut, width = j, len(sep)
		}
	}
	if cut < 0 {
		return "", false
	}

	n := cut + width
	out := decodeLatin1(c.pending[:n])
	c.pending = append([]byte(nil), c.pending[n:]...)
	return out, true
}

// ReadUntilAny waits until one of untils has arrived and returns its index.
// The stream is left positioned at the start of the match.
func (c *Conn) ReadUntilAny(ctx context.Context, untils ...string) (int, error) {
	if _, err := c.readable(); err != nil {
		return -1, err
	}
	seps := make([][]byte, len(untils))
	for i, u := range untils {
		seps[i] = []byte(u)
	}
	i, err := c.reader.ReadUntilAny(ctx, seps...)
	if err != nil {
		return -1, c.readErr(err)
	}
	return i, nil
}

// Cancel aborts the connection: pending and future reads and writes fail
// with ErrCanceled and the transport is closed.
func (c *Conn) Cancel() {
	c.mu.Lock()
	c.state = StateCanceled
	conn := c.conn
	c.mu.Unlock()

	c.reader.CloseWithError(ErrCanceled)
	if conn != nil {
		conn.Close()
	}
}

// Close closes the transport if the connection is open. Data already
// received can still be read. Calling Close more than once is safe.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	conn := c.conn
	done := c.readerDone
	c.mu.Unlock()

	err := conn.Close()
	if done != nil {
		<-done
	}
	c.reader.CloseWithError(io.EOF)
	return err
}

// readable checks that reads may proceed and returns the dialect.
func (c *Conn) readable() (Dialect, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateCanceled:
		return c.dialect, ErrCanceled
	case StateIdle, StateConnecting:
		return c.dialect, ErrNotConnected
	}
	return c.dialect, nil
}

// readErr maps a reader error, preferring ErrCanceled once canceled.
func (c *Conn) readErr(err error) error {
	if c.State() == StateCanceled {
		return ErrCanceled
	}
	return err
}

// receiveLoop reads the transport until it fails or is closed.
func (c *Conn) receiveLoop(conn net.Conn, done chan struct{}) {
	defer close(done)

	buf := make([]byte, readChunkSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			c.dataReceived(conn, buf[:n])
		}
		if err != nil {
			c.handleDisconnect(err)
			return
		}
	}
}

// dataReceived cooks one transport chunk: dialect detection on the first
// chunk, marker removal, acknowledgments, and delivery to the reader.
func (c *Conn) dataReceived(conn net.Conn, data []byte) {
	c.stats.recordIn(len(data))

	c.mu.Lock()
	if !c.bannerSeen {
		c.bannerSeen = true
		c.log.Debugf("%s: banner %q", c.name, data)
		if detected := classifyBanner(data); detected != DialectPlain {
			c.dialect = detected
		}
		data = c.dialect.CleanBanner(data)
		if !c.dialect.UsesTimeseal() {
			c.timeseal = false
		}
		c.log.Debugf("%s: server dialect %s", c.name, c.dialect)
	}
	timeseal := c.timeseal
	marker := c.dialect.policy().marker
	c.mu.Unlock()

	markers := 0
	if timeseal {
		data, markers, c.carry = DecodeMarker(data, c.carry, marker)
	}
	data = bytes.ReplaceAll(data, []byte{'\r'}, nil)
	if len(data) > 0 {
		c.rawLog("in").Debug(string(data))
	}

	if markers > 0 {
		c.stats.recordHeartbeats(markers, time.Now())
		for i := 0; i < markers; i++ {
			ack := append(c.encoder.Encode([]byte(HeartbeatResponse)), '\n')
			if err := c.send(conn, ack, true); err != nil {
				c.log.Warnf("%s: heartbeat acknowledgment failed: %v", c.name, err)
				break
			}
		}
	}

	c.reader.Feed(data)
}

// handleDisconnect ends the stream after the receive loop stops.
func (c *Conn) handleDisconnect(err error) {
	c.mu.Lock()
	state := c.state
	var handler DisconnectHandler
	if state == StateConnected {
		c.state = StateClosed
		handler = c.disconnectHandler
	}
	conn := c.conn
	c.mu.Unlock()

	switch state {
	case StateCanceled:
		c.reader.CloseWithError(ErrCanceled)
	case StateConnected:
		conn.Close()
		if errors.Is(err, io.EOF) {
			c.log.Infof("%s: server closed the connection", c.name)
			c.reader.CloseWithError(io.EOF)
		} else {
			c.log.Warnf("%s: read error: %v", c.name, err)
			c.reader.CloseWithError(newTransportError("read", c.name, err))
		}
		if handler != nil {
			handler(err)
		}
	default:
		c.reader.CloseWithError(io.EOF)
	}
}

func (c *Conn) rawLog(dir string) *logrus.Entry {
	return c.log.WithFields(logrus.Fields{
		"task":    c.Name(),
		"channel": "raw",
		"dir":     dir,
	})
}

// decodeLatin1 maps each byte to the code point of the same value.
func decodeLatin1(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
