// =============================================================================
// helper.go - ICC Timestamp Helper Management
// =============================================================================
//
// The Internet Chess Club does not speak TimeSeal. Instead it relies on a
// native "timestamp" program that the client runs locally: the program
// listens on a loopback port, and the client connects to that port instead
// of chessclub.com. This file finds, launches, and stops that program, and
// implements timeseal.Relay so a Conn knows where to dial.
//
// Search order for the executable:
//  1. The configured data directory (default ~/.local/share/ics)
//  2. The directory containing the ics executable
//  3. The directories in $PATH
//
// Any failure is logged and the connection falls back to dialing the host
// directly.
//
// =============================================================================

package main

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/timeseal/icsclient/timeseal"
)

const (
	// helperWindows and helperUnix are the executable names distributed by ICC.
	helperWindows = "timestamp_win32.exe"
	helperUnix    = "timestamp_linux_2.6.8"

	// defaultHelperPort is the loopback port the helper listens on.
	defaultHelperPort = 5500

	// helperListenTimeout is how long to wait for the helper to accept
	// connections after it starts.
	helperListenTimeout = 4 * time.Second

	// helperPollInterval is how often to probe the helper's port while waiting.
	helperPollInterval = 100 * time.Millisecond
)

// helperExecutableName returns the helper file name for an operating system.
func helperExecutableName(goos string) string {
	if goos == "windows" {
		return helperWindows
	}
	return helperUnix
}

// timestampHelper runs the ICC timestamp program on demand.
type timestampHelper struct {
	dataDir string
	port    int
	name    string
	log     logrus.FieldLogger

	// listenTimeout bounds waitForListener; tests shorten it.
	listenTimeout time.Duration

	mu  sync.Mutex
	cmd *exec.Cmd
}

// newTimestampHelper creates a helper that searches dataDir first and
// listens on port.
func newTimestampHelper(dataDir string, port int, log logrus.FieldLogger) *timestampHelper {
	if port <= 0 {
		port = defaultHelperPort
	}
	return &timestampHelper{
		dataDir:       dataDir,
		port:          port,
		name:          helperExecutableName(runtime.GOOS),
		log:           log,
		listenTimeout: helperListenTimeout,
	}
}

// RelayAddr implements timeseal.Relay. It starts the helper if it is not
// running yet and returns its loopback address. ok is false when the helper
// cannot be used, in which case the caller dials host:port directly.
func (h *timestampHelper) RelayAddr(host string, port int) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(h.port))
	if h.cmd != nil {
		return addr, true
	}

	if err := h.start(); err != nil {
		var he *timeseal.HelperError
		if errors.As(err, &he) {
			h.log.Warnf("%v; connecting to %s:%d directly", he, host, port)
		} else {
			h.log.Warnf("timestamp helper: %v; connecting to %s:%d directly", err, host, port)
		}
		return "", false
	}
	return addr, true
}

// start launches the helper and waits until it accepts connections.
// Callers hold h.mu.
func (h *timestampHelper) start() error {
	path, err := findHelper(h.name, h.dataDir)
	if err != nil {
		return timeseal.NewHelperError("", err)
	}

	cmd := exec.Command(path, "-p", strconv.Itoa(h.port))
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return timeseal.NewHelperError(path, errors.Wrap(err, "launch failed"))
	}
	h.log.Infof("%s started (PID: %d)", path, cmd.Process.Pid)

	if err := waitForListener(h.port, h.listenTimeout); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return timeseal.NewHelperError(path, err)
	}

	h.cmd = cmd
	return nil
}

// Stop terminates the helper if it was started. Safe to call more than once.
func (h *timestampHelper) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cmd == nil {
		return
	}
	if err := h.cmd.Process.Kill(); err != nil {
		h.log.Debugf("timestamp helper: kill: %v", err)
	}
	h.cmd.Wait()
	h.cmd = nil
}

// Running reports whether the helper process has been started.
func (h *timestampHelper) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cmd != nil
}

// findHelper searches the data directory, the executable's directory and
// $PATH, in that order.
func findHelper(name, dataDir string) (string, error) {
	if dataDir != "" {
		candidate := filepath.Join(dataDir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	if selfPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(selfPath), name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%s not found in %s, next to the executable, or in PATH", name, dataDir)
}

// waitForListener polls the loopback port until it accepts a TCP connection.
func waitForListener(port int, timeout time.Duration) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, helperPollInterval)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(helperPollInterval)
	}

	return fmt.Errorf("timeout waiting for %s to accept connections", addr)
}

// isExecutable reports whether path is a regular file with an execute bit.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if runtime.GOOS == "windows" {
		return !info.IsDir()
	}
	return !info.IsDir() && info.Mode().Perm()&0111 != 0
}

// homeDir returns the user's home directory, or "" if it cannot be found.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}
