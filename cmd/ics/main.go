// =============================================================================
// main.go - ics Entry Point
// =============================================================================
//
// ics is a console client for Internet Chess Servers (FICS, FatICS, USCN and
// ICC). It connects with the timeseal package, prints everything the server
// sends, and sends each line typed at the prompt, so it works both in a
// terminal and under Emacs comint mode.
//
// Usage:
//
//	ics                                  Connect to freechess.org:5000
//	ics --host chessclub.com             Connect to ICC (through the timestamp helper)
//	ics --config ~/.config/ics.yaml      Load settings from a YAML file
//	ics --no-timeseal --level debug      Plain connection with raw line logging
//	ics --help                           Show help
//
// Local commands start with a dot (.help lists them); everything else goes
// to the server.
//
// =============================================================================

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/timeseal/icsclient/timeseal"
)

// =============================================================================
// Version Information
// =============================================================================

const (
	// version is the current version of the client.
	version = "0.3.0"

	// appName is the application name.
	appName = "ics"

	// appUsage is the one-line description shown by --help.
	appUsage = "console client for Internet Chess Servers with TimeSeal support"
)

// fullTitle returns the application name with version.
func fullTitle() string {
	return fmt.Sprintf("%s v%s", appName, version)
}

// welcomeBanner returns the banner displayed when the REPL starts.
func welcomeBanner(cfg *Config) string {
	return fmt.Sprintf(`%s - %s:%d

Type '.help' for local commands.
Type '.quit' to exit.
`, fullTitle(), cfg.Host, cfg.Port)
}

// =============================================================================
// Command-Line Arguments
// =============================================================================

// GO CONCEPT: Declarative Flag Definitions
// ----------------------------------------
// urfave/cli describes every flag as a struct value. "Name" may list
// aliases separated by a comma ("port, p" accepts both --port and -p).
// The parsed values are read back from the *cli.Context by name, and
// c.IsSet tells a flag given on the command line apart from its default,
// which is how flags override the configuration file only when present.

// getFlags returns the command-line flags.
func getFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "load configuration from `FILE`",
		},
		cli.StringFlag{
			Name:  "host",
			Usage: "connect to server `HOST`",
			Value: defaultHost,
		},
		cli.IntFlag{
			Name:  "port, p",
			Usage: "connect to server `PORT`",
			Value: defaultPort,
		},
		cli.BoolFlag{
			Name:  "no-timeseal",
			Usage: "connect without TimeSeal",
		},
		cli.StringFlag{
			Name:  "transport",
			Usage: "byte stream to use [tcp|telnet]",
			Value: "tcp",
		},
		cli.StringFlag{
			Name:  "user",
			Usage: "user name sent in the TimeSeal handshake (default: login name)",
		},
		cli.StringFlag{
			Name:  "data-dir, d",
			Usage: "look for the ICC timestamp helper in `DIR`",
		},
		cli.StringFlag{
			Name:  "level, l",
			Usage: "logging level [debug|info|warn|error]",
			Value: "info",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "write the log to `FILE` instead of stderr",
		},
		cli.StringFlag{
			Name:  "transcript",
			Usage: "record raw server traffic in the SQLite database `FILE`",
		},
	}
}

// configFromContext loads the configuration file named by --config and
// applies the flags that were given explicitly.
func configFromContext(c *cli.Context) (*Config, error) {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("host") {
		cfg.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.Bool("no-timeseal") {
		cfg.Timeseal = false
	}
	if c.IsSet("transport") {
		cfg.Transport = c.String("transport")
	}
	if c.IsSet("user") {
		cfg.User = c.String("user")
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("level") {
		cfg.LogLevel = c.String("level")
	}
	if c.IsSet("log-file") {
		cfg.LogFile = c.String("log-file")
	}
	if c.IsSet("transcript") {
		cfg.Transcript = c.String("transcript")
	}

	if err := cfg.normalize(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// newApp builds the command-line application. run receives the final
// configuration; tests substitute it.
func newApp(run func(*Config) error) *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Usage = appUsage
	app.Version = version
	app.Flags = getFlags()
	app.Action = func(c *cli.Context) error {
		cfg, err := configFromContext(c)
		if err != nil {
			return err
		}
		return run(cfg)
	}
	return app
}

// =============================================================================
// Connection Setup
// =============================================================================

// client bundles the long-lived pieces of a running session.
type client struct {
	cfg        *Config
	log        *logrus.Logger
	conn       *timeseal.Conn
	helper     *timestampHelper
	transcript *transcript

	cleanupOnce sync.Once
}

// newClient creates the logger, transcript, helper and connection, without
// connecting.
func newClient(cfg *Config, logger *logrus.Logger) (*client, error) {
	cl := &client{cfg: cfg, log: logger}

	if cfg.Transcript != "" {
		rec, err := openTranscript(cfg.Transcript)
		if err != nil {
			return nil, err
		}
		cl.transcript = rec
	}

	transport, err := timeseal.TransportByName(cfg.Transport)
	if err != nil {
		cl.transcript.Close()
		return nil, err
	}

	user := cfg.User
	if user == "" {
		user = currentUser()
	}

	opts := timeseal.Options{
		User:      user,
		Platform:  platformString(),
		Logger:    newConnLogger(logger, cl.transcript),
		Transport: transport,
	}

	// GO CONCEPT: Nil Interface Values
	// --------------------------------
	// opts.Relay is an interface. Assigning a nil *timestampHelper to it
	// would produce a non-nil interface holding a nil pointer, so the
	// field is only set when there is a helper to use.
	if timeseal.DialectForHost(cfg.Host) == timeseal.DialectICC {
		cl.helper = newTimestampHelper(cfg.DataDir, cfg.HelperPort, logger)
		opts.Relay = cl.helper
	}

	cl.conn = timeseal.NewConn(opts)
	return cl, nil
}

// connect starts the connection.
func (cl *client) connect(ctx context.Context) error {
	err := cl.conn.Start(ctx, cl.cfg.Host, cl.cfg.Port, cl.cfg.Timeseal)
	return errors.Wrapf(err, "failed to connect to %s:%d", cl.cfg.Host, cl.cfg.Port)
}

// cleanup closes the connection and stops the helper. It runs once, whether
// reached from the normal exit path or the signal handler.
func (cl *client) cleanup(cancel bool) {
	cl.cleanupOnce.Do(func() {
		if cancel {
			cl.conn.Cancel()
		} else {
			cl.conn.Close()
		}
		if cl.helper != nil {
			cl.helper.Stop()
		}
		cl.transcript.Close()
	})
}

// =============================================================================
// Signal Handling
// =============================================================================

// GO CONCEPT: Signal Handling with Channels
// -----------------------------------------
// signal.Notify delivers OS signals to a channel instead of terminating the
// process. A goroutine blocks on the channel and runs cleanup when SIGINT
// or SIGTERM arrives. The channel must be buffered so a signal arriving
// before the goroutine is scheduled is not lost.

// setupSignalHandler runs cleanup and exits when SIGINT or SIGTERM arrives.
func setupSignalHandler(cleanup func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println()
		cleanup()
		os.Exit(0)
	}()
}

// =============================================================================
// Main Entry Point
// =============================================================================

// run is the application action: connect, print server output, and run the
// REPL until the user quits or the server goes away.
func run(cfg *Config) error {
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	cl, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	setupSignalHandler(func() { cl.cleanup(true) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cl.conn.SetDisconnectHandler(func(err error) {
		fmt.Fprintf(os.Stderr, "\nDisconnected from %s: %v\n", cfg.Host, err)
	})

	fmt.Printf("Connecting to %s:%d...\n", cfg.Host, cfg.Port)
	if err := cl.connect(ctx); err != nil {
		cl.cleanup(false)
		return err
	}

	go func() {
		if err := pumpServerOutput(ctx, cl.conn, os.Stdout); err != nil {
			logger.Errorf("reading from %s: %v", cfg.Host, err)
		}
	}()

	editor := NewLineEditor()
	defer editor.Close()

	fmt.Print(welcomeBanner(cfg))
	runREPL(&session{
		conn:       cl.conn,
		editor:     editor,
		out:        os.Stdout,
		errOut:     os.Stderr,
		aliases:    cfg.Aliases,
		transcript: cl.transcript,
	})

	cl.cleanup(false)
	return nil
}

// printError writes an error message to stderr.
func printError(message string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}

func main() {
	if err := newApp(run).Run(os.Args); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}
