// =============================================================================
// repl.go - REPL Loop
// =============================================================================
//
// The REPL reads lines from the LineEditor and either handles them locally
// (dot-commands) or sends them to the chess server. Server output is printed
// concurrently by pumpServerOutput, which runs in its own goroutine and
// blocks in Conn.ReadLine between lines.
//
//	user input ──► runREPL ──► translateInput ──► Conn.Write ──► server
//	server ──► Conn (decode, acks) ──► pumpServerOutput ──► stdout
//
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/timeseal/icsclient/timeseal"
)

// defaultTranscriptLines is the .transcript count when none is given.
const defaultTranscriptLines = 20

// session is everything the REPL works with.
type session struct {
	conn       *timeseal.Conn
	editor     *LineEditor
	out        io.Writer
	errOut     io.Writer
	aliases    map[string]string
	transcript *transcript
}

// runREPL reads and dispatches lines until .quit, end of input, or the
// connection is gone.
func runREPL(s *session) {
	for {
		line, err := s.editor.GetLine("")
		if err != nil {
			if err != io.EOF {
				fmt.Fprintf(s.errOut, "Error: %v\n", err)
			}
			fmt.Fprintln(s.out)
			return
		}

		if quit := s.handleLine(line); quit {
			return
		}
	}
}

// handleLine processes one input line and reports whether the REPL should
// exit.
func (s *session) handleLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}

	if strings.HasPrefix(trimmed, ".") {
		return s.handleDotCommand(trimmed)
	}

	for _, cmd := range translateInput(trimmed, s.aliases) {
		if err := s.conn.Write(cmd); err != nil {
			return s.reportWriteError(err)
		}
	}
	return false
}

// handleDotCommand runs a local command. Dot-commands are case-insensitive.
func (s *session) handleDotCommand(line string) bool {
	name, rest := splitCommand(line)

	switch strings.ToLower(name) {
	case ".quit", ".exit":
		return true

	case ".help":
		printHelp(s.out, s.errOut, rest, s.aliases)

	case ".status":
		s.printStatus()

	case ".stats":
		printStats(s.out, s.conn.Stats())

	case ".secret":
		if rest == "" {
			fmt.Fprintln(s.errOut, "Usage: .secret <text>")
			return false
		}
		s.conn.MarkSensitive()
		if err := s.conn.Write(rest); err != nil {
			return s.reportWriteError(err)
		}

	case ".transcript":
		s.printTranscript(rest)

	default:
		fmt.Fprintf(s.errOut, "Error: Unknown command '%s'. Type .help for local commands.\n", name)
	}
	return false
}

// reportWriteError prints a failed write and reports whether the session is
// over.
func (s *session) reportWriteError(err error) bool {
	switch {
	case errors.Is(err, timeseal.ErrNotConnected), errors.Is(err, timeseal.ErrCanceled):
		fmt.Fprintln(s.errOut, "Error: Not connected.")
		return true
	default:
		fmt.Fprintf(s.errOut, "Error: %v\n", err)
		var te *timeseal.TransportError
		return errors.As(err, &te)
	}
}

func (s *session) printStatus() {
	timesealState := "off"
	if s.conn.TimesealEnabled() {
		timesealState = "on"
	}
	fmt.Fprintf(s.out, "%s: %s (%s, TimeSeal %s)\n",
		s.conn.Name(), s.conn.State(), s.conn.Dialect(), timesealState)
}

func (s *session) printTranscript(arg string) {
	if s.transcript == nil {
		fmt.Fprintln(s.errOut, "Error: No transcript is being recorded. Set transcript in the config or use --transcript.")
		return
	}

	n := defaultTranscriptLines
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v <= 0 {
			fmt.Fprintf(s.errOut, "Error: Invalid line count '%s'\n", arg)
			return
		}
		n = v
	}

	lines, err := s.transcript.Recent(n)
	if err != nil {
		fmt.Fprintf(s.errOut, "Error: %v\n", err)
		return
	}
	for _, l := range lines {
		fmt.Fprintln(s.out, l.String())
	}
}

// printStats writes a human-readable summary of snap.
func printStats(out io.Writer, snap timeseal.StatsSnapshot) {
	fmt.Fprintf(out, "Received:    %s\n", humanize.Bytes(uint64(snap.BytesIn)))
	fmt.Fprintf(out, "Sent:        %s in %s lines\n",
		humanize.Bytes(uint64(snap.BytesOut)), humanize.Comma(snap.LinesOut))
	fmt.Fprintf(out, "Heartbeats:  %s received, %s acknowledged\n",
		humanize.Comma(snap.Heartbeats), humanize.Comma(snap.Acks))
	if !snap.LastHeartbeat.IsZero() {
		fmt.Fprintf(out, "Last:        %s\n", humanize.Time(snap.LastHeartbeat))
	}
	if snap.Intervals > 0 {
		fmt.Fprintf(out, "Interval:    p50 %s, p99 %s, max %s\n",
			snap.IntervalP50.Round(time.Millisecond),
			snap.IntervalP99.Round(time.Millisecond),
			snap.IntervalMax.Round(time.Millisecond))
	}
}

// pumpServerOutput prints server lines to out until the connection ends or
// ctx is done. It returns nil for an orderly end of stream.
func pumpServerOutput(ctx context.Context, conn *timeseal.Conn, out io.Writer) error {
	for {
		line, err := conn.ReadLine(ctx)
		if err != nil {
			switch {
			case err == io.EOF, errors.Is(err, timeseal.ErrCanceled), errors.Is(err, context.Canceled):
				return nil
			case errors.Is(err, timeseal.ErrLineTooLong):
				fmt.Fprintln(out, "[overlong server line dropped]")
				continue
			}
			return err
		}
		fmt.Fprintln(out, line)
	}
}
