// =============================================================================
// help.go - Help System
// =============================================================================
//
// Local help for the REPL's dot-commands and client features. Server
// commands have their own help on the server ("help" on FICS, "help" or
// "?" on ICC), so anything not found here points the user there.
//
//	.help            Overview of dot-commands and configured aliases
//	.help <topic>    Detailed help; the leading dot is optional
//
// =============================================================================

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// globalHelp maps a topic (without the leading dot) to its detailed help.
var globalHelp = map[string]string{
	"help": `.help [topic]
  Show the overview, or detailed help for a dot-command or topic.
  Topics: aliases, timeseal, transcript.

  Examples:
    .help
    .help secret`,

	"quit": `.quit
  Close the connection and exit. Ctrl-D does the same.`,

	"stats": `.stats
  Show traffic counters for the connection: bytes in and out, lines sent,
  heartbeats received and acknowledged, and the time between heartbeats.`,

	"status": `.status
  Show the server name, connection state, server family, and whether
  TimeSeal is in use.`,

	"secret": `.secret <text>
  Send text to the server without recording it in the log, the transcript
  or the input history. Use it to answer the password prompt.

  Example:
    .secret hunter2`,

	"transcript": `.transcript [n]
  Show the last n raw lines (default 20) from the session transcript.
  Requires the transcript setting or the --transcript flag.`,

	"aliases": `Aliases
  Aliases are defined in the configuration file:

    aliases:
      t: tell
      gm: "tell $1 good move!"
      hi: "say hi;say gl"

  The first word of a typed line is looked up in the table. $1..$9 are
  replaced by arguments, $* by all arguments; without placeholders the
  arguments are appended. ";" separates several commands. Start a line
  with "\" to send it without expansion.`,

	"timeseal": `TimeSeal
  FICS-style servers measure lag on the client side when the client speaks
  TimeSeal: every line is sent in an encoded frame carrying a timestamp, and
  the server's periodic [G] heartbeats are answered automatically.

  ICC uses its own timestamp program instead. When connecting to
  chessclub.com the client starts timestamp_linux_2.6.8 (or
  timestamp_win32.exe) from the data directory, next to the executable, or
  from PATH, and connects through it. Without it, the connection is made
  directly.

  Use --no-timeseal to connect without TimeSeal.`,
}

// printHelp writes the overview when topic is empty, otherwise the detailed
// help for topic. Unknown topics are reported on errOut.
func printHelp(out, errOut io.Writer, topic string, aliases map[string]string) {
	if topic == "" {
		printHelpOverview(out, aliases)
		return
	}

	key := strings.ToLower(strings.TrimSpace(topic))
	key = strings.TrimPrefix(key, ".")

	if text, ok := globalHelp[key]; ok {
		fmt.Fprintln(out, text)
		return
	}

	if expansion, ok := aliases[key]; ok {
		fmt.Fprintf(out, "%s is an alias for: %s\n", key, expansion)
		return
	}

	fmt.Fprintf(errOut, "Error: No help for '%s'. Type .help for local commands, or help on the server.\n", topic)
}

// printHelpOverview lists the dot-commands and the configured aliases.
func printHelpOverview(out io.Writer, aliases map[string]string) {
	fmt.Fprint(out, `Local Commands:
  .help [topic]     Show help (or help for a specific command)
  .status           Show connection status
  .stats            Show traffic and heartbeat statistics
  .secret <text>    Send text without logging it (passwords)
  .transcript [n]   Show the last n transcript lines
  .quit             Close the connection and exit

Anything else is sent to the server.
`)

	if len(aliases) == 0 {
		return
	}

	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "\nAliases:")
	for _, name := range names {
		fmt.Fprintf(out, "  %-16s  %s\n", name, aliases[name])
	}
}
