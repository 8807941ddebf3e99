// =============================================================================
// lineeditor.go - Line Editing with History
// =============================================================================
//
// Provides line-editing support for the REPL using the ergochat/readline
// library. When stdin is a terminal, the user gets:
//   - Arrow key navigation (left/right to move cursor, up/down for history)
//   - Emacs-style keybindings (Ctrl-A, Ctrl-E, Ctrl-K, etc.)
//   - Persistent command history saved to ~/.ics_history
//
// When stdin is not a terminal (piped input, scripts, or Emacs comint mode),
// the editor falls back to plain bufio.Scanner reading with no escape codes.
// Lines typed after ".secret" are never saved to history.
//
// =============================================================================

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

const (
	// historyFileName is the name of the history file in the user's home
	// directory.
	historyFileName = ".ics_history"

	// historySize is the maximum number of history entries retained.
	historySize = 500

	// secretCommand is never written to history.
	secretCommand = ".secret"
)

// LineEditor provides line input with optional readline-style editing.
//
// GO CONCEPT: Optional Capabilities Behind One Type
// --------------------------------------------------
// LineEditor hides two very different input paths behind the same
// GetLine method. Exactly one of rl or scanner is set; callers never need
// to know which one is active. The zero value is not usable, so always
// construct with NewLineEditor.
type LineEditor struct {
	// interactive is true when readline is in use.
	interactive bool

	// rl is the readline instance (nil in non-interactive mode).
	rl *readline.Instance

	// scanner reads lines in non-interactive mode.
	scanner *bufio.Scanner
}

// NewLineEditor creates a line editor reading from os.Stdin. Readline is used
// only when stdin is a terminal and the process is not running inside Emacs.
func NewLineEditor() *LineEditor {
	isInteractive := term.IsTerminal(int(os.Stdin.Fd())) &&
		os.Getenv("INSIDE_EMACS") == ""

	if !isInteractive {
		return newScannerEditor(os.Stdin)
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            historyPath(),
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
		Prompt:                 "",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: readline init failed (%v), using basic input\n", err)
		return newScannerEditor(os.Stdin)
	}

	return &LineEditor{
		interactive: true,
		rl:          rl,
	}
}

// newScannerEditor creates a non-interactive editor over r.
func newScannerEditor(r io.Reader) *LineEditor {
	return &LineEditor{
		interactive: false,
		scanner:     bufio.NewScanner(r),
	}
}

// historyPath returns the absolute path of the history file.
func historyPath() string {
	return filepath.Join(homeDir(), historyFileName)
}

// GetLine displays prompt and reads one line. It returns io.EOF when input
// ends or the user presses Ctrl-D or Ctrl-C on an empty line.
func (le *LineEditor) GetLine(prompt string) (string, error) {
	if le.interactive {
		return le.getInteractiveLine(prompt)
	}
	return le.getNonInteractiveLine(prompt)
}

func (le *LineEditor) getInteractiveLine(prompt string) (string, error) {
	le.rl.SetPrompt(prompt)

	line, err := le.rl.Readline()
	if err != nil {
		if err == readline.ErrInterrupt {
			return "", io.EOF
		}
		return "", err
	}

	if shouldSaveHistory(line) {
		le.rl.SaveToHistory(strings.TrimSpace(line))
	}

	return line, nil
}

func (le *LineEditor) getNonInteractiveLine(prompt string) (string, error) {
	fmt.Print(prompt)

	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}

	return le.scanner.Text(), nil
}

// shouldSaveHistory reports whether line belongs in the history file.
// Blank lines and secrets are skipped.
func shouldSaveHistory(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	fields := strings.Fields(trimmed)
	return !strings.EqualFold(fields[0], secretCommand)
}

// Close releases the terminal. Safe to call more than once.
func (le *LineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
		le.rl = nil
	}
}

// IsInteractive reports whether readline editing is active.
func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}
