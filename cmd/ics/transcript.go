// =============================================================================
// transcript.go - Session Transcript in SQLite
// =============================================================================
//
// The timeseal library logs every raw line it sends and receives with the
// fields channel=raw, task=<host> and dir=in|out. A transcript is a logrus
// hook that stores those entries in a SQLite database, so a session can be
// reviewed later with any SQLite tool or with the .transcript command:
//
//	sqlite3 ~/.local/share/ics/transcript.db \
//	    "SELECT datetime(at_ms/1000,'unixepoch'), dir, line FROM lines"
//
// =============================================================================

package main

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

// transcriptLine is one stored line.
type transcriptLine struct {
	At   time.Time
	Task string
	Dir  string
	Line string
}

// transcript persists raw protocol lines. It implements logrus.Hook.
type transcript struct {
	mu sync.Mutex
	db *sql.DB
}

// openTranscript opens (or creates) the database at path.
func openTranscript(path string) (*transcript, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "transcript: ensure dir")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "transcript: open")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initTranscriptSchema(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "transcript: schema")
	}
	return &transcript{db: db}, nil
}

func initTranscriptSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS lines (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    at_ms INTEGER NOT NULL,
    task TEXT,
    dir TEXT,
    line TEXT
);
CREATE INDEX IF NOT EXISTS lines_at ON lines(at_ms);`
	_, err := db.Exec(schema)
	return err
}

// Levels implements logrus.Hook.
func (t *transcript) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook. Entries outside the raw channel are ignored.
func (t *transcript) Fire(entry *logrus.Entry) error {
	if channel, _ := entry.Data["channel"].(string); channel != "raw" {
		return nil
	}
	task, _ := entry.Data["task"].(string)
	dir, _ := entry.Data["dir"].(string)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return nil
	}
	_, err := t.db.Exec(
		`INSERT INTO lines (at_ms, task, dir, line) VALUES (?, ?, ?, ?)`,
		entry.Time.UnixMilli(), task, dir, entry.Message,
	)
	return err
}

// Recent returns the last n lines, oldest first.
func (t *transcript) Recent(n int) ([]transcriptLine, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return nil, errors.New("transcript closed")
	}

	rows, err := t.db.Query(
		`SELECT at_ms, task, dir, line FROM lines ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "transcript: query")
	}
	defer rows.Close()

	var lines []transcriptLine
	for rows.Next() {
		var (
			atMs int64
			l    transcriptLine
		)
		if err := rows.Scan(&atMs, &l.Task, &l.Dir, &l.Line); err != nil {
			return nil, errors.Wrap(err, "transcript: scan")
		}
		l.At = time.UnixMilli(atMs)
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "transcript: rows")
	}

	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, nil
}

// Close closes the database. Safe to call more than once.
func (t *transcript) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return nil
	}
	err := t.db.Close()
	t.db = nil
	return err
}

// String formats a line for display.
func (l transcriptLine) String() string {
	arrow := "<"
	if l.Dir == "out" {
		arrow = ">"
	}
	return l.At.Format("15:04:05") + " " + arrow + " " + strings.TrimRight(l.Line, "\r\n")
}
