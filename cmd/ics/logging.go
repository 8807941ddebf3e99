package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// newLogger builds the process logger from the configuration. The returned
// function closes the log file, if any.
func newLogger(cfg *Config) (*logrus.Logger, func(), error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, errors.Wrap(err, "log level")
	}

	l := logrus.New()
	l.SetLevel(level)
	l.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
	l.Out = os.Stderr

	closer := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "open log file %s", cfg.LogFile)
		}
		l.Out = f
		closer = func() { f.Close() }
	}
	return l, closer, nil
}

// newConnLogger returns the logger handed to the connection. Raw lines are
// logged at debug level for inbound data, so when a transcript is recorded
// the connection gets its own debug-level logger: every entry reaches the
// transcript hook and is forwarded to the process logger only if that
// logger's level admits it.
func newConnLogger(main *logrus.Logger, rec *transcript) logrus.FieldLogger {
	if rec == nil {
		return main
	}
	l := logrus.New()
	l.Out = io.Discard
	l.SetLevel(logrus.DebugLevel)
	l.AddHook(rec)
	l.AddHook(&forwardHook{target: main})
	return l
}

// forwardHook re-emits entries on another logger.
type forwardHook struct {
	target *logrus.Logger
}

func (h *forwardHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *forwardHook) Fire(entry *logrus.Entry) error {
	if !h.target.IsLevelEnabled(entry.Level) {
		return nil
	}
	h.target.WithFields(entry.Data).WithTime(entry.Time).Log(entry.Level, entry.Message)
	return nil
}
