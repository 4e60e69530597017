// Package logging configures logrus for a session: every entry goes to
// stdout and to a per-day log file that is delivered with the data.
package logging

import (
	"io"
	"os"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const TimestampFormat = "2006-01-02 15:04:05"

// FileName is the log file of the given day of year.
func FileName(day string) string { return day + ".log" }

// SetLevel parses level and applies it to log.
func SetLevel(log *logrus.Logger, level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to parse log level")
	}
	log.SetLevel(lvl)
	return nil
}

// Setup points log at stdout and <dir>/<day>.log (opened for append) and
// returns the log file path. The caller closes the returned file when the
// session ends.
func Setup(log *logrus.Logger, dir, day string) (string, io.Closer, error) {
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: TimestampFormat,
		DisableColors:   !term.IsTerminal(int(os.Stdout.Fd())),
	})

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, pkgerrors.Wrap(err, "create log directory")
	}
	path := filepath.Join(dir, FileName(day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", nil, pkgerrors.Wrap(err, "open log file")
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return path, f, nil
}
