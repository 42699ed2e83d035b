package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Logger discards everything until Init is called, so packages can log from tests.
var Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

var logFile *os.File

// Init opens logs/surveyxfer.log under dir and routes the package logger to it.
func Init(dir string, level slog.Level) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create log directory %s", dir)
	}

	file, err := os.OpenFile(filepath.Join(dir, "surveyxfer.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return errors.Wrap(err, "failed to open log file")
	}

	if logFile != nil {
		logFile.Close()
	}
	logFile = file

	Logger = slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: level,
	}))
	return nil
}

// Close flushes and closes the log file opened by Init.
func Close() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}
