// Package logging builds the process logger. Logs go to a rotating file when
// file logging is enabled and to stderr otherwise, where only warnings and
// errors are shown so the dashboard stays readable.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const DefaultPath = "./purrfectcopy.log"

type Options struct {
	// File enables logging to Path.
	File  bool
	Path  string
	Level string
	// Stderr overrides the console destination; nil means os.Stderr.
	Stderr io.Writer
}

// Logger owns the logrus logger and the rotating file behind it.
type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
}

func New(opts Options) *Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		DisableColors:   true,
	})

	out := &Logger{Logger: log}
	console := opts.Stderr
	if console == nil {
		console = os.Stderr
	}

	if !opts.File {
		log.SetOutput(console)
		log.SetLevel(logrus.WarnLevel)
		return out
	}

	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = DefaultPath
	}
	out.file = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     30, // days
	}
	log.SetOutput(out.file)

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return out
}

// Discard returns a logger that drops everything. Used by tests and by
// callers that do not care about logs.
func Discard() *Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Logger{Logger: log}
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
