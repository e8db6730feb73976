package logutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB   = 10
	maxArchives = 3

	// TimestampFormat matches "2024-09-14 10:21:03,123".
	TimestampFormat = "2006-01-02 15:04:05,000"
)

type Options struct {
	FilePath          string
	EnableFileLogging bool
	Level             string
	// Verbose mirrors every entry to stderr in addition to the file.
	Verbose bool
}

var (
	mu     sync.Mutex
	logger = newDiscardLogger()
	file   *lumberjack.Logger
)

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetFormatter(&LineFormatter{})
	return l
}

// Setup configures the process-wide logger. It must be called once at
// startup and paired with Close at shutdown.
func Setup(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	l := logrus.New()
	l.SetFormatter(&LineFormatter{})
	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if file != nil {
		_ = file.Close()
		file = nil
	}

	var writers []io.Writer
	if opts.EnableFileLogging && opts.FilePath != "" {
		file = &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    maxSizeMB,
			MaxBackups: maxArchives,
		}
		writers = append(writers, file)
	}
	if opts.Verbose {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		l.SetOutput(io.Discard)
	case 1:
		l.SetOutput(writers[0])
	default:
		l.SetOutput(io.MultiWriter(writers...))
	}

	logger = l
	return nil
}

// SetOutput redirects the logger, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
	logger.SetLevel(logrus.DebugLevel)
}

// Logger returns the process-wide logger.
func Logger() *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Close flushes and closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	logger.SetOutput(io.Discard)
	return err
}

// LineFormatter renders "timestamp - LEVEL - message k=v ...", one entry per line.
type LineFormatter struct{}

func (f *LineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(e.Time.Format(TimestampFormat))
	b.WriteString(" - ")
	b.WriteString(strings.ToUpper(e.Level.String()))
	b.WriteString(" - ")
	b.WriteString(SanitizeForLogging(e.Message, 0))

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, SanitizeForLogging(fmt.Sprint(e.Data[k]), 0))
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// SanitizeForLogging escapes control characters so a value cannot break the
// one-entry-per-line format. maxLen counts runes; <= 0 disables truncation.
func SanitizeForLogging(text string, maxLen int) string {
	if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
		text = string([]rune(text)[:maxLen]) + "..."
	}

	var sb strings.Builder
	for _, r := range text {
		switch {
		case r == '\n' || r == '\r':
			sb.WriteString("\\n")
		case r == '\t':
			sb.WriteString("\\t")
		case r < 32 || r == 127:
			sb.WriteByte('?')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// RedactKey masks an API key, leaving first/last 4 chars: xxxx...yyyy
func RedactKey(k string) string {
	if len(k) <= 8 {
		return "********"
	}
	return fmt.Sprintf("%s...%s", k[:4], k[len(k)-4:])
}
